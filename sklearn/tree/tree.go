// Package tree はCARTアルゴリズムによる決定木分類器を提供します。
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// 分割基準
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// node は木のノード。子ノードは nodes スライスのインデックスで参照する。
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Counts    []float64 // クラスごとのサンプル数
	Impurity  float64
	NSamples  int
	Depth     int
}

// DecisionTreeClassifier はCART決定木による分類器
type DecisionTreeClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	criterion       string
	maxDepth        int // -1 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	randomState     int64 // -1 の場合は特徴量を順番に走査する

	// 学習パラメータ
	nodes               []node
	classes_            []float64
	nClasses_           int
	featureImportances_ []float64
}

// Option はDecisionTreeClassifierの設定オプション
type Option func(*DecisionTreeClassifier)

// WithCriterion は分割基準（"gini" または "entropy"）を設定
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth は木の最大深さを設定（-1 で無制限）
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は内部ノードを分割するのに必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉ノードに必要な最小サンプル数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithRandomState は特徴量の走査順を決める乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier は新しいDecisionTreeClassifierを作成する
//
// 使用例:
//
//	dt := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(5))
//	err := dt.Fit(X, y)
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// IsFitted は学習済みかどうかを返す
func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewConfigurationError("criterion", dt.criterion, CriterionGini, CriterionEntropy)
	}
	if dt.maxDepth == 0 || dt.maxDepth < -1 {
		return errors.NewValidationError("max_depth", "must be positive or -1", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit は訓練データで決定木を構築する。y は n_samples × 1。
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.Fit")
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if err := errors.CheckMatrix("DecisionTreeClassifier.Fit", X, rows, cols, 0); err != nil {
		return err
	}

	// クラスラベルの収集
	labels := make([]float64, rows)
	seen := make(map[float64]struct{})
	for i := 0; i < rows; i++ {
		labels[i] = y.At(i, 0)
		seen[labels[i]] = struct{}{}
	}
	dt.classes_ = make([]float64, 0, len(seen))
	for c := range seen {
		dt.classes_ = append(dt.classes_, c)
	}
	sort.Float64s(dt.classes_)
	dt.nClasses_ = len(dt.classes_)

	classIndex := make(map[float64]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}

	b := &builder{
		dt:       dt,
		X:        mat.DenseCopyOf(X),
		y:        make([]int, rows),
		nFeature: cols,
		imp:      make([]float64, cols),
	}
	for i, l := range labels {
		b.y[i] = classIndex[l]
	}
	if dt.randomState >= 0 {
		b.rng = rand.New(rand.NewSource(dt.randomState))
	}

	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	dt.nodes = dt.nodes[:0]
	b.build(idx, 0)

	total := 0.0
	for _, v := range b.imp {
		total += v
	}
	dt.featureImportances_ = make([]float64, cols)
	if total > 0 {
		for j, v := range b.imp {
			dt.featureImportances_[j] = v / total
		}
	}

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

type builder struct {
	dt       *DecisionTreeClassifier
	X        *mat.Dense
	y        []int
	nFeature int
	imp      []float64
	rng      *rand.Rand
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.dt.nClasses_)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if b.dt.criterion == CriterionEntropy {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

// build は idx のサンプルからノードを作り、そのインデックスを返す
func (b *builder) build(idx []int, depth int) int {
	dt := b.dt
	counts := b.counts(idx)
	n := len(idx)
	imp := b.impurity(counts, float64(n))

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{Leaf: true, Counts: counts, Impurity: imp, NSamples: n, Depth: depth, Left: -1, Right: -1})

	if imp == 0 || n < dt.minSamplesSplit || n < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(idx, counts, imp)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.imp[feature] += gain * float64(n)

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	nd := &dt.nodes[id]
	nd.Leaf = false
	nd.Feature = feature
	nd.Threshold = threshold
	nd.Left, nd.Right = l, r
	return id
}

// bestSplit は不純度の減少が最大となる分割を探す。
// 不純なノードでは減少量0の分割も許す（XORのような分布を分けるため）。
func (b *builder) bestSplit(idx []int, parent []float64, parentImp float64) (int, float64, float64, bool) {
	n := float64(len(idx))
	minLeaf := b.dt.minSamplesLeaf
	bestGain := math.Inf(-1)
	bestFeature, bestThreshold := -1, 0.0

	features := make([]int, b.nFeature)
	for j := range features {
		features[j] = j
	}
	if b.rng != nil {
		b.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	sorted := make([]int, len(idx))
	for _, j := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X.At(sorted[a], j) < b.X.At(sorted[c], j) })

		left := make([]float64, len(parent))
		right := append([]float64(nil), parent...)
		for k := 0; k < len(sorted)-1; k++ {
			cls := b.y[sorted[k]]
			left[cls]++
			right[cls]--

			v, next := b.X.At(sorted[k], j), b.X.At(sorted[k+1], j)
			if v == next {
				continue
			}
			nl := k + 1
			nr := len(sorted) - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			child := (float64(nl)*b.impurity(left, float64(nl)) + float64(nr)*b.impurity(right, float64(nr))) / n
			if gain := parentImp - child; gain > bestGain {
				bestGain = gain
				bestFeature = j
				bestThreshold = (v + next) / 2
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, math.Max(bestGain, 0), true
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *node {
	nd := &dt.nodes[0]
	for !nd.Leaf {
		if X.At(i, nd.Feature) <= nd.Threshold {
			nd = &dt.nodes[nd.Left]
		} else {
			nd = &dt.nodes[nd.Right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkInput(method string, X mat.Matrix) (int, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return 0, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols); err != nil {
		return 0, err
	}
	return rows, nil
}

// PredictProba は各クラスの確率（葉ノードのクラス比率）を返す
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	rows, err := dt.checkInput("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		nd := dt.leaf(X, i)
		for k, c := range nd.Counts {
			out.Set(i, k, c/float64(nd.NSamples))
		}
	}
	return out, nil
}

// Predict はクラスラベルを予測する（n_samples × 1）
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := dt.checkInput("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		nd := dt.leaf(X, i)
		best := 0
		for k, c := range nd.Counts {
			if c > nd.Counts[best] {
				best = k
			}
		}
		out.Set(i, 0, dt.classes_[best])
	}
	return out, nil
}

// Score は正解率を返す。未学習や次元不一致の場合は0。
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// GetFeatureImportances は正規化された不純度減少量を特徴量ごとに返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, nd := range dt.nodes {
		if nd.Depth > depth {
			depth = nd.Depth
		}
	}
	return depth
}

// GetNLeaves は葉ノードの数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for _, nd := range dt.nodes {
		if nd.Leaf {
			n++
		}
	}
	return n
}

// Classes は学習時のクラスラベルを返す
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"random_state":      dt.randomState,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーは ConfigurationError。
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	next := *dt
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(k, "must be a string", v)
			}
			next.criterion = s
		case "max_depth":
			next.maxDepth, err = toInt(k, v)
		case "min_samples_split":
			next.minSamplesSplit, err = toInt(k, v)
		case "min_samples_leaf":
			next.minSamplesLeaf, err = toInt(k, v)
		case "random_state":
			var seed int
			seed, err = toInt(k, v)
			next.randomState = int64(seed)
		default:
			return errors.NewConfigurationError("parameter", k,
				"criterion", "max_depth", "min_samples_split", "min_samples_leaf", "random_state")
		}
		if err != nil {
			return err
		}
	}
	if err := next.validate(); err != nil {
		return err
	}
	dt.criterion = next.criterion
	dt.maxDepth = next.maxDepth
	dt.minSamplesSplit = next.minSamplesSplit
	dt.minSamplesLeaf = next.minSamplesLeaf
	dt.randomState = next.randomState
	return nil
}

// toInt は設定ファイル由来の数値（int, int64, float64）を int に変換する
func toInt(name string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(n), nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
}

// String は分類器の文字列表現を返す
func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

// snapshot はgobで保存する学習済みモデルの内容
type snapshot struct {
	State              model.ModelState
	Criterion          string
	MaxDepth           int
	MinSamplesSplit    int
	MinSamplesLeaf     int
	RandomState        int64
	Nodes              []node
	Classes            []float64
	FeatureImportances []float64
}

// GobEncode は学習済みの木をgob形式にエンコードする
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		State:              dt.state.GetState(),
		Criterion:          dt.criterion,
		MaxDepth:           dt.maxDepth,
		MinSamplesSplit:    dt.minSamplesSplit,
		MinSamplesLeaf:     dt.minSamplesLeaf,
		RandomState:        dt.randomState,
		Nodes:              dt.nodes,
		Classes:            dt.classes_,
		FeatureImportances: dt.featureImportances_,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode decision tree")
	}
	return buf.Bytes(), nil
}

// GobDecode はGobEncodeの出力から木を復元する
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode decision tree")
	}
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	dt.state.SetState(s.State)
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.minSamplesSplit = s.MinSamplesSplit
	dt.minSamplesLeaf = s.MinSamplesLeaf
	dt.randomState = s.RandomState
	dt.nodes = s.Nodes
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.featureImportances_ = s.FeatureImportances
	return nil
}
