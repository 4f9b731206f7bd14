// Package neural_network は全結合ニューラルネットワークによる分類器を提供します。
package neural_network

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
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/preprocessing"
)

// 隠れ層の活性化関数
const (
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

var activations = []string{ActivationReLU, ActivationTanh, ActivationSigmoid}

// MLPClassifier は多層パーセプトロンによる分類器。
// 入力は内部で標準化し、出力層はsoftmax、損失は交差エントロピー。
// 学習は全バッチの勾配降下法で行う。
type MLPClassifier struct {
	state  *model.StateManager
	scaler *preprocessing.StandardScaler

	// ハイパーパラメータ
	hiddenLayerSizes []int
	activation       string
	learningRate     float64
	maxIter          int
	tol              float64
	alpha            float64 // L2正則化
	randomState      int64

	// 学習パラメータ
	weights   []*mat.Dense // 層ごと (in × out)
	biases    [][]float64
	classes_  []float64
	lossCurve []float64
	nIter_    int
}

// Option はMLPClassifierの設定オプション
type Option func(*MLPClassifier)

// WithHiddenLayerSizes は隠れ層のユニット数を設定
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLPClassifier) { m.hiddenLayerSizes = append([]int(nil), sizes...) }
}

// WithActivation は隠れ層の活性化関数を設定
func WithActivation(activation string) Option {
	return func(m *MLPClassifier) { m.activation = activation }
}

// WithLearningRate は学習率を設定
func WithLearningRate(lr float64) Option {
	return func(m *MLPClassifier) { m.learningRate = lr }
}

// WithMaxIter は最大エポック数を設定
func WithMaxIter(n int) Option {
	return func(m *MLPClassifier) { m.maxIter = n }
}

// WithTol は収束判定の許容誤差を設定
func WithTol(tol float64) Option {
	return func(m *MLPClassifier) { m.tol = tol }
}

// WithAlpha はL2正則化の係数を設定
func WithAlpha(alpha float64) Option {
	return func(m *MLPClassifier) { m.alpha = alpha }
}

// WithRandomState は重み初期化の乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(m *MLPClassifier) { m.randomState = seed }
}

// NewMLPClassifier は新しいMLPClassifierを作成する
func NewMLPClassifier(opts ...Option) *MLPClassifier {
	m := &MLPClassifier{
		state:            model.NewStateManager(),
		hiddenLayerSizes: []int{16},
		activation:       ActivationReLU,
		learningRate:     0.1,
		maxIter:          500,
		tol:              1e-6,
		alpha:            1e-4,
		randomState:      42,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsFitted は学習済みかどうかを返す
func (m *MLPClassifier) IsFitted() bool { return m.state.IsFitted() }

func (m *MLPClassifier) validate() error {
	if len(m.hiddenLayerSizes) == 0 {
		return errors.NewValidationError("hidden_layer_sizes", "must have at least one layer", m.hiddenLayerSizes)
	}
	for _, s := range m.hiddenLayerSizes {
		if s < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "layer sizes must be positive", m.hiddenLayerSizes)
		}
	}
	if !contains(activations, m.activation) {
		return errors.NewConfigurationError("activation", m.activation, activations...)
	}
	if m.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", m.learningRate)
	}
	if m.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", m.maxIter)
	}
	if m.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", m.alpha)
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func (m *MLPClassifier) activate(v float64) float64 {
	switch m.activation {
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationSigmoid:
		return 1 / (1 + errors.StabilizeExp(-v))
	default:
		return math.Max(0, v)
	}
}

// derivative は活性化後の値 a から導関数を計算する
func (m *MLPClassifier) derivative(a float64) float64 {
	switch m.activation {
	case ActivationTanh:
		return 1 - a*a
	case ActivationSigmoid:
		return a * (1 - a)
	default:
		if a > 0 {
			return 1
		}
		return 0
	}
}

// Fit はネットワークを学習する。y は n_samples × 1 のクラスラベル。
// 最大エポック数に達しても収束しない場合は ConvergenceWarning を出す。
func (m *MLPClassifier) Fit(X, y mat.Matrix) error {
	if err := m.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MLPClassifier.Fit")
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("MLPClassifier.Fit", rows, yRows, 0)
	}
	if err := errors.CheckMatrix("MLPClassifier.Fit", X, rows, cols, 0); err != nil {
		return err
	}

	m.classes_ = uniqueLabels(y, rows)
	if len(m.classes_) < 2 {
		return errors.NewValueError("MLPClassifier.Fit", "need samples of at least 2 classes")
	}
	classIndex := make(map[float64]int, len(m.classes_))
	for i, c := range m.classes_ {
		classIndex[c] = i
	}
	k := len(m.classes_)

	m.scaler = preprocessing.NewStandardScalerDefault()
	scaled, err := m.scaler.FitTransform(X)
	if err != nil {
		return err
	}

	target := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		target.Set(i, classIndex[y.At(i, 0)], 1)
	}

	m.initWeights(cols, k)
	logger := log.GetLoggerWithName("MLPClassifier")

	m.lossCurve = m.lossCurve[:0]
	prev := math.Inf(1)
	converged := false
	for epoch := 1; epoch <= m.maxIter; epoch++ {
		acts := m.forward(scaled)
		loss := m.loss(acts[len(acts)-1], target)
		if err := errors.CheckScalar("MLPClassifier.Fit", loss, epoch); err != nil {
			return err
		}
		m.lossCurve = append(m.lossCurve, loss)
		m.nIter_ = epoch
		if epoch%100 == 0 {
			logger.Debug("training progress", log.EpochKey, epoch, log.LossKey, loss)
		}
		if math.Abs(prev-loss) < m.tol {
			converged = true
			break
		}
		prev = loss
		m.backward(acts, target)
		for _, w := range m.weights {
			if err := errors.CheckNumericalStability("MLPClassifier.Fit", w.RawMatrix().Data, epoch); err != nil {
				return err
			}
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("MLPClassifier", m.maxIter,
			"maximum iterations reached and the optimization hasn't converged yet"))
	}

	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()
	return nil
}

func uniqueLabels(y mat.Matrix, rows int) []float64 {
	seen := make(map[float64]struct{})
	for i := 0; i < rows; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Float64s(out)
	return out
}

// initWeights はGlorot一様分布で重みを初期化する
func (m *MLPClassifier) initWeights(nIn, nOut int) {
	rng := rand.New(rand.NewSource(m.randomState))
	sizes := append(append([]int{nIn}, m.hiddenLayerSizes...), nOut)
	m.weights = make([]*mat.Dense, len(sizes)-1)
	m.biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		limit := math.Sqrt(6 / float64(sizes[l]+sizes[l+1]))
		data := make([]float64, sizes[l]*sizes[l+1])
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * limit
		}
		m.weights[l] = mat.NewDense(sizes[l], sizes[l+1], data)
		m.biases[l] = make([]float64, sizes[l+1])
	}
}

// forward は各層の出力を返す。先頭は入力、末尾はsoftmax確率。
func (m *MLPClassifier) forward(X mat.Matrix) []*mat.Dense {
	acts := []*mat.Dense{mat.DenseCopyOf(X)}
	last := len(m.weights) - 1
	for l, w := range m.weights {
		var z mat.Dense
		z.Mul(acts[l], w)
		b := m.biases[l]
		if l == last {
			z.Apply(func(i, j int, v float64) float64 { return v + b[j] }, &z)
			softmaxRows(&z)
		} else {
			z.Apply(func(i, j int, v float64) float64 { return m.activate(v + b[j]) }, &z)
		}
		acts = append(acts, &z)
	}
	return acts
}

func softmaxRows(z *mat.Dense) {
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		lse := errors.LogSumExp(row)
		for j, v := range row {
			row[j] = math.Exp(v - lse)
		}
	}
}

func (m *MLPClassifier) loss(proba, target *mat.Dense) float64 {
	r, c := proba.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if target.At(i, j) == 1 {
				sum -= errors.StabilizeLog(proba.At(i, j))
			}
		}
	}
	reg := 0.0
	for _, w := range m.weights {
		reg += mat.Sum(mulElem(w, w))
	}
	return sum/float64(r) + m.alpha*reg/(2*float64(r))
}

func mulElem(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

// backward は逆伝播で勾配を計算し、重みを更新する
func (m *MLPClassifier) backward(acts []*mat.Dense, target *mat.Dense) {
	n := float64(target.RawMatrix().Rows)
	delta := new(mat.Dense)
	delta.Sub(acts[len(acts)-1], target)

	for l := len(m.weights) - 1; l >= 0; l-- {
		var grad mat.Dense
		grad.Mul(acts[l].T(), delta)
		grad.Scale(1/n, &grad)
		var reg mat.Dense
		reg.Scale(m.alpha/n, m.weights[l])
		grad.Add(&grad, &reg)

		_, c := delta.Dims()
		gb := make([]float64, c)
		for j := 0; j < c; j++ {
			gb[j] = mat.Sum(delta.ColView(j)) / n
		}

		next := new(mat.Dense)
		if l > 0 {
			next.Mul(delta, m.weights[l].T())
			a := acts[l]
			next.Apply(func(i, j int, v float64) float64 { return v * m.derivative(a.At(i, j)) }, next)
		}

		grad.Scale(m.learningRate, &grad)
		m.weights[l].Sub(m.weights[l], &grad)
		for j := range gb {
			m.biases[l][j] -= m.learningRate * gb[j]
		}
		if l > 0 {
			delta = next
		}
	}
}

// PredictProba は各クラスの確率を返す（n_samples × n_classes）
func (m *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MLPClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := m.state.RequireFeatures("MLPClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	scaled, err := m.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	acts := m.forward(scaled)
	return acts[len(acts)-1], nil
}

// Predict はクラスラベルを予測する（n_samples × 1）
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, m.classes_[best])
	}
	return out, nil
}

// LossCurve はエポックごとの損失を返す
func (m *MLPClassifier) LossCurve() []float64 {
	return append([]float64(nil), m.lossCurve...)
}

// NIter は実行したエポック数を返す
func (m *MLPClassifier) NIter() int { return m.nIter_ }

// GetParams はハイパーパラメータを返す
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.hiddenLayerSizes...),
		"activation":         m.activation,
		"learning_rate":      m.learningRate,
		"max_iter":           m.maxIter,
		"tol":                m.tol,
		"alpha":              m.alpha,
		"random_state":       m.randomState,
	}
}

// SetParams はハイパーパラメータを設定する。
// 設定ファイル由来の値（float64 や []interface{}）も受け付ける。
func (m *MLPClassifier) SetParams(params map[string]interface{}) error {
	next := *m
	for key, v := range params {
		var err error
		switch key {
		case "hidden_layer_sizes", "layers":
			next.hiddenLayerSizes, err = toInts(key, v)
		case "activation":
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", v)
			}
			next.activation = s
		case "learning_rate":
			next.learningRate, err = toFloat(key, v)
		case "max_iter":
			var f float64
			f, err = toFloat(key, v)
			next.maxIter = int(f)
		case "tol":
			next.tol, err = toFloat(key, v)
		case "alpha":
			next.alpha, err = toFloat(key, v)
		case "random_state":
			var f float64
			f, err = toFloat(key, v)
			next.randomState = int64(f)
		default:
			return errors.NewConfigurationError("parameter", key,
				"hidden_layer_sizes", "activation", "learning_rate", "max_iter", "tol", "alpha", "random_state")
		}
		if err != nil {
			return err
		}
	}
	if err := next.validate(); err != nil {
		return err
	}
	m.hiddenLayerSizes = next.hiddenLayerSizes
	m.activation = next.activation
	m.learningRate = next.learningRate
	m.maxIter = next.maxIter
	m.tol = next.tol
	m.alpha = next.alpha
	m.randomState = next.randomState
	return nil
}

func toFloat(name string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", v)
	}
}

func toInts(name string, v interface{}) ([]int, error) {
	switch s := v.(type) {
	case []int:
		return append([]int(nil), s...), nil
	case int:
		return []int{s}, nil
	case []interface{}:
		out := make([]int, len(s))
		for i, e := range s {
			f, err := toFloat(name, e)
			if err != nil {
				return nil, err
			}
			out[i] = int(f)
		}
		return out, nil
	default:
		return nil, errors.NewValidationError(name, "must be a list of integers", v)
	}
}

// String は分類器の文字列表現を返す
func (m *MLPClassifier) String() string {
	return fmt.Sprintf("MLPClassifier(hidden_layer_sizes=%v, activation=%s, learning_rate=%g, max_iter=%d)",
		m.hiddenLayerSizes, m.activation, m.learningRate, m.maxIter)
}

// snapshot はgobで保存する学習済みモデルの内容
type snapshot struct {
	State            model.ModelState
	HiddenLayerSizes []int
	Activation       string
	LearningRate     float64
	MaxIter          int
	Tol              float64
	Alpha            float64
	RandomState      int64
	Weights          [][]float64
	Shapes           [][2]int
	Biases           [][]float64
	Classes          []float64
	Mean             []float64
	Scale            []float64
}

// GobEncode は学習済みネットワークをgob形式にエンコードする
func (m *MLPClassifier) GobEncode() ([]byte, error) {
	s := snapshot{
		State:            m.state.GetState(),
		HiddenLayerSizes: m.hiddenLayerSizes,
		Activation:       m.activation,
		LearningRate:     m.learningRate,
		MaxIter:          m.maxIter,
		Tol:              m.tol,
		Alpha:            m.alpha,
		RandomState:      m.randomState,
		Biases:           m.biases,
		Classes:          m.classes_,
	}
	for _, w := range m.weights {
		r, c := w.Dims()
		s.Shapes = append(s.Shapes, [2]int{r, c})
		s.Weights = append(s.Weights, append([]float64(nil), w.RawMatrix().Data...))
	}
	if m.scaler != nil {
		s.Mean, s.Scale = m.scaler.Mean, m.scaler.Scale
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(err, "encode mlp")
	}
	return buf.Bytes(), nil
}

// GobDecode はGobEncodeの出力からネットワークを復元する
func (m *MLPClassifier) GobDecode(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode mlp")
	}
	if m.state == nil {
		m.state = model.NewStateManager()
	}
	m.state.SetState(s.State)
	m.hiddenLayerSizes = s.HiddenLayerSizes
	m.activation = s.Activation
	m.learningRate = s.LearningRate
	m.maxIter = s.MaxIter
	m.tol = s.Tol
	m.alpha = s.Alpha
	m.randomState = s.RandomState
	m.biases = s.Biases
	m.classes_ = s.Classes
	m.weights = make([]*mat.Dense, len(s.Weights))
	for i, w := range s.Weights {
		m.weights[i] = mat.NewDense(s.Shapes[i][0], s.Shapes[i][1], w)
	}
	if s.State.Fitted {
		m.scaler = preprocessing.NewStandardScalerDefault()
		if err := m.scaler.Restore(s.Mean, s.Scale); err != nil {
			return err
		}
	}
	return nil
}
