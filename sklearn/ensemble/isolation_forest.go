// Package ensemble はランダムな木の集合による異常検知を提供します。
package ensemble

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/core/parallel"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// オイラー・マスケローニ定数
const eulerGamma = 0.5772156649015329

// iNode は孤立木のノード。子ノードは nodes スライスのインデックスで参照する。
type iNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	leaf      bool
	size      int // 葉に残ったサンプル数
}

type iTree struct {
	nodes []iNode
}

// IsolationForest は孤立木の集合で外れ値を検出する。
// 少ない分割で孤立する点ほど異常とみなす。
type IsolationForest struct {
	state *model.StateManager

	// ハイパーパラメータ
	nEstimators   int
	maxSamples    int
	contamination float64
	randomState   int64

	// 学習パラメータ
	trees      []iTree
	psi        int     // 各木のサブサンプル数
	threshold_ float64 // これを超えるスコアを外れ値とする
	scores_    []float64
}

// IsolationOption はIsolationForestの設定オプション
type IsolationOption func(*IsolationForest)

// WithNEstimators は木の本数を設定
func WithNEstimators(n int) IsolationOption {
	return func(f *IsolationForest) { f.nEstimators = n }
}

// WithMaxSamples は各木が使うサンプル数の上限を設定
func WithMaxSamples(n int) IsolationOption {
	return func(f *IsolationForest) { f.maxSamples = n }
}

// WithContamination は外れ値の想定割合を設定（0より大きく0.5以下）
func WithContamination(c float64) IsolationOption {
	return func(f *IsolationForest) { f.contamination = c }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) IsolationOption {
	return func(f *IsolationForest) { f.randomState = seed }
}

// NewIsolationForest は新しいIsolationForestを作成する
//
// 使用例:
//
//	forest := ensemble.NewIsolationForest(ensemble.WithContamination(0.01))
//	outliers, err := forest.FitOutliers(X)
func NewIsolationForest(opts ...IsolationOption) *IsolationForest {
	f := &IsolationForest{
		state:         model.NewStateManager(),
		nEstimators:   100,
		maxSamples:    256,
		contamination: 0.01,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsFitted は学習済みかどうかを返す
func (f *IsolationForest) IsFitted() bool { return f.state.IsFitted() }

func (f *IsolationForest) validate() error {
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if f.maxSamples < 2 {
		return errors.NewValidationError("max_samples", "must be at least 2", f.maxSamples)
	}
	if !(f.contamination > 0 && f.contamination <= 0.5) {
		return errors.NewConfigurationError("contamination", f.contamination, "a value in (0, 0.5]")
	}
	return nil
}

// Fit は X から孤立木を構築し、学習データのスコアから外れ値のしきい値を決める
func (f *IsolationForest) Fit(X mat.Matrix) error {
	if err := f.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "IsolationForest.Fit")
	}
	if err := errors.CheckMatrix("IsolationForest.Fit", X, rows, cols, 0); err != nil {
		return err
	}
	data := mat.DenseCopyOf(X)

	psi := f.maxSamples
	if psi > rows {
		psi = rows
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))

	// 木ごとに独立した乱数列を使うので並列でも結果は決定的
	trees := make([]iTree, f.nEstimators)
	err := parallel.ForEach(context.Background(), f.nEstimators, 0, func(_ context.Context, t int) error {
		rng := rand.New(rand.NewSource(f.randomState + int64(t)))
		sample := rng.Perm(rows)[:psi]
		var tr iTree
		tr.grow(data, sample, 0, limit, rng)
		trees[t] = tr
		return nil
	})
	if err != nil {
		return err
	}

	f.trees = trees
	f.psi = psi
	f.scores_ = f.score(data)

	sorted := append([]float64(nil), f.scores_...)
	sort.Float64s(sorted)
	f.threshold_ = stat.Quantile(1-f.contamination, stat.Empirical, sorted, nil)

	f.state.SetDimensions(cols, rows)
	f.state.SetFitted()
	log.GetLoggerWithName("ensemble").Debug("isolation forest fitted",
		log.SamplesKey, rows, "n_estimators", f.nEstimators, "threshold", f.threshold_)
	return nil
}

// grow は idx の行から部分木を作り、そのノード番号を返す
func (t *iTree) grow(X *mat.Dense, idx []int, depth, limit int, rng *rand.Rand) int {
	at := len(t.nodes)
	t.nodes = append(t.nodes, iNode{leaf: true, size: len(idx)})
	if depth >= limit || len(idx) <= 1 {
		return at
	}

	_, cols := X.Dims()
	// 値が一定でない特徴量をランダムな順で探す
	for _, feat := range rng.Perm(cols) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := X.At(i, feat)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo == hi {
			continue
		}
		split := lo + rng.Float64()*(hi-lo)
		var left, right []int
		for _, i := range idx {
			if X.At(i, feat) < split {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		l := t.grow(X, left, depth+1, limit, rng)
		r := t.grow(X, right, depth+1, limit, rng)
		t.nodes[at] = iNode{feature: feat, threshold: split, left: l, right: r}
		return at
	}
	return at
}

func (t *iTree) pathLength(x []float64) float64 {
	n, depth := 0, 0.0
	for !t.nodes[n].leaf {
		nd := t.nodes[n]
		if x[nd.feature] < nd.threshold {
			n = nd.left
		} else {
			n = nd.right
		}
		depth++
	}
	return depth + averagePath(t.nodes[n].size)
}

// averagePath は n 点の二分探索木での失敗探索の平均経路長
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		m := float64(n - 1)
		return 2*(math.Log(m)+eulerGamma) - 2*m/float64(n)
	}
}

func (f *IsolationForest) score(X *mat.Dense) []float64 {
	rows, _ := X.Dims()
	c := averagePath(f.psi)
	scores := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			x := X.RawRowView(i)
			total := 0.0
			for t := range f.trees {
				total += f.trees[t].pathLength(x)
			}
			scores[i] = math.Pow(2, -(total/float64(len(f.trees)))/c)
		}
	})
	return scores
}

// ScoreSamples は各行の異常スコアを返す。値は (0, 1] で、1に近いほど異常。
func (f *IsolationForest) ScoreSamples(X mat.Matrix) ([]float64, error) {
	if err := f.state.RequireFitted("IsolationForest", "ScoreSamples"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := f.state.RequireFeatures("IsolationForest.ScoreSamples", cols); err != nil {
		return nil, err
	}
	return f.score(mat.DenseCopyOf(X)), nil
}

// Predict は外れ値に -1、それ以外に 1 を返す
func (f *IsolationForest) Predict(X mat.Matrix) ([]int, error) {
	scores, err := f.ScoreSamples(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(scores))
	for i, s := range scores {
		out[i] = 1
		if s > f.threshold_ {
			out[i] = -1
		}
	}
	return out, nil
}

// Outliers は学習データのうち外れ値と判定した行番号を昇順で返す
func (f *IsolationForest) Outliers() ([]int, error) {
	if err := f.state.RequireFitted("IsolationForest", "Outliers"); err != nil {
		return nil, err
	}
	out := make([]int, 0)
	for i, s := range f.scores_ {
		if s > f.threshold_ {
			out = append(out, i)
		}
	}
	return out, nil
}

// FitOutliers は Fit と Outliers をまとめて行う
func (f *IsolationForest) FitOutliers(X mat.Matrix) ([]int, error) {
	if err := f.Fit(X); err != nil {
		return nil, err
	}
	return f.Outliers()
}
