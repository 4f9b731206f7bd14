// Package neighbors は近傍に基づく外れ値検出を提供します。
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/core/parallel"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// 重複点で到達可能距離が0になったときの下駄
const lrdEpsilon = 1e-10

// LocalOutlierFactor は局所密度が近傍より低い点を外れ値とみなす
type LocalOutlierFactor struct {
	state *model.StateManager

	// ハイパーパラメータ
	nNeighbors    int
	contamination float64

	// 学習パラメータ
	negativeOutlierFactor_ []float64
	threshold_             float64
}

// LOFOption はLocalOutlierFactorの設定オプション
type LOFOption func(*LocalOutlierFactor)

// WithNNeighbors は密度を測る近傍数を設定
func WithNNeighbors(k int) LOFOption {
	return func(l *LocalOutlierFactor) { l.nNeighbors = k }
}

// WithContamination は外れ値の想定割合を設定（0より大きく0.5以下）
func WithContamination(c float64) LOFOption {
	return func(l *LocalOutlierFactor) { l.contamination = c }
}

// NewLocalOutlierFactor は新しいLocalOutlierFactorを作成する
//
// 使用例:
//
//	lof := neighbors.NewLocalOutlierFactor(neighbors.WithNNeighbors(20))
//	outliers, err := lof.FitOutliers(X)
func NewLocalOutlierFactor(opts ...LOFOption) *LocalOutlierFactor {
	l := &LocalOutlierFactor{
		state:         model.NewStateManager(),
		nNeighbors:    20,
		contamination: 0.05,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsFitted は学習済みかどうかを返す
func (l *LocalOutlierFactor) IsFitted() bool { return l.state.IsFitted() }

// Fit は各点の局所外れ値因子を計算する。近傍数が点の数以上なら n-1 に切り詰める。
func (l *LocalOutlierFactor) Fit(X mat.Matrix) error {
	if l.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", l.nNeighbors)
	}
	if !(l.contamination > 0 && l.contamination <= 0.5) {
		return errors.NewConfigurationError("contamination", l.contamination, "a value in (0, 0.5]")
	}
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LocalOutlierFactor.Fit")
	}
	if err := errors.CheckMatrix("LocalOutlierFactor.Fit", X, rows, cols, 0); err != nil {
		return err
	}
	data := mat.DenseCopyOf(X)

	k := l.nNeighbors
	if k > rows-1 {
		k = rows - 1
	}

	// 各点の k 近傍とその距離
	neighbors := make([][]int, rows)
	dists := make([][]float64, rows)
	kDist := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, 500, func(start, end int) {
		order := make([]int, rows)
		d := make([]float64, rows)
		for i := start; i < end; i++ {
			xi := data.RawRowView(i)
			for j := 0; j < rows; j++ {
				order[j] = j
				d[j] = floats.Distance(xi, data.RawRowView(j), 2)
			}
			// 自分自身は距離0で先頭に来るとは限らないので除外してから並べる
			order[i], order[rows-1] = order[rows-1], order[i]
			cand := order[:rows-1]
			sort.SliceStable(cand, func(a, b int) bool { return d[cand[a]] < d[cand[b]] })

			neighbors[i] = append([]int(nil), cand[:k]...)
			dists[i] = make([]float64, k)
			for n, j := range neighbors[i] {
				dists[i][n] = d[j]
			}
			kDist[i] = dists[i][k-1]
		}
	})

	// 局所到達可能密度
	lrd := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for n, j := range neighbors[i] {
			sum += max(kDist[j], dists[i][n])
		}
		lrd[i] = 1 / (sum/float64(k) + lrdEpsilon)
	}

	nof := make([]float64, rows)
	for i := 0; i < rows; i++ {
		ratio := 0.0
		for _, j := range neighbors[i] {
			ratio += lrd[j] / lrd[i]
		}
		nof[i] = -ratio / float64(k)
	}

	sorted := append([]float64(nil), nof...)
	sort.Float64s(sorted)
	l.threshold_ = stat.Quantile(l.contamination, stat.Empirical, sorted, nil)
	l.negativeOutlierFactor_ = nof

	l.state.SetDimensions(cols, rows)
	l.state.SetFitted()
	log.GetLoggerWithName("neighbors").Debug("local outlier factor fitted",
		log.SamplesKey, rows, "n_neighbors", k, "threshold", l.threshold_)
	return nil
}

// NegativeOutlierFactor は学習データの局所外れ値因子の符号を反転した値を返す。
// 小さいほど異常で、通常の点は -1 付近になる。
func (l *LocalOutlierFactor) NegativeOutlierFactor() []float64 {
	return append([]float64(nil), l.negativeOutlierFactor_...)
}

// Outliers は因子が想定割合の分位点より低い行番号を昇順で返す
func (l *LocalOutlierFactor) Outliers() ([]int, error) {
	if err := l.state.RequireFitted("LocalOutlierFactor", "Outliers"); err != nil {
		return nil, err
	}
	out := make([]int, 0)
	for i, v := range l.negativeOutlierFactor_ {
		if v < l.threshold_ {
			out = append(out, i)
		}
	}
	return out, nil
}

// FitOutliers は Fit と Outliers をまとめて行う
func (l *LocalOutlierFactor) FitOutliers(X mat.Matrix) ([]int, error) {
	if err := l.Fit(X); err != nil {
		return nil, err
	}
	return l.Outliers()
}
