// Package cluster は教師なしクラスタリングを提供します。
package cluster

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/core/parallel"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// 初期化方法
const (
	InitKMeansPlusPlus = "k-means++"
	InitRandom         = "random"
)

// predictThreshold を超える行数では割り当てを並列化する
const predictThreshold = 1000

// MiniBatchKMeans はミニバッチK-meansクラスタリング
type MiniBatchKMeans struct {
	state *model.StateManager

	// ハイパーパラメータ
	nClusters        int     // クラスタ数
	init             string  // 初期化方法: "k-means++", "random"
	maxIter          int     // 最大イテレーション数
	batchSize        int     // ミニバッチサイズ
	randomState      int64   // 乱数シード
	tol              float64 // 収束判定の許容誤差
	maxNoImprovement int     // 改善なしの最大イテレーション数
	nInit            int     // 異なる初期化での実行回数

	// 学習パラメータ
	clusterCenters_ [][]float64 // クラスタ中心（nClusters x nFeatures）
	labels_         []int       // 各サンプルのクラスタラベル
	inertia_        float64     // クラスタ内平方和誤差
	nIter_          int         // 実行されたイテレーション数

	mu sync.RWMutex
}

// KMeansOption はMiniBatchKMeansの設定オプション
type KMeansOption func(*MiniBatchKMeans)

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.nClusters = n }
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(k *MiniBatchKMeans) { k.init = init }
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.maxIter = maxIter }
}

// WithKMeansBatchSize はミニバッチサイズを設定
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.batchSize = batchSize }
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(k *MiniBatchKMeans) { k.randomState = seed }
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(k *MiniBatchKMeans) { k.tol = tol }
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(n int) KMeansOption {
	return func(k *MiniBatchKMeans) { k.nInit = n }
}

// NewMiniBatchKMeans は新しいMiniBatchKMeansを作成
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	k := &MiniBatchKMeans{
		state:            model.NewStateManager(),
		nClusters:        3,
		init:             InitKMeansPlusPlus,
		maxIter:          100,
		batchSize:        100,
		randomState:      0,
		tol:              0.0,
		maxNoImprovement: 10,
		nInit:            3,
	}
	for _, opt := range options {
		opt(k)
	}
	return k
}

// IsFitted は学習済みかどうかを返す
func (k *MiniBatchKMeans) IsFitted() bool { return k.state.IsFitted() }

func (k *MiniBatchKMeans) validate(rows int) error {
	if k.nClusters < 1 {
		return errors.NewValidationError("n_clusters", "must be at least 1", k.nClusters)
	}
	if k.init != InitKMeansPlusPlus && k.init != InitRandom {
		return errors.NewConfigurationError("init", k.init, InitKMeansPlusPlus, InitRandom)
	}
	if k.maxIter < 1 || k.batchSize < 1 || k.nInit < 1 {
		return errors.NewValidationError("max_iter/batch_size/n_init", "must be positive",
			[]int{k.maxIter, k.batchSize, k.nInit})
	}
	if rows < k.nClusters {
		return errors.NewValueError("MiniBatchKMeans.Fit",
			"n_samples must be at least n_clusters")
	}
	return nil
}

// run は1回の初期化から得られた結果
type run struct {
	centers [][]float64
	inertia float64
	nIter   int
}

// Fit はクラスタ中心を学習する。nInit 回の初期化を並列に実行し、
// 慣性が最小の結果を採用する。
func (k *MiniBatchKMeans) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MiniBatchKMeans.Fit")
	}
	if err := k.validate(rows); err != nil {
		return err
	}
	if err := errors.CheckMatrix("MiniBatchKMeans.Fit", X, rows, cols, 0); err != nil {
		return errors.NewCollaboratorError("cluster", errors.Wrap(errors.ErrMissingValues, err.Error()))
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}

	runs := make([]run, k.nInit)
	err := parallel.ForEach(context.Background(), k.nInit, 0, func(_ context.Context, r int) error {
		rng := rand.New(rand.NewSource(k.randomState + int64(r)))
		runs[r] = k.fitSingleRun(data, rng)
		return nil
	})
	if err != nil {
		return err
	}

	best := runs[0]
	for _, r := range runs[1:] {
		if r.inertia < best.inertia {
			best = r
		}
	}

	k.mu.Lock()
	k.clusterCenters_ = best.centers
	k.inertia_ = best.inertia
	k.nIter_ = best.nIter
	k.labels_ = assign(data, best.centers)
	k.mu.Unlock()

	log.GetLoggerWithName("MiniBatchKMeans").Debug("clustering finished",
		log.SamplesKey, rows, "inertia", best.inertia, "n_iter", best.nIter)

	k.state.SetDimensions(cols, rows)
	k.state.SetFitted()
	return nil
}

// fitSingleRun は単一回の学習を実行
func (k *MiniBatchKMeans) fitSingleRun(data [][]float64, rng *rand.Rand) run {
	centers := k.initializeCenters(data, rng)
	counts := make([]int, k.nClusters)

	prevInertia := math.Inf(1)
	noImprovement := 0
	nIter := 0
	for iter := 1; iter <= k.maxIter; iter++ {
		nIter = iter
		for _, idx := range selectMiniBatch(len(data), k.batchSize, rng) {
			sample := data[idx]
			c := nearest(sample, centers)
			// 学習率 1/count の逐次平均で中心を更新
			counts[c]++
			eta := 1.0 / float64(counts[c])
			for j := range centers[c] {
				centers[c][j] = (1-eta)*centers[c][j] + eta*sample[j]
			}
		}

		inertia := computeInertia(data, centers)
		if prevInertia-inertia <= k.tol {
			noImprovement++
			if noImprovement >= k.maxNoImprovement {
				break
			}
		} else {
			noImprovement = 0
		}
		prevInertia = inertia
	}
	return run{centers: centers, inertia: computeInertia(data, centers), nIter: nIter}
}

// Predict は各サンプルの最近傍クラスタを返す（n_samples × 1）
func (k *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.state.RequireFitted("MiniBatchKMeans", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := k.state.RequireFeatures("MiniBatchKMeans.Predict", cols); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, float64(nearest(mat.Row(nil, i, X), k.clusterCenters_)))
		}
	})
	return out, nil
}

// FitPredict は学習と予測を同時に行う
func (k *MiniBatchKMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Predict(X)
}

// Transform はデータを各クラスタ中心との距離に変換
func (k *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.state.RequireFitted("MiniBatchKMeans", "Transform"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := k.state.RequireFeatures("MiniBatchKMeans.Transform", cols); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	distances := mat.NewDense(rows, k.nClusters, nil)
	for i := 0; i < rows; i++ {
		sample := mat.Row(nil, i, X)
		for c, center := range k.clusterCenters_ {
			distances.Set(i, c, floats.Distance(sample, center, 2))
		}
	}
	return distances, nil
}

// ClusterCenters は学習されたクラスタ中心を返す
func (k *MiniBatchKMeans) ClusterCenters() [][]float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()

	centers := make([][]float64, len(k.clusterCenters_))
	for i, c := range k.clusterCenters_ {
		centers[i] = append([]float64(nil), c...)
	}
	return centers
}

// Labels は学習データのクラスタラベルを返す
func (k *MiniBatchKMeans) Labels() []int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]int(nil), k.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (k *MiniBatchKMeans) Inertia() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.inertia_
}

// NIterations は採用した実行のイテレーション数を返す
func (k *MiniBatchKMeans) NIterations() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.nIter_
}

// initializeCenters はクラスタ中心を初期化
func (k *MiniBatchKMeans) initializeCenters(data [][]float64, rng *rand.Rand) [][]float64 {
	if k.init == InitRandom {
		centers := make([][]float64, k.nClusters)
		for i, idx := range rng.Perm(len(data))[:k.nClusters] {
			centers[i] = append([]float64(nil), data[idx]...)
		}
		return centers
	}
	return initKMeansPlusPlus(data, k.nClusters, rng)
}

// initKMeansPlusPlus は既存の中心からの距離の二乗に比例した確率で次の中心を選ぶ
func initKMeansPlusPlus(data [][]float64, nClusters int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, nClusters)
	centers = append(centers, append([]float64(nil), data[rng.Intn(len(data))]...))

	distances := make([]float64, len(data))
	for len(centers) < nClusters {
		total := 0.0
		for i, sample := range data {
			d := floats.Distance(sample, centers[nearest(sample, centers)], 2)
			distances[i] = d * d
			total += distances[i]
		}

		selected := rng.Intn(len(data))
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range distances {
				cum += d
				if cum >= target && d > 0 {
					selected = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), data[selected]...))
	}
	return centers
}

// selectMiniBatch はミニバッチのサンプルインデックスを選択
func selectMiniBatch(nSamples, batchSize int, rng *rand.Rand) []int {
	if batchSize > nSamples {
		batchSize = nSamples
	}
	return rng.Perm(nSamples)[:batchSize]
}

// nearest は最近傍クラスタのインデックスを返す
func nearest(sample []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := floats.Distance(sample, center, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func assign(data, centers [][]float64) []int {
	labels := make([]int, len(data))
	for i, sample := range data {
		labels[i] = nearest(sample, centers)
	}
	return labels
}

// computeInertia は慣性（クラスタ内平方和誤差）を計算
func computeInertia(data, centers [][]float64) float64 {
	inertia := 0.0
	for _, sample := range data {
		d := floats.Distance(sample, centers[nearest(sample, centers)], 2)
		inertia += d * d
	}
	return inertia
}
