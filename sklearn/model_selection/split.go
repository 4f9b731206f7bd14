// Package model_selection はデータ分割、交差検証、ハイパーパラメータ探索、
// データリークの検出を提供します。
package model_selection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Split は訓練データとテストデータの4分割
type Split struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []float64
	YTest  []float64
}

// TrainTestSplit は X, y をシャッフルして訓練用とテスト用に分割する。
// テストサンプル数は ceil(testSize * n)。同じ randomState なら同じ分割になる。
//
// 使用例:
//
//	split, err := model_selection.TrainTestSplit(X, y, 0.2, 42)
func TrainTestSplit(X *mat.Dense, y []float64, testSize float64, randomState int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, errors.NewConfigurationError("test_size", testSize, "a value strictly between 0 and 1")
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	n, cols := X.Dims()
	if n == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			"test_size leaves no training samples")
	}

	perm := rand.New(rand.NewSource(randomState)).Perm(n)
	split := &Split{
		XTrain: mat.NewDense(nTrain, cols, nil),
		XTest:  mat.NewDense(nTest, cols, nil),
		YTrain: make([]float64, nTrain),
		YTest:  make([]float64, nTest),
	}
	for i, idx := range perm {
		row := X.RawRowView(idx)
		if i < nTest {
			split.XTest.SetRow(i, row)
			split.YTest[i] = y[idx]
		} else {
			split.XTrain.SetRow(i-nTest, row)
			split.YTrain[i-nTest] = y[idx]
		}
	}
	return split, nil
}

// Sizes は訓練・テストのサンプル数を返す
func (s *Split) Sizes() (train, test int) {
	return len(s.YTrain), len(s.YTest)
}

// KFold は n 個のインデックスを k 個のフォールドに分ける。
// shuffle が true の場合は randomState でシャッフルしてから分ける。
// 先頭の n%k 個のフォールドは1つ多くのサンプルを持つ。
func KFold(n, k int, shuffle bool, randomState int64) ([][]int, error) {
	if k < 2 {
		return nil, errors.NewValidationError("cv", "must be at least 2", k)
	}
	if n < k {
		return nil, errors.NewValueError("KFold", "n_splits cannot be greater than the number of samples")
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rand.New(rand.NewSource(randomState)).Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		folds[f] = indices[start : start+size]
		start += size
	}
	return folds, nil
}

// takeRows は指定した行を抜き出した新しい行列とラベルを返す
func takeRows(X *mat.Dense, y []float64, rows []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	outX := mat.NewDense(len(rows), cols, nil)
	outY := make([]float64, len(rows))
	for i, r := range rows {
		outX.SetRow(i, X.RawRowView(r))
		outY[i] = y[r]
	}
	return outX, outY
}
