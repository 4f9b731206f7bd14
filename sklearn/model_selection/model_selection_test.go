package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/sklearn/tree"
)

// separable は x0 < 10 ならクラス0、それ以外はクラス1の20サンプル
func separable() (*mat.Dense, []float64) {
	X := mat.NewDense(20, 2, nil)
	y := make([]float64, 20)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		if i >= 10 {
			y[i] = 1
		}
	}
	return X, y
}

func TestTrainTestSplit(t *testing.T) {
	X, y := separable()

	split, err := TrainTestSplit(X, y, 0.25, 42)
	require.NoError(t, err)
	train, test := split.Sizes()
	assert.Equal(t, 15, train)
	assert.Equal(t, 5, test)

	// 行とラベルの対応が保たれている
	for i := 0; i < test; i++ {
		x0 := split.XTest.At(i, 0)
		assert.Equal(t, y[int(x0)], split.YTest[i])
	}

	again, err := TrainTestSplit(X, y, 0.25, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(split.XTest, again.XTest))

	// ceil(0.01 * 20) = 1
	small, err := TrainTestSplit(X, y, 0.01, 1)
	require.NoError(t, err)
	_, test = small.Sizes()
	assert.Equal(t, 1, test)
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := separable()
	for _, size := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := TrainTestSplit(X, y, size, 0)
		var cfg *errors.ConfigurationError
		assert.True(t, errors.As(err, &cfg), "test_size %v", size)
	}

	_, err := TrainTestSplit(X, y[:5], 0.2, 0)
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	one := mat.NewDense(1, 1, []float64{1})
	_, err = TrainTestSplit(one, []float64{0}, 0.5, 0)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	folds, err := KFold(10, 3, false, 0)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0])
	assert.Equal(t, []int{4, 5, 6}, folds[1])
	assert.Equal(t, []int{7, 8, 9}, folds[2])

	_, err = KFold(2, 3, false, 0)
	assert.Error(t, err)
	_, err = KFold(10, 1, false, 0)
	assert.Error(t, err)
}

func treeFactory(params map[string]interface{}) (model.Classifier, error) {
	dt := tree.NewDecisionTreeClassifier()
	if err := dt.SetParams(params); err != nil {
		return nil, err
	}
	return dt, nil
}

func TestCrossValScore(t *testing.T) {
	X, y := separable()
	scores, err := CrossValScore(context.Background(), func() (model.Classifier, error) {
		return tree.NewDecisionTreeClassifier(), nil
	}, X, y, 4, ScoringAccuracy)
	require.NoError(t, err)
	require.Len(t, scores, 4)
	mean, _ := MeanScore(scores)
	assert.GreaterOrEqual(t, mean, 0.75)

	_, err = CrossValScore(context.Background(), func() (model.Classifier, error) {
		return tree.NewDecisionTreeClassifier(), nil
	}, X, y, 4, "roc")
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}

func TestParameterGrid(t *testing.T) {
	combos, err := ParameterGrid(map[string][]interface{}{
		"max_depth": {1, 3},
		"criterion": {"gini", "entropy"},
	})
	require.NoError(t, err)
	require.Len(t, combos, 4)
	assert.Equal(t, map[string]interface{}{"criterion": "gini", "max_depth": 1}, combos[0])
	assert.Equal(t, map[string]interface{}{"criterion": "entropy", "max_depth": 3}, combos[3])

	_, err = ParameterGrid(map[string][]interface{}{"max_depth": {}})
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	X, y := separable()
	grid := map[string][]interface{}{"max_depth": {1, 2, 4}}

	res, err := Search(context.Background(), treeFactory, grid, X, y, SearchOptions{CV: 4})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 3)
	assert.Equal(t, res.Candidates[res.BestIndex].Params, res.BestParams)
	for _, c := range res.Candidates {
		assert.LessOrEqual(t, c.MeanScore, res.BestScore)
	}

	random, err := Search(context.Background(), treeFactory, grid, X, y,
		SearchOptions{Type: SearchRandom, NIter: 2, CV: 4, RandomState: 3})
	require.NoError(t, err)
	assert.Len(t, random.Candidates, 2)

	_, err = Search(context.Background(), treeFactory, grid, X, y, SearchOptions{Type: SearchRandom})
	assert.Error(t, err)

	_, err = Search(context.Background(), treeFactory, grid, X, y, SearchOptions{Type: "bayes"})
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))

	_, err = Search(context.Background(), treeFactory, map[string][]interface{}{"max_depth": {-5}}, X, y, SearchOptions{CV: 2})
	assert.Error(t, err)
}

func TestDetectLeakage(t *testing.T) {
	train := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	test := mat.NewDense(2, 2, []float64{3, 4, 7, 8})

	report, err := DetectLeakage(train, test)
	require.NoError(t, err)
	assert.True(t, report.Leaked())
	assert.Equal(t, 1, report.SharedRows)
	assert.Equal(t, []int{0}, report.SharedIndices)

	clean, err := DetectLeakage(train, mat.NewDense(1, 2, []float64{9, 9}))
	require.NoError(t, err)
	assert.False(t, clean.Leaked())

	mismatch, err := DetectLeakage(train, mat.NewDense(1, 3, nil))
	require.NoError(t, err)
	assert.True(t, mismatch.ColumnMismatch)
}

func TestPermutationImportance(t *testing.T) {
	X, y := separable()
	dt := tree.NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, mat.NewDense(len(y), 1, y)))
	before := mat.DenseCopyOf(X)

	imp, err := PermutationImportance(dt, X, y, 5, ScoringAccuracy, 0)
	require.NoError(t, err)
	require.Len(t, imp, 2)
	// 木は x0 だけで分割しているので x1 を並べ替えてもスコアは変わらない
	assert.Greater(t, imp[0], 0.2)
	assert.Equal(t, 0.0, imp[1])
	assert.True(t, mat.Equal(before, X))

	_, err = PermutationImportance(dt, X, y, 0, ScoringAccuracy, 0)
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))

	_, err = PermutationImportance(dt, X, y[:3], 1, ScoringAccuracy, 0)
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	_, err = PermutationImportance(tree.NewDecisionTreeClassifier(), X, y, 1, ScoringAccuracy, 0)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
