package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

func TestCompareModels(t *testing.T) {
	X, y := data()
	cmp, err := CompareModels(context.Background(), []Candidate{
		{Name: "stump", Type: DecisionTree, Params: map[string]interface{}{"max_depth": 1}},
		{Type: DecisionTree},
	}, X, y, 3, "accuracy")
	require.NoError(t, err)

	require.Len(t, cmp.Scores, 2)
	assert.Equal(t, "stump", cmp.Scores[0].Name)
	assert.Equal(t, DecisionTree, cmp.Scores[1].Name)
	// どちらも根の1回の分割で純粋になるので同点、先の候補が選ばれる
	assert.Equal(t, cmp.Scores[0].MeanScore, cmp.Scores[1].MeanScore)
	assert.Equal(t, 0, cmp.BestIndex)
	assert.Equal(t, "stump", cmp.BestScore().Name)
	assert.False(t, cmp.Best.IsFitted())
	assert.Equal(t, 1, cmp.Best.GetParams()["max_depth"])
}

func TestCompareModelsErrors(t *testing.T) {
	X, y := data()
	ctx := context.Background()

	_, err := CompareModels(ctx, nil, X, y, 3, "accuracy")
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))

	_, err = CompareModels(ctx, []Candidate{{Type: DecisionTree}, {Type: "svm"}}, X, y, 3, "accuracy")
	assert.Equal(t, "ConfigurationError", errors.Kind(err))

	_, err = CompareModels(ctx, []Candidate{{Type: DecisionTree}}, X, y, 3, "roc")
	assert.Equal(t, "ConfigurationError", errors.Kind(err))
}

func TestFeatureImportances(t *testing.T) {
	X, y := data()
	yCol := mat.NewDense(len(y), 1, y)

	dt, err := New(DecisionTree, nil)
	require.NoError(t, err)
	_, err = FeatureImportances(dt, X, y)
	assert.Equal(t, "PreconditionError", errors.Kind(err))

	require.NoError(t, dt.Fit(X, yCol))
	imp, err := FeatureImportances(dt, X, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, imp, 1e-9)

	// 自前の重要度を持たないモデルは並べ替え重要度
	nn, err := New(NeuralNetwork, map[string]interface{}{"max_iter": 50})
	require.NoError(t, err)
	require.NoError(t, nn.Fit(X, yCol))
	imp, err = FeatureImportances(nn, X, y)
	require.NoError(t, err)
	assert.Len(t, imp, 2)
}
