package models

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

func data() (*mat.Dense, []float64) {
	X := mat.NewDense(12, 2, nil)
	y := make([]float64, 12)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%2))
		if i >= 6 {
			y[i] = 1
		}
	}
	return X, y
}

func TestNew(t *testing.T) {
	clf, err := New(DecisionTree, map[string]interface{}{"depth": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, clf.GetParams()["max_depth"])
	assert.False(t, clf.IsFitted())

	clf, err = New(NeuralNetwork, map[string]interface{}{"layers": []interface{}{8.0}, "epochs": 20.0})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, clf.GetParams()["hidden_layer_sizes"])
	assert.Equal(t, 20, clf.GetParams()["max_iter"])
}

func TestNewErrors(t *testing.T) {
	var cfg *errors.ConfigurationError

	_, err := New("random_forest", nil)
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "model type", cfg.Param)

	_, err = New(DecisionTree, map[string]interface{}{"max_depth": "deep"})
	assert.True(t, errors.As(err, &cfg))

	_, err = New(DecisionTree, map[string]interface{}{"n_estimators": 10})
	assert.True(t, errors.As(err, &cfg))
}

func TestOptimizeHyperparameters(t *testing.T) {
	X, y := data()
	best, params, err := OptimizeHyperparameters(context.Background(), DecisionTree,
		map[string][]interface{}{"depth": {1, 2}}, X, y, model_selection.SearchOptions{CV: 3})
	require.NoError(t, err)
	assert.True(t, best.IsFitted())
	assert.Contains(t, params, "max_depth")
}

func TestSaveLoad(t *testing.T) {
	X, y := data()
	for _, typ := range Types {
		t.Run(typ, func(t *testing.T) {
			clf, err := New(typ, nil)
			require.NoError(t, err)

			var buf bytes.Buffer
			var pre *errors.PreconditionError
			require.True(t, errors.As(Save(clf, &buf), &pre))

			require.NoError(t, clf.Fit(X, mat.NewDense(12, 1, y)))
			require.NoError(t, Save(clf, &buf))

			restored, err := Load(&buf)
			require.NoError(t, err)
			got, err := TypeOf(restored)
			require.NoError(t, err)
			assert.Equal(t, typ, got)

			want, err := clf.Predict(X)
			require.NoError(t, err)
			have, err := restored.Predict(X)
			require.NoError(t, err)
			assert.True(t, mat.Equal(want, have))
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	X, y := data()
	clf, err := New(DecisionTree, nil)
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, mat.NewDense(12, 1, y)))

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveFile(clf, path))
	restored, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, restored.IsFitted())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}
