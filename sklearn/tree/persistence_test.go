package tree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

func TestDecisionTreeClassifier_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(dt, &buf))

	restored := NewDecisionTreeClassifier()
	require.NoError(t, model.LoadModelFromReader(restored, &buf))

	assert.True(t, restored.IsFitted())
	assert.Equal(t, dt.GetParams(), restored.GetParams())

	want, err := dt.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestDecisionTreeClassifier_InvalidParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	err := dt.SetParams(map[string]interface{}{"criterion": "log_loss"})
	var cfg *errors.ConfigurationError
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "criterion", cfg.Param)
	assert.Equal(t, CriterionGini, dt.criterion)

	assert.Error(t, dt.SetParams(map[string]interface{}{"unknown": 1}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"max_depth": 2.5}))
	assert.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": 4.0}))
	assert.Equal(t, 4, dt.maxDepth)
}

func TestDecisionTreeClassifier_FeatureMismatch(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewDense(2, 1, []float64{0, 1})))

	_, err := dt.Predict(mat.NewDense(1, 2, []float64{0, 1}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}
