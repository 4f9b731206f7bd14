package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestBinaryPrecisionRecallF1(t *testing.T) {
	yTrue := vec(1, 0, 1, 1, 0)
	yPred := vec(1, 1, 1, 1, 0)

	p, err := Precision(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, p, 1e-12)

	r, err := Recall(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	f, err := F1(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 6.0/7.0, f, 1e-12)
}

func TestMulticlassMacroPrecision(t *testing.T) {
	p, err := Precision(vec(0, 1, 2, 2), vec(0, 2, 2, 2))
	require.NoError(t, err)
	assert.InDelta(t, 5.0/9.0, p, 1e-12)
}

func TestPrecisionWithoutPositives(t *testing.T) {
	p, err := Precision(vec(0, 0, 0), vec(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
}

func TestPrecisionErrors(t *testing.T) {
	_, err := Precision(nil, vec(1))
	assert.Error(t, err)

	_, err = Recall(vec(1, 0), vec(1))
	assert.Error(t, err)

	_, err = F1(&mat.VecDense{}, &mat.VecDense{})
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, labels, err := ConfusionMatrix(vec(1, 0, 1, 1, 0), vec(1, 1, 1, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, labels)
	assert.Equal(t, []float64{1, 1, 0, 3}, cm.RawMatrix().Data)
}

func TestROCCurve(t *testing.T) {
	fpr, tpr, thresholds, err := ROCCurve(vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, fpr)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, tpr)
	assert.True(t, math.IsInf(thresholds[0], 1))
	assert.Equal(t, 0.1, thresholds[len(thresholds)-1])

	_, _, _, err = ROCCurve(vec(0, 2), vec(0.1, 0.2))
	assert.Error(t, err)
}

func TestROCCurveTiedScores(t *testing.T) {
	fpr, tpr, _, err := ROCCurve(vec(0, 1, 0, 1), vec(0.5, 0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, fpr)
	assert.Equal(t, []float64{0, 1}, tpr)
}
