package neural_network

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0.5, 0.2,
		0.2, 0.6,
		0.4, 0.4,
		5, 5,
		5.5, 4.8,
		4.6, 5.2,
		5.1, 5.4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestMLPClassifier_FitPredict(t *testing.T) {
	X, y := blobs()
	clf := NewMLPClassifier(WithHiddenLayerSizes(8), WithLearningRate(0.5), WithMaxIter(1000))
	require.NoError(t, clf.Fit(X, y))
	assert.True(t, clf.IsFitted())

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0), "sample %d", i)
	}

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}

	curve := clf.LossCurve()
	require.NotEmpty(t, curve)
	assert.Less(t, curve[len(curve)-1], curve[0])
}

func TestMLPClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0.3, 0.1,
		0, 10,
		0.2, 9.7,
		10, 0,
		9.8, 0.3,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})

	clf := NewMLPClassifier(WithHiddenLayerSizes(16), WithActivation(ActivationTanh), WithLearningRate(0.5), WithMaxIter(3000))
	require.NoError(t, clf.Fit(X, y))

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0), "sample %d", i)
	}
}

func TestMLPClassifier_ConvergenceWarning(t *testing.T) {
	provider, buf := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	defer log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo))

	X, y := blobs()
	clf := NewMLPClassifier(WithMaxIter(1))
	require.NoError(t, clf.Fit(X, y))

	assert.Contains(t, buf.String(), "MLPClassifier")
	assert.Equal(t, 1, clf.NIter())
}

func TestMLPClassifier_Divergence(t *testing.T) {
	X, y := blobs()
	clf := NewMLPClassifier(WithLearningRate(1e300), WithMaxIter(20))

	err := clf.Fit(X, y)
	var unstable *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &unstable))
	assert.Equal(t, "MLPClassifier.Fit", unstable.Operation)
	assert.False(t, clf.IsFitted())
}

func TestMLPClassifier_SigmoidSaturates(t *testing.T) {
	clf := NewMLPClassifier(WithActivation(ActivationSigmoid))
	assert.InDelta(t, 0.0, clf.activate(-1000), 1e-12)
	assert.InDelta(t, 1.0, clf.activate(1000), 1e-12)
	assert.InDelta(t, 0.5, clf.activate(0), 1e-12)
}

func TestMLPClassifier_Errors(t *testing.T) {
	X, y := blobs()

	_, err := NewMLPClassifier().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewMLPClassifier(WithActivation("softplus")).Fit(X, y)
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))

	single := mat.NewDense(2, 1, []float64{0, 0})
	assert.Error(t, NewMLPClassifier().Fit(mat.NewDense(2, 1, []float64{1, 2}), single))
}

func TestMLPClassifier_SetParams(t *testing.T) {
	clf := NewMLPClassifier()
	require.NoError(t, clf.SetParams(map[string]interface{}{
		"hidden_layer_sizes": []interface{}{4.0, 2.0},
		"activation":         "sigmoid",
		"max_iter":           50,
	}))
	params := clf.GetParams()
	assert.Equal(t, []int{4, 2}, params["hidden_layer_sizes"])
	assert.Equal(t, "sigmoid", params["activation"])
	assert.Equal(t, 50, params["max_iter"])

	assert.Error(t, clf.SetParams(map[string]interface{}{"learning_rate": -1.0}))
	assert.Equal(t, 0.1, clf.GetParams()["learning_rate"])
}

func TestMLPClassifier_GobRoundTrip(t *testing.T) {
	X, y := blobs()
	clf := NewMLPClassifier(WithMaxIter(200))
	require.NoError(t, clf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(clf, &buf))
	restored := NewMLPClassifier()
	require.NoError(t, model.LoadModelFromReader(restored, &buf))

	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}
