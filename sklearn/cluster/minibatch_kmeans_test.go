package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

func threeBlobs() *mat.Dense {
	return mat.NewDense(9, 2, []float64{
		0, 0,
		0.1, 0.2,
		0.2, 0.1,
		10, 10,
		10.1, 9.9,
		9.8, 10.2,
		-10, 10,
		-9.9, 10.1,
		-10.2, 9.8,
	})
}

func TestMiniBatchKMeans_SeparatesBlobs(t *testing.T) {
	km := NewMiniBatchKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7), WithKMeansNInit(5))
	require.NoError(t, km.Fit(threeBlobs()))

	labels := km.Labels()
	require.Len(t, labels, 9)
	for _, group := range [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}} {
		assert.Equal(t, labels[group[0]], labels[group[1]])
		assert.Equal(t, labels[group[0]], labels[group[2]])
	}
	assert.NotEqual(t, labels[0], labels[3])
	assert.NotEqual(t, labels[0], labels[6])
	assert.NotEqual(t, labels[3], labels[6])

	assert.Len(t, km.ClusterCenters(), 3)
	assert.Less(t, km.Inertia(), 1.0)

	pred, err := km.Predict(mat.NewDense(1, 2, []float64{9.5, 9.5}))
	require.NoError(t, err)
	assert.Equal(t, float64(labels[3]), pred.At(0, 0))

	dist, err := km.Transform(threeBlobs())
	require.NoError(t, err)
	r, c := dist.Dims()
	assert.Equal(t, 9, r)
	assert.Equal(t, 3, c)
}

func TestMiniBatchKMeans_Deterministic(t *testing.T) {
	a := NewMiniBatchKMeans(WithKMeansNClusters(2), WithKMeansRandomState(1), WithKMeansInit(InitRandom))
	b := NewMiniBatchKMeans(WithKMeansNClusters(2), WithKMeansRandomState(1), WithKMeansInit(InitRandom))
	require.NoError(t, a.Fit(threeBlobs()))
	require.NoError(t, b.Fit(threeBlobs()))
	assert.Equal(t, a.Labels(), b.Labels())
}

func TestMiniBatchKMeans_Errors(t *testing.T) {
	_, err := NewMiniBatchKMeans().Predict(threeBlobs())
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewMiniBatchKMeans(WithKMeansNClusters(20)).Fit(threeBlobs())
	assert.Error(t, err)

	err = NewMiniBatchKMeans(WithKMeansInit("grid")).Fit(threeBlobs())
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))

	km := NewMiniBatchKMeans(WithKMeansNClusters(2))
	require.NoError(t, km.Fit(threeBlobs()))
	_, err = km.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}
