package extensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlu/chain"
	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

func newChain(t *testing.T, input any) *chain.Chain {
	t.Helper()
	reg := chain.NewRegistry()
	require.NoError(t, Load(reg))
	c, err := chain.New(input, chain.WithRegistry(reg), chain.WithLogger(log.Nop()))
	require.NoError(t, err)
	return c
}

func TestLoadRegistersEverything(t *testing.T) {
	reg := chain.NewRegistry()
	require.NoError(t, Load(reg))
	for _, name := range Names() {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}

	err := Load(reg)
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg), "second load must fail")
}

func TestCustomMap(t *testing.T) {
	c := newChain(t, []float64{1, 2, 3})
	c.Apply(CustomMap, func(x float64) float64 { return x * x })
	require.NoError(t, c.Err())
	assert.Equal(t, dataset.Vector{1, 4, 9}, c.Value())
}

func TestCustomMapRejectsWrongArgument(t *testing.T) {
	c := newChain(t, []float64{1})
	c.Apply(CustomMap, "square")
	assert.Error(t, c.Err())
	assert.Equal(t, dataset.Vector{1}, c.Value())
}

func TestMaxScale(t *testing.T) {
	c := newChain(t, []float64{2, 5, 10})
	c.Apply(MaxScale)
	require.NoError(t, c.Err())
	assert.InDeltaSlice(t, []float64{0.2, 0.5, 1}, []float64(c.Value().(dataset.Vector)), 1e-12)

	z := newChain(t, []float64{0, 0})
	z.Apply(MaxScale)
	var degen *errors.DegenerateRangeError
	assert.True(t, errors.As(z.Err(), &degen))
}

func TestMaxScaleMatrix(t *testing.T) {
	c := newChain(t, [][]float64{{1, 2}, {4, 8}})
	c.Apply(MaxScale)
	require.NoError(t, c.Err())
	m := c.Value().(*dataset.Matrix)
	assert.Equal(t, []float64{0.125, 0.25, 0.5, 1}, m.Values())
}

func TestFilterRows(t *testing.T) {
	c := newChain(t, [][]float64{{1, 0}, {5, 1}, {7, 1}})
	c.Apply(FilterRows, func(row []float64) bool { return row[1] == 1 })
	require.NoError(t, c.Err())
	assert.Equal(t, [][]float64{{5, 1}, {7, 1}}, c.Value().(*dataset.Matrix).Rows())
}

func TestRemoveLowVariance(t *testing.T) {
	c := newChain(t, [][]float64{{1, 3, 0}, {1, 4, 5}, {1, 5, 9}})
	c.Apply(RemoveLowVariance, 0.0)
	require.NoError(t, c.Err())
	_, cols := c.Value().(*dataset.Matrix).Dims()
	assert.Equal(t, 2, cols)
}

func TestPCA(t *testing.T) {
	rows := [][]float64{{1, 2, 3}, {2, 4, 6.5}, {3, 6, 8.9}, {4, 8, 12.1}, {5, 10, 15}}
	c := newChain(t, rows)
	c.Apply(PCA, 2)
	require.NoError(t, c.Err())
	r, cols := c.Value().(*dataset.Matrix).Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, cols)

	bad := newChain(t, rows)
	bad.Apply(PCA, 7)
	assert.Error(t, bad.Err())
}

func TestPolynomialFeatures(t *testing.T) {
	c := newChain(t, [][]float64{{2, 3}})
	c.Apply(PolynomialFeatures, 2, true)
	require.NoError(t, c.Err())
	assert.Equal(t, []float64{1, 2, 3, 4, 6, 9}, c.Value().(*dataset.Matrix).Values())
}

func TestCluster(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {0.1, 0.2}, {0.2, 0.1},
		{10, 10}, {10.1, 9.9}, {9.8, 10.2},
	}
	c := newChain(t, rows)
	c.Apply(Cluster, 2, 1)
	require.NoError(t, c.Err())

	labels := c.Value().(dataset.Vector)
	require.Len(t, labels, 6)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.NotEqual(t, labels[0], labels[3])
}

func TestMatrixOperationsRejectVectors(t *testing.T) {
	for _, name := range []string{FilterRows, RemoveLowVariance, PCA, PolynomialFeatures, Cluster} {
		c := newChain(t, []float64{1, 2, 3})
		c.Apply(name)
		var collab *errors.CollaboratorError
		assert.True(t, errors.As(c.Err(), &collab), name)
	}
}

func TestIntArg(t *testing.T) {
	n, err := intArg([]any{3.0}, 0, "n", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = intArg(nil, 0, "n", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = intArg([]any{2.5}, 0, "n", 1)
	assert.Error(t, err)
}

func gridWithOutlier() [][]float64 {
	rows := make([][]float64, 0, 101)
	for i := 0; i < 100; i++ {
		rows = append(rows, []float64{float64(i % 10), float64(i / 10)})
	}
	return append(rows, []float64{50, 50})
}

func TestIsolationForest(t *testing.T) {
	c := newChain(t, gridWithOutlier())
	c.Apply(IsolationForest, 0.01, 42)
	require.NoError(t, c.Err())
	assert.Equal(t, dataset.Vector{100}, c.Value())
}

func TestLocalOutlierFactor(t *testing.T) {
	c := newChain(t, gridWithOutlier())
	c.Apply(LocalOutlier)
	require.NoError(t, c.Err())
	v, ok := c.Value().(dataset.Vector)
	require.True(t, ok)
	assert.Contains(t, []float64(v), 100.0)
	assert.LessOrEqual(t, len(v), 5)
}

func TestOutlierDetectorsRejectBadArguments(t *testing.T) {
	c := newChain(t, gridWithOutlier())
	c.Apply(IsolationForest, 0.9)
	assert.Equal(t, "ConfigurationError", errors.Kind(c.Err()))
	assert.Equal(t, 101, c.Value().Len())

	l := newChain(t, gridWithOutlier())
	l.Apply(LocalOutlier, "twenty")
	assert.Error(t, l.Err())
	assert.Equal(t, 101, l.Value().Len())
}
