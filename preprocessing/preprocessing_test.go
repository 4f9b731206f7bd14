package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

func mustMatrix(t *testing.T, rows [][]float64) *dataset.Matrix {
	t.Helper()
	m, err := dataset.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	scaler := NewStandardScalerDefault()

	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, scaled)
		sum := 0.0
		for _, v := range col {
			sum += v
		}
		assert.InDelta(t, 0, sum/4, 1e-12)
	}

	back, err := scaler.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestStandardScalerNotFitted(t *testing.T) {
	_, err := NewStandardScalerDefault().Transform(mat.NewDense(1, 1, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 5, 5, 5, 10, 5})

	scaler := NewMinMaxScaler()
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, scaled))
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 1, scaled))

	strict := NewMinMaxScaler(WithRejectConstant(true))
	err = strict.Fit(X)
	var degErr *errors.DegenerateRangeError
	require.True(t, errors.As(err, &degErr))
	assert.Equal(t, 5.0, degErr.Value)

	ranged := NewMinMaxScaler(WithFeatureRange(-1, 1))
	out, err := ranged.FitTransform(mat.NewDense(2, 1, []float64{3, 7}))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1}, mat.Col(nil, 0, out))
}

func TestNormalizeVector(t *testing.T) {
	out, err := Normalize(dataset.Vector{2, 4, 6})
	require.NoError(t, err)
	assert.Equal(t, dataset.Vector{0, 0.5, 1}, out)

	again, err := Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(dataset.Vector{3, 3})
	var degErr *errors.DegenerateRangeError
	assert.True(t, errors.As(err, &degErr))

	_, err = Normalize(dataset.Vector{1, math.NaN()})
	var collabErr *errors.CollaboratorError
	assert.True(t, errors.As(err, &collabErr))

	_, err = Normalize(mustMatrix(t, [][]float64{{1, math.NaN()}, {2, 3}}))
	assert.True(t, errors.As(err, &collabErr))
}

func TestNormalizeMatrixPerColumn(t *testing.T) {
	out, err := Normalize(mustMatrix(t, [][]float64{{0, 100}, {10, 300}}))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}, {1, 1}}, out.(*dataset.Matrix).Rows())
}

func TestFillMissing(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		strategy string
		want     dataset.Vector
	}{
		{StrategyMean, dataset.Vector{1, 2, 3, 2}},
		{StrategyMedian, dataset.Vector{1, 2, 3, 2}},
		{StrategyConstant, dataset.Vector{1, 2, 3, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			out, err := FillMissing(dataset.Vector{1, 2, 3, nan}, tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	out, err := FillMissing(dataset.Vector{5, 5, 1, nan}, StrategyMode)
	require.NoError(t, err)
	assert.Equal(t, dataset.Vector{5, 5, 1, 5}, out)
}

func TestFillMissingRejectsUnknownStrategy(t *testing.T) {
	_, err := FillMissing(dataset.Vector{1}, "interpolate")
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, Strategies, cfgErr.Allowed)
}

func TestFillMissingFrame(t *testing.T) {
	f, err := dataset.NewFrame(
		dataset.NumericColumn("x", []float64{1, math.NaN(), 3}),
		dataset.CategoricalColumn("c", []string{"b", "a", ""}),
	)
	require.NoError(t, err)

	out, err := FillMissing(f, StrategyMean)
	require.NoError(t, err)
	filled := out.(*dataset.Frame)
	x, _ := filled.Column("x")
	assert.Equal(t, []float64{1, 2, 3}, x.Floats)
	c, _ := filled.Column("c")
	assert.Equal(t, "a", c.Strings[2], "ties resolve to the first category in sorted order")

	out, err = FillMissing(f, StrategyConstant)
	require.NoError(t, err)
	c, _ = out.(*dataset.Frame).Column("c")
	assert.Equal(t, ConstantFillCategory, c.Strings[2])

	orig, _ := f.Column("x")
	assert.True(t, math.IsNaN(orig.Floats[1]), "input must not be mutated")
}

func TestFillMissingMatrixPerColumn(t *testing.T) {
	nan := math.NaN()
	out, err := FillMissing(mustMatrix(t, [][]float64{{1, 10}, {nan, nan}, {3, 30}}), StrategyMean)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 10}, {2, 20}, {3, 30}}, out.(*dataset.Matrix).Rows())
}

func TestEncodeCategorical(t *testing.T) {
	f, err := dataset.NewFrame(
		dataset.NumericColumn("n", []float64{1, 2, 3}),
		dataset.CategoricalColumn("color", []string{"red", "blue", ""}),
	)
	require.NoError(t, err)

	onehot, err := EncodeCategorical(f, EncodingOneHot)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "color_blue", "color_red"}, onehot.Names())
	blue, _ := onehot.Column("color_blue")
	assert.Equal(t, []float64{0, 1, 0}, blue.Floats)

	label, err := EncodeCategorical(f, EncodingLabel)
	require.NoError(t, err)
	codes, _ := label.Column("color")
	assert.Equal(t, 1.0, codes.Floats[0])
	assert.Equal(t, 0.0, codes.Floats[1])
	assert.True(t, math.IsNaN(codes.Floats[2]))

	_, err = EncodeCategorical(f, "binary")
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRemoveLowVarianceFeatures(t *testing.T) {
	m := mustMatrix(t, [][]float64{{1, 7, 0}, {2, 7, 1}, {3, 7, 0}})
	out, keep, err := RemoveLowVarianceFeatures(m, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, keep)
	_, c := out.Dims()
	assert.Equal(t, 2, c)

	_, _, err = RemoveLowVarianceFeatures(mustMatrix(t, [][]float64{{1}, {1}}), 0)
	assert.Error(t, err)
}

func TestPCA(t *testing.T) {
	m := mustMatrix(t, [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}})
	res, err := PCA(m, 1)
	require.NoError(t, err)

	r, c := res.Transformed.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 1, c)
	// Perfectly collinear data: the first component carries all variance.
	require.Len(t, res.ExplainedVariance, 1)
	assert.Greater(t, res.ExplainedVariance[0], 0.0)

	_, err = PCA(m, 3)
	assert.Error(t, err)
}

func TestPolynomialFeatures(t *testing.T) {
	m := mustMatrix(t, [][]float64{{2, 3}})

	out, err := PolynomialFeatures(m, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 6, 9}, out.Row(0))

	withBias, err := PolynomialFeatures(m, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 6, 9}, withBias.Row(0))
}
