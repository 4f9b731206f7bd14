package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// 10x10 の格子と、最後の行に遠く離れた1点
func gridWithOutlier() *mat.Dense {
	X := mat.NewDense(101, 2, nil)
	for i := 0; i < 100; i++ {
		X.Set(i, 0, float64(i%10))
		X.Set(i, 1, float64(i/10))
	}
	X.Set(100, 0, 50)
	X.Set(100, 1, 50)
	return X
}

func TestLocalOutlierFactor_FlagsLowestDensity(t *testing.T) {
	lof := NewLocalOutlierFactor()
	outliers, err := lof.FitOutliers(gridWithOutlier())
	require.NoError(t, err)

	assert.Contains(t, outliers, 100)
	assert.LessOrEqual(t, len(outliers), 5)

	nof := lof.NegativeOutlierFactor()
	require.Len(t, nof, 101)
	for i := 0; i < 100; i++ {
		assert.Greater(t, nof[i], nof[100], "row %d", i)
	}
	assert.Less(t, nof[100], -2.0)
}

func TestLocalOutlierFactor_UniformDensity(t *testing.T) {
	// 等間隔の点は密度が揃うので因子はほぼ -1
	X := mat.NewDense(10, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	lof := NewLocalOutlierFactor(WithNNeighbors(2))
	require.NoError(t, lof.Fit(X))
	for i, v := range lof.NegativeOutlierFactor() {
		assert.InDelta(t, -1.0, v, 0.35, "row %d", i)
	}
}

func TestLocalOutlierFactor_NeighborsClamped(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 10})
	lof := NewLocalOutlierFactor(WithNNeighbors(20), WithContamination(0.5))
	outliers, err := lof.FitOutliers(X)
	require.NoError(t, err)
	assert.Len(t, lof.NegativeOutlierFactor(), 3)
	assert.Len(t, outliers, 1)
}

func TestLocalOutlierFactor_Errors(t *testing.T) {
	err := NewLocalOutlierFactor(WithNNeighbors(0)).Fit(gridWithOutlier())
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))

	err = NewLocalOutlierFactor(WithContamination(0)).Fit(gridWithOutlier())
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfg))

	err = NewLocalOutlierFactor().Fit(mat.NewDense(1, 1, []float64{3}))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = NewLocalOutlierFactor().Outliers()
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
