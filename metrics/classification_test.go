package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		yPred *mat.VecDense
		want  float64
	}{
		{"完全分離", vec(0, 0, 0, 1, 1, 1), vec(0.1, 0.2, 0.3, 0.7, 0.8, 0.9), 1},
		{"完全逆転", vec(0, 0, 0, 1, 1, 1), vec(0.9, 0.8, 0.7, 0.3, 0.2, 0.1), 0},
		{"全て同順位", vec(0, 1, 0, 1), vec(0.5, 0.5, 0.5, 0.5), 0.5},
		{"一部逆転", vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8), 0.75},
		{"陽性のみ", vec(1, 1, 1), vec(0.2, 0.5, 0.9), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestAUCErrors(t *testing.T) {
	_, err := AUC(vec(0, 1), vec(0.5))
	assert.Error(t, err)

	_, err = AUC(&mat.VecDense{}, &mat.VecDense{})
	assert.Error(t, err)

	// ラベルは0/1のみ
	_, err = AUC(vec(0, 2), vec(0.1, 0.9))
	assert.Error(t, err)
}

func TestAUCMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	yPred := mat.NewDense(4, 2, []float64{
		0.1, 0.9,
		0.4, 0.6,
		0.35, 0.65,
		0.8, 0.2,
	})
	got, err := AUCMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)

	_, err = AUCMatrix(yTrue, mat.NewDense(3, 1, nil))
	assert.Error(t, err)
	_, err = AUCMatrix(nil, yPred)
	assert.Error(t, err)
}

func TestBinaryLogLoss(t *testing.T) {
	got, err := BinaryLogLoss(vec(1, 0), vec(0.9, 0.1))
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.9), got, 1e-12)

	got, err = BinaryLogLoss(vec(1, 0, 1, 0), vec(0.5, 0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, got, 1e-12)

	// 0と1はクリップされるので有限
	got, err = BinaryLogLoss(vec(1, 0), vec(0, 1))
	require.NoError(t, err)
	assert.False(t, math.IsInf(got, 0))
	assert.InDelta(t, -math.Log(logLossEpsilon), got, 0.2)

	_, err = BinaryLogLoss(vec(1, 3), vec(0.5, 0.5))
	assert.Error(t, err)
}

func TestAccuracyAndClassificationError(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		yPred *mat.VecDense
		want  float64
	}{
		{"全問正解", vec(0, 1, 2), vec(0, 1, 2), 1},
		{"全問不正解", vec(0, 0), vec(1, 1), 0},
		{"半分", vec(0, 1, 0, 1), vec(0, 0, 0, 0), 0.5},
		{"多クラス", vec(2, 1, 0, 2, 1), vec(2, 1, 1, 0, 1), 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := Accuracy(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, acc, 1e-12)

			ce, err := ClassificationError(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, 1-tt.want, ce, 1e-12)
		})
	}

	_, err := Accuracy(vec(1, 2), vec(1))
	assert.Error(t, err)
	_, err = ClassificationError(nil, nil)
	assert.Error(t, err)
}

func TestMetricsDoNotMutateInput(t *testing.T) {
	yTrue := vec(0, 1, 1, 0)
	yPred := vec(0.3, 0.2, 0.9, 0.1)
	_, err := AUC(yTrue, yPred)
	require.NoError(t, err)
	_, _, _, err = ROCCurve(yTrue, yPred)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1, 1, 0}, yTrue.RawVector().Data)
	assert.Equal(t, []float64{0.3, 0.2, 0.9, 0.1}, yPred.RawVector().Data)
}

func BenchmarkAUC(b *testing.B) {
	n := 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%2))
		yPred.SetVec(i, math.Mod(float64(i)*0.618, 1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yPred)
	}
}
