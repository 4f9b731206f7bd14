package preprocessing

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// RemoveLowVarianceFeatures は分散が threshold 以下の列を取り除く。
// 残った列のインデックスも返す。
func RemoveLowVarianceFeatures(m *dataset.Matrix, threshold float64) (*dataset.Matrix, []int, error) {
	if threshold < 0 {
		return nil, nil, errors.NewValidationError("threshold", "must be non-negative", threshold)
	}
	r, c := m.Dims()
	var keep []int
	for j := 0; j < c; j++ {
		_, variance := stat.PopMeanVariance(m.Col(j), nil)
		if variance > threshold {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return nil, nil, errors.NewCollaboratorErrorf("remove_low_variance",
			"no feature has variance above %g", threshold)
	}

	out := mat.NewDense(r, len(keep), nil)
	for k, j := range keep {
		out.SetCol(k, m.Col(j))
	}
	return dataset.NewMatrix(out), keep, nil
}

// PCAResult は主成分分析の結果
type PCAResult struct {
	Transformed       *dataset.Matrix
	Components        *mat.Dense // n_features × n_components
	ExplainedVariance []float64
}

// PCA はSVDによる主成分分析で nComponents 次元に射影する
func PCA(m *dataset.Matrix, nComponents int) (*PCAResult, error) {
	r, c := m.Dims()
	maxComponents := r
	if c < maxComponents {
		maxComponents = c
	}
	if nComponents < 1 || nComponents > maxComponents {
		return nil, errors.NewValidationError("n_components",
			"must be between 1 and min(n_samples, n_features)", nComponents)
	}
	if m.HasNaN() {
		return nil, errors.NewCollaboratorError("pca", errors.ErrMissingValues)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m.Dense(), nil); !ok {
		return nil, errors.NewCollaboratorErrorf("pca", "SVD failed to converge")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	centered := mat.DenseCopyOf(m.Dense())
	for j := 0; j < c; j++ {
		mean := stat.Mean(m.Col(j), nil)
		for i := 0; i < r; i++ {
			centered.Set(i, j, centered.At(i, j)-mean)
		}
	}

	components := mat.DenseCopyOf(vecs.Slice(0, c, 0, nComponents))
	projected := mat.NewDense(r, nComponents, nil)
	projected.Mul(centered, components)

	return &PCAResult{
		Transformed:       dataset.NewMatrix(projected),
		Components:        components,
		ExplainedVariance: append([]float64(nil), vars[:nComponents]...),
	}, nil
}

// PolynomialFeatures は次数 degree 以下の全ての単項式を特徴量として生成する。
// 列の順序は次数ごとに、重複組み合わせの辞書順（a, b, a², ab, b², ...）。
func PolynomialFeatures(m *dataset.Matrix, degree int, includeBias bool) (*dataset.Matrix, error) {
	if degree < 1 {
		return nil, errors.NewValidationError("degree", "must be at least 1", degree)
	}
	r, c := m.Dims()

	var terms [][]int
	if includeBias {
		terms = append(terms, nil)
	}
	for d := 1; d <= degree; d++ {
		terms = append(terms, combinationsWithReplacement(c, d)...)
	}

	out := mat.NewDense(r, len(terms), nil)
	for i := 0; i < r; i++ {
		row := m.Dense().RawRowView(i)
		for k, term := range terms {
			v := 1.0
			for _, j := range term {
				v *= row[j]
			}
			out.Set(i, k, v)
		}
	}
	return dataset.NewMatrix(out), nil
}

// combinationsWithReplacement は 0..n-1 から k 個の重複組み合わせを辞書順で返す
func combinationsWithReplacement(n, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	for {
		out = append(out, append([]int(nil), idx...))
		i := k - 1
		for i >= 0 && idx[i] == n-1 {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[i]
		}
	}
}
