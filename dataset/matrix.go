package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Matrix is a two-dimensional numeric array backed by a gonum Dense.
// A Matrix always has at least one row and one column.
type Matrix struct {
	dense *mat.Dense
}

// NewMatrix wraps d without copying. The caller gives up ownership of d.
func NewMatrix(d *mat.Dense) *Matrix {
	return &Matrix{dense: d}
}

// MatrixFrom copies any gonum matrix.
func MatrixFrom(m mat.Matrix) *Matrix {
	return &Matrix{dense: mat.DenseCopyOf(m)}
}

// MatrixFromRows builds a Matrix from row slices. Rows must be non-empty and
// of equal length.
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, errors.NewValueError("MatrixFromRows", "empty input")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.NewValueError("MatrixFromRows", "rows have no columns")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.NewValueError("MatrixFromRows",
				fmt.Sprintf("ragged rows: row 0 has %d values, row %d has %d", cols, i, len(row)))
		}
		data = append(data, row...)
	}
	return &Matrix{dense: mat.NewDense(len(rows), cols, data)}, nil
}

func (m *Matrix) Kind() Kind { return KindMatrix }
func (m *Matrix) sealed()    {}

// Len returns the number of rows. A nil Matrix has none.
func (m *Matrix) Len() int {
	if m == nil || m.dense == nil {
		return 0
	}
	r, _ := m.dense.Dims()
	return r
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() Value {
	return &Matrix{dense: mat.DenseCopyOf(m.dense)}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) { return m.dense.Dims() }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

// T returns the transpose, so a *Matrix can be used as a mat.Matrix.
func (m *Matrix) T() mat.Matrix { return m.dense.T() }

// Dense returns the backing matrix. Callers must not modify it.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.dense)
}

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 {
	return mat.Col(nil, j, m.dense)
}

// Rows returns a copy of the matrix as row slices.
func (m *Matrix) Rows() [][]float64 {
	r, _ := m.dense.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// Values returns every cell in row-major order.
func (m *Matrix) Values() []float64 {
	r, c := m.dense.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.dense.RawRowView(i)...)
	}
	return out
}

// HasNaN reports whether any cell is missing.
func (m *Matrix) HasNaN() bool {
	r, c := m.dense.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.dense.At(i, j)) {
				return true
			}
		}
	}
	return false
}

// SplitLabel separates the last column as the label and returns the
// remaining columns as features. The matrix needs at least two columns.
func (m *Matrix) SplitLabel() (*mat.Dense, []float64, error) {
	r, c := m.dense.Dims()
	if c < 2 {
		return nil, nil, errors.NewDimensionError("SplitLabel", 2, c, 1)
	}
	X := mat.NewDense(r, c-1, nil)
	X.Copy(m.dense.Slice(0, r, 0, c-1))
	y := m.Col(c - 1)
	return X, y, nil
}
