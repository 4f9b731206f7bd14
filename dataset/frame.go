package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// ColumnType distinguishes numeric from categorical columns.
type ColumnType int

const (
	ColNumeric ColumnType = iota
	ColCategorical
)

func (t ColumnType) String() string {
	if t == ColCategorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named column of a Frame. Numeric columns store NaN for nulls;
// categorical columns carry a validity mask.
type Column struct {
	Name    string
	Type    ColumnType
	Floats  []float64
	Strings []string
	Valid   []bool
}

// NumericColumn builds a numeric column. values is copied.
func NumericColumn(name string, values []float64) *Column {
	out := make([]float64, len(values))
	copy(out, values)
	return &Column{Name: name, Type: ColNumeric, Floats: out}
}

// CategoricalColumn builds a categorical column. Empty strings are nulls.
func CategoricalColumn(name string, values []string) *Column {
	strs := make([]string, len(values))
	valid := make([]bool, len(values))
	for i, v := range values {
		strs[i] = v
		valid[i] = v != ""
	}
	return &Column{Name: name, Type: ColCategorical, Strings: strs, Valid: valid}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Type == ColCategorical {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool {
	if c.Type == ColCategorical {
		return !c.Valid[i]
	}
	return math.IsNaN(c.Floats[i])
}

// NullCount returns the number of missing rows.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Type: c.Type}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Strings != nil {
		out.Strings = append([]string(nil), c.Strings...)
		out.Valid = append([]bool(nil), c.Valid...)
	}
	return out
}

// Frame is a tabular dataset of named, equal-length columns.
type Frame struct {
	columns []*Column
	index   map[string]int
}

// NewFrame builds a Frame. Columns must have unique names and equal lengths.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, errors.NewValueError("NewFrame", "nil column")
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValueError("NewFrame", "duplicate column "+c.Name)
		}
		if i > 0 && c.Len() != cols[0].Len() {
			return nil, errors.NewDimensionError("NewFrame", cols[0].Len(), c.Len(), 0)
		}
		if c.Type == ColCategorical && len(c.Valid) != len(c.Strings) {
			return nil, errors.NewValueError("NewFrame", "validity mask length mismatch in column "+c.Name)
		}
		f.index[c.Name] = i
		f.columns = append(f.columns, c)
	}
	return f, nil
}

func (f *Frame) Kind() Kind { return KindFrame }
func (f *Frame) sealed()    {}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.columns) }

// Columns returns the columns in order. Callers must not modify them.
func (f *Frame) Columns() []*Column { return f.columns }

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() Value {
	cols := make([]*Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.Clone()
	}
	out, _ := NewFrame(cols...)
	return out
}

// IsNumeric reports whether every column is numeric.
func (f *Frame) IsNumeric() bool {
	for _, c := range f.columns {
		if c.Type != ColNumeric {
			return false
		}
	}
	return true
}

// ToMatrix converts an all-numeric frame into a Matrix with one column per
// frame column.
func (f *Frame) ToMatrix() (*Matrix, error) {
	rows, cols := f.Len(), f.NumCols()
	if rows == 0 || cols == 0 {
		return nil, errors.NewCollaboratorError("to_matrix", errors.ErrEmptyData)
	}
	d := mat.NewDense(rows, cols, nil)
	for j, c := range f.columns {
		if c.Type != ColNumeric {
			return nil, errors.NewCollaboratorErrorf("to_matrix", "column %q is categorical", c.Name)
		}
		d.SetCol(j, c.Floats)
	}
	return &Matrix{dense: d}, nil
}

// FrameFromMatrix names the columns of m. names may be nil, in which case
// columns are named col0, col1, ...
func FrameFromMatrix(m *Matrix, names []string) (*Frame, error) {
	_, c := m.Dims()
	if names == nil {
		names = make([]string, c)
		for j := range names {
			names[j] = fmt.Sprintf("col%d", j)
		}
	}
	if len(names) != c {
		return nil, errors.NewDimensionError("FrameFromMatrix", c, len(names), 1)
	}
	cols := make([]*Column, c)
	for j := range cols {
		cols[j] = &Column{Name: names[j], Type: ColNumeric, Floats: m.Col(j)}
	}
	return NewFrame(cols...)
}
