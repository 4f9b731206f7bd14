// Package dataset defines the payload a Chain carries between steps.
//
// A payload is one of four kinds: Vector, *Matrix, *Frame or Summaries.
// Missing numeric values are NaN. Collaborators never mutate a payload they
// receive; they return a new one.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Kind names the concrete type of a Value.
type Kind string

const (
	KindVector  Kind = "vector"
	KindMatrix  Kind = "matrix"
	KindFrame   Kind = "frame"
	KindSummary Kind = "summary"
)

// Value is the payload owned by a Chain. The set of implementations is closed.
type Value interface {
	Kind() Kind
	// Len is the number of elements for a Vector and the number of rows otherwise.
	Len() int
	Clone() Value
	sealed()
}

// Vector is a one-dimensional numeric array.
type Vector []float64

func (v Vector) Kind() Kind { return KindVector }
func (v Vector) Len() int   { return len(v) }
func (v Vector) sealed()    {}

// Clone returns a copy of v.
func (v Vector) Clone() Value {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// HasNaN reports whether any element is missing.
func (v Vector) HasNaN() bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// Summary holds descriptive statistics of a numeric payload.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P25   float64 `json:"25%"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
}

// Fields returns the statistics as ordered name/value pairs.
func (s Summary) Fields() []Stat {
	return []Stat{
		{"count", float64(s.Count)},
		{"mean", s.Mean},
		{"std", s.Std},
		{"min", s.Min},
		{"25%", s.P25},
		{"50%", s.P50},
		{"75%", s.P75},
		{"max", s.Max},
	}
}

// Stat is a single named statistic.
type Stat struct {
	Name  string
	Value float64
}

// Summaries is a container of summary records.
type Summaries []Summary

func (s Summaries) Kind() Kind { return KindSummary }
func (s Summaries) Len() int   { return len(s) }
func (s Summaries) sealed()    {}

// Clone returns a copy of s.
func (s Summaries) Clone() Value {
	out := make(Summaries, len(s))
	copy(out, s)
	return out
}

// From coerces caller input into a Value. Unsupported, nil, empty or
// ragged input yields an InitializationError.
func From(input any) (Value, error) {
	switch v := input.(type) {
	case nil:
		return nil, errors.NewInitializationError("nil", "no input")
	case Vector:
		return vectorFrom("dataset.Vector", v)
	case []float64:
		return vectorFrom("[]float64", v)
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return vectorFrom("[]float32", out)
	case []int:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return vectorFrom("[]int", out)
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return vectorFrom("[]int64", out)
	case [][]float64:
		m, err := MatrixFromRows(v)
		if err != nil {
			return nil, errors.NewInitializationError("[][]float64", err.Error())
		}
		return m, nil
	case *Matrix:
		if v == nil || v.dense == nil {
			return nil, errors.NewInitializationError("*dataset.Matrix", "nil matrix")
		}
		return v.Clone(), nil
	case mat.Matrix:
		r, c := v.Dims()
		if r == 0 || c == 0 {
			return nil, errors.NewInitializationError(fmt.Sprintf("%T", v), "empty matrix")
		}
		return MatrixFrom(v), nil
	case []string:
		if len(v) == 0 {
			return nil, errors.NewInitializationError("[]string", "empty input")
		}
		f, err := NewFrame(CategoricalColumn("value", v))
		if err != nil {
			return nil, errors.NewInitializationError("[]string", err.Error())
		}
		return f, nil
	case *Frame:
		if v == nil || v.NumCols() == 0 {
			return nil, errors.NewInitializationError("*dataset.Frame", "frame has no columns")
		}
		return v.Clone(), nil
	case Summaries:
		if len(v) == 0 {
			return nil, errors.NewInitializationError("dataset.Summaries", "empty input")
		}
		return v.Clone(), nil
	default:
		return nil, errors.NewInitializationError(fmt.Sprintf("%T", input), "unsupported input type")
	}
}

func vectorFrom(name string, v []float64) (Value, error) {
	if len(v) == 0 {
		return nil, errors.NewInitializationError(name, "empty input")
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out, nil
}

// Numeric returns every cell of a numeric payload in row-major order.
// Frames must be all-numeric.
func Numeric(v Value) ([]float64, error) {
	switch p := v.(type) {
	case Vector:
		out := make([]float64, len(p))
		copy(out, p)
		return out, nil
	case *Matrix:
		return p.Values(), nil
	case *Frame:
		m, err := p.ToMatrix()
		if err != nil {
			return nil, err
		}
		return m.Values(), nil
	default:
		return nil, errors.NewCollaboratorErrorf("numeric", "expected a numeric payload, got %s", kindOf(v))
	}
}

// Present reports whether v holds a payload. Typed nils, a Matrix without
// backing data and nil slices are absent.
func Present(v Value) bool {
	switch p := v.(type) {
	case nil:
		return false
	case Vector:
		return p != nil
	case Summaries:
		return p != nil
	case *Matrix:
		return p != nil && p.dense != nil
	case *Frame:
		return p != nil
	default:
		return true
	}
}

func kindOf(v Value) Kind {
	if v == nil {
		return "nil"
	}
	return v.Kind()
}
