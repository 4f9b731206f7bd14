package dataset

import (
	"encoding/json"
	"math"
)

// JSON encoding writes NaN as null.

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullableSlice(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = nullable(v)
	}
	return out
}

// MarshalJSON encodes the vector as an array with null for missing values.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(nullableSlice(v))
}

// MarshalJSON encodes the matrix as an array of rows.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	r, _ := m.Dims()
	rows := make([][]*float64, r)
	for i := range rows {
		rows[i] = nullableSlice(m.Row(i))
	}
	return json.Marshal(rows)
}

type jsonColumn struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Values []any  `json:"values"`
}

// MarshalJSON encodes the frame as an ordered list of columns.
func (f *Frame) MarshalJSON() ([]byte, error) {
	cols := make([]jsonColumn, len(f.columns))
	for j, c := range f.columns {
		values := make([]any, c.Len())
		for i := range values {
			switch {
			case c.IsNull(i):
				values[i] = nil
			case c.Type == ColCategorical:
				values[i] = c.Strings[i]
			default:
				values[i] = c.Floats[i]
			}
		}
		cols[j] = jsonColumn{Name: c.Name, Type: c.Type.String(), Values: values}
	}
	return json.Marshal(struct {
		Columns []jsonColumn `json:"columns"`
	}{cols})
}

// Envelope wraps a Value with its kind for JSON output.
type Envelope struct {
	Kind Kind  `json:"kind"`
	Len  int   `json:"len"`
	Data Value `json:"data"`
}

// Wrap returns an Envelope for v.
func Wrap(v Value) Envelope {
	return Envelope{Kind: v.Kind(), Len: v.Len(), Data: v}
}
