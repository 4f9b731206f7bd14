package preprocessing

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Normalize はmin-max正規化で値を[0,1]に変換する。
//
// Vector は全体の最小値・最大値、Matrix と数値Frameは列ごとの
// MinMaxScaler を使う。min == max の場合は DegenerateRangeError、
// NaN を含む場合は CollaboratorError を返す。
func Normalize(v dataset.Value) (dataset.Value, error) {
	switch p := v.(type) {
	case dataset.Vector:
		return normalizeVector(p)
	case *dataset.Matrix:
		return normalizeMatrix(p)
	case *dataset.Frame:
		m, err := p.ToMatrix()
		if err != nil {
			return nil, err
		}
		scaled, err := normalizeMatrix(m)
		if err != nil {
			return nil, err
		}
		return dataset.FrameFromMatrix(scaled, p.Names())
	default:
		return nil, errors.NewCollaboratorErrorf("normalize", "unsupported payload %s", v.Kind())
	}
}

func normalizeVector(v dataset.Vector) (dataset.Vector, error) {
	if len(v) == 0 {
		return nil, errors.NewCollaboratorError("normalize", errors.ErrEmptyData)
	}
	if v.HasNaN() {
		return nil, errors.NewCollaboratorError("normalize", errors.ErrMissingValues)
	}
	lo, hi := floats.Min(v), floats.Max(v)
	if lo == hi {
		return nil, errors.NewDegenerateRangeError("normalize", lo)
	}
	out := make(dataset.Vector, len(v))
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out, nil
}

func normalizeMatrix(m *dataset.Matrix) (*dataset.Matrix, error) {
	scaler := NewMinMaxScaler(WithRejectConstant(true))
	scaled, err := scaler.FitTransform(m.Dense())
	if err != nil {
		return nil, err
	}
	return dataset.MatrixFrom(scaled), nil
}
