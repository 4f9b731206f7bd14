// Package array holds the element-wise collaborators a Chain delegates to:
// filtering, mapping, aggregation and descriptive statistics.
package array

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Aggregation operations accepted by Aggregate.
const (
	Sum  = "sum"
	Mean = "mean"
	Max  = "max"
	Min  = "min"
)

// Operations lists the supported aggregation names.
var Operations = []string{Sum, Mean, Max, Min}

// Filter returns the elements of v for which pred holds, in order.
func Filter(v dataset.Vector, pred func(float64) bool) (dataset.Vector, error) {
	if pred == nil {
		return nil, errors.NewValueError("filter", "nil predicate")
	}
	out := make(dataset.Vector, 0, len(v))
	for _, x := range v {
		if pred(x) {
			out = append(out, x)
		}
	}
	return out, nil
}

// Map applies fn to every element of v.
func Map(v dataset.Vector, fn func(float64) float64) (dataset.Vector, error) {
	if fn == nil {
		return nil, errors.NewValueError("map", "nil function")
	}
	out := make(dataset.Vector, len(v))
	for i, x := range v {
		out[i] = fn(x)
	}
	return out, nil
}

// TryMap applies fn to every element of v and stops at the first error.
func TryMap(v dataset.Vector, fn func(float64) (float64, error)) (dataset.Vector, error) {
	if fn == nil {
		return nil, errors.NewValueError("try_map", "nil function")
	}
	out := make(dataset.Vector, len(v))
	for i, x := range v {
		y, err := fn(x)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		out[i] = y
	}
	return out, nil
}

// Aggregate reduces values with one of Sum, Mean, Max or Min. The sum of an
// empty slice is 0; the other operations need at least one value. NaN
// propagates.
func Aggregate(values []float64, operation string) (float64, error) {
	switch operation {
	case Sum:
		return floats.Sum(values), nil
	case Mean, Max, Min:
	default:
		return 0, errors.NewConfigurationError("operation", operation, Operations...)
	}

	if len(values) == 0 {
		return 0, errors.Wrapf(errors.ErrEmptyData, "%s of an empty input", operation)
	}
	switch operation {
	case Mean:
		return stat.Mean(values, nil), nil
	case Max:
		if hasNaN(values) {
			return math.NaN(), nil
		}
		return floats.Max(values), nil
	default:
		if hasNaN(values) {
			return math.NaN(), nil
		}
		return floats.Min(values), nil
	}
}

// Summarize computes count, mean, population standard deviation, min, max
// and quartiles of the non-missing values. Quartiles use the nearest-rank
// method.
func Summarize(values []float64) (dataset.Summary, error) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	if len(data) == 0 {
		return dataset.Summary{}, errors.Wrap(errors.ErrEmptyData, "summary of an empty input")
	}

	var s dataset.Summary
	s.Count = len(data)

	var err error
	steps := []struct {
		dst *float64
		fn  func() (float64, error)
	}{
		{&s.Mean, func() (float64, error) { return stats.Mean(data) }},
		{&s.Std, func() (float64, error) { return stats.StandardDeviationPopulation(data) }},
		{&s.Min, func() (float64, error) { return stats.Min(data) }},
		{&s.Max, func() (float64, error) { return stats.Max(data) }},
		{&s.P25, func() (float64, error) { return stats.PercentileNearestRank(data, 25) }},
		{&s.P50, func() (float64, error) { return stats.Median(data) }},
		{&s.P75, func() (float64, error) { return stats.PercentileNearestRank(data, 75) }},
	}
	for _, st := range steps {
		if *st.dst, err = st.fn(); err != nil {
			return dataset.Summary{}, errors.Wrap(err, "summary")
		}
	}
	return s, nil
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
