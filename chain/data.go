package chain

import (
	"fmt"

	"github.com/YuminosukeSato/mlu/array"
	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/preprocessing"
)

// Built-in step names. They cannot be registered as extensions.
const (
	StepHandleMissingValues = "handle_missing_values"
	StepNormalize           = "normalize"
	StepEncodeCategorical   = "encode_categorical"
	StepFilter              = "filter"
	StepMap                 = "map"
	StepTryMap              = "try_map"
	StepAggregate           = "aggregate"
	StepSummary             = "summary"
	StepSplitData           = "split_data"
	StepSelectModel         = "select_model"
	StepTrainModel          = "train_model"
	StepEvaluateModel       = "evaluate_model"
	StepOptimizeModel       = "optimize_model"
	StepCompareModels       = "compare_models"
	StepValue               = "value"
	StepApply               = "apply"
)

var reserved = map[string]bool{
	StepHandleMissingValues: true,
	StepNormalize:           true,
	StepEncodeCategorical:   true,
	StepFilter:              true,
	StepMap:                 true,
	StepTryMap:              true,
	StepAggregate:           true,
	StepSummary:             true,
	StepSplitData:           true,
	StepSelectModel:         true,
	StepTrainModel:          true,
	StepEvaluateModel:       true,
	StepOptimizeModel:       true,
	StepCompareModels:       true,
	StepValue:               true,
	StepApply:               true,
}

// vector returns the payload as a Vector or a CollaboratorError naming op.
func (c *Chain) vector(op string) (dataset.Vector, error) {
	v, ok := c.data.(dataset.Vector)
	if !ok {
		return nil, errors.NewCollaboratorErrorf(op, "expected a vector payload, got %s", c.data.Kind())
	}
	return v, nil
}

// HandleMissingValues fills missing values using strategy: mean, median,
// mode or constant.
func (c *Chain) HandleMissingValues(strategy string) *Chain {
	return c.run(StepHandleMissingValues, func() (*outcome, error) {
		next, err := preprocessing.FillMissing(c.data, strategy)
		if err != nil {
			return nil, err
		}
		return c.swap(fmt.Sprintf("missing values handled using %s strategy", strategy), next), nil
	})
}

// Normalize min-max scales the payload into [0, 1].
func (c *Chain) Normalize() *Chain {
	return c.run(StepNormalize, func() (*outcome, error) {
		next, err := preprocessing.Normalize(c.data)
		if err != nil {
			return nil, err
		}
		return c.swap("data normalized", next), nil
	})
}

// EncodeCategorical encodes the categorical columns of a Frame payload with
// onehot or label encoding.
func (c *Chain) EncodeCategorical(encodingType string) *Chain {
	return c.run(StepEncodeCategorical, func() (*outcome, error) {
		f, ok := c.data.(*dataset.Frame)
		if !ok {
			if !validEncoding(encodingType) {
				return nil, errors.NewConfigurationError("encoding_type", encodingType, preprocessing.Encodings...)
			}
			return nil, errors.NewCollaboratorErrorf(StepEncodeCategorical, "expected a frame payload, got %s", c.data.Kind())
		}
		next, err := preprocessing.EncodeCategorical(f, encodingType)
		if err != nil {
			return nil, err
		}
		return c.swap(fmt.Sprintf("categorical data encoded using %s encoding", encodingType), next,
			log.FeaturesKey, next.NumCols()), nil
	})
}

func validEncoding(s string) bool {
	for _, e := range preprocessing.Encodings {
		if s == e {
			return true
		}
	}
	return false
}

// Filter keeps the elements of a Vector payload for which pred holds.
func (c *Chain) Filter(pred func(float64) bool) *Chain {
	return c.run(StepFilter, func() (*outcome, error) {
		v, err := c.vector(StepFilter)
		if err != nil {
			return nil, err
		}
		next, err := array.Filter(v, pred)
		if err != nil {
			return nil, err
		}
		return c.swap("data filtered", next, "kept", len(next), "dropped", len(v)-len(next)), nil
	})
}

// Map applies fn to every element of a Vector payload.
func (c *Chain) Map(fn func(float64) float64) *Chain {
	return c.run(StepMap, func() (*outcome, error) {
		v, err := c.vector(StepMap)
		if err != nil {
			return nil, err
		}
		next, err := array.Map(v, fn)
		if err != nil {
			return nil, err
		}
		return c.swap("data mapped", next), nil
	})
}

// TryMap is Map for functions that can fail. The first error aborts the step.
func (c *Chain) TryMap(fn func(float64) (float64, error)) *Chain {
	return c.run(StepTryMap, func() (*outcome, error) {
		v, err := c.vector(StepTryMap)
		if err != nil {
			return nil, err
		}
		next, err := array.TryMap(v, fn)
		if err != nil {
			return nil, err
		}
		return c.swap("data mapped", next), nil
	})
}

// Aggregate reduces every numeric cell with operation (sum, mean, max or min)
// and replaces the payload with a single-element Vector holding the result.
func (c *Chain) Aggregate(operation string) *Chain {
	return c.run(StepAggregate, func() (*outcome, error) {
		values, err := dataset.Numeric(c.data)
		if err != nil {
			return nil, err
		}
		result, err := array.Aggregate(values, operation)
		if err != nil {
			return nil, err
		}
		return c.swap(fmt.Sprintf("data aggregated using %s operation", operation), dataset.Vector{result},
			log.ValueKey, result), nil
	})
}

// Summary replaces a numeric payload with its descriptive statistics. Each
// statistic is also logged.
func (c *Chain) Summary() *Chain {
	return c.run(StepSummary, func() (*outcome, error) {
		values, err := dataset.Numeric(c.data)
		if err != nil {
			return nil, err
		}
		s, err := array.Summarize(values)
		if err != nil {
			return nil, err
		}
		out := c.swap("summary statistics generated", dataset.Summaries{s})
		out.after = func() {
			for _, st := range s.Fields() {
				c.logger.Info("summary statistic", log.StepKey, StepSummary, log.StatisticKey, st.Name, log.ValueKey, st.Value)
			}
		}
		return out, nil
	})
}
