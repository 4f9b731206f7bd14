package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

// twoBlobs returns rows of two well separated groups, label in the last column.
func twoBlobs(n int) [][]float64 {
	rows := make([][]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		d := float64(i%5) * 0.1
		rows = append(rows, []float64{1 + d, 1 - d, 0})
		rows = append(rows, []float64{8 - d, 9 + d, 1})
	}
	return rows
}

func TestTrainWithoutModelIsPrecondition(t *testing.T) {
	c, logger := newTestChain(t, twoBlobs(10))
	c.TrainModel()

	var pe *errors.PreconditionError
	require.True(t, errors.As(c.Err(), &pe))
	assert.Equal(t, StepSelectModel, pe.Requires)
	assert.True(t, logger.ContainsField(log.ErrorTypeKey, "PreconditionError"))
	assert.False(t, c.Trained())
}

func TestTrainWithoutSplitIsPrecondition(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.SelectModel("decision_tree", nil).TrainModel()

	var pe *errors.PreconditionError
	require.True(t, errors.As(c.Err(), &pe))
	assert.Equal(t, StepSplitData, pe.Requires)
}

func TestEvaluateBeforeTrainIsPrecondition(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.SplitData(0.25, 1).SelectModel("decision_tree", nil).EvaluateModel()

	var pe *errors.PreconditionError
	assert.True(t, errors.As(c.Err(), &pe))
	_, ok := c.Report()
	assert.False(t, ok)
}

func TestSplitData(t *testing.T) {
	c, logger := newTestChain(t, twoBlobs(10))
	before := c.Value()
	c.SplitData(0.25, 42)
	require.NoError(t, c.Err())

	s, ok := c.Split()
	require.True(t, ok)
	train, test := s.Sizes()
	assert.Equal(t, 15, train)
	assert.Equal(t, 5, test)
	_, cols := s.XTrain.Dims()
	assert.Equal(t, 2, cols)
	assert.Same(t, before, c.Value())
	assert.True(t, logger.ContainsField(log.TestSamplesKey, float64(5)))
}

func TestFailedSplitKeepsPreviousSplit(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.SplitData(0.25, 42)
	first, ok := c.Split()
	require.True(t, ok)

	c.SplitData(1.5, 42)
	require.Error(t, c.Err())
	assert.Equal(t, "ConfigurationError", errors.Kind(c.Err()))
	second, ok := c.Split()
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestSplitDataNeedsLabelColumn(t *testing.T) {
	c, _ := newTestChain(t, []float64{1, 2, 3})
	c.SplitData(0.5, 0)
	assert.Error(t, c.Err())
	_, ok := c.Split()
	assert.False(t, ok)
}

func TestSplitDataWarnsOnLeakage(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{1, 1, 0}
	}
	c, logger := newTestChain(t, rows)
	c.SplitData(0.3, 0)
	require.NoError(t, c.Err())
	assert.NotEmpty(t, logger.EntriesAt("WARN"))
	assert.True(t, logger.ContainsMessage("possible data leakage"))
}

func TestSelectModelUnsupported(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(5))
	c.SelectModel("decision_tree", nil)
	first, _ := c.Model()

	c.SelectModel("random_forest", nil)
	var cfg *errors.ConfigurationError
	require.True(t, errors.As(c.Err(), &cfg))
	m, ok := c.Model()
	require.True(t, ok)
	assert.Same(t, first, m)
}

func TestSelectModelBadParams(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(5))
	c.SelectModel("decision_tree", map[string]any{"max_depth": "deep"})
	var cfg *errors.ConfigurationError
	assert.True(t, errors.As(c.Err(), &cfg))
	_, ok := c.Model()
	assert.False(t, ok)
}

func TestTrainAndEvaluateDecisionTree(t *testing.T) {
	c, logger := newTestChain(t, twoBlobs(20))
	c.SplitData(0.25, 7).
		SelectModel("decision_tree", map[string]any{"max_depth": 3}).
		TrainModel().
		EvaluateModel()
	require.NoError(t, c.Err())
	assert.True(t, c.Trained())

	r, ok := c.Report()
	require.True(t, ok)
	assert.Equal(t, 10, r.Samples)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.True(t, logger.ContainsField(log.AccuracyKey, 1.0))
	assert.True(t, logger.ContainsField(log.StepKey, StepEvaluateModel))
}

func TestTrainAndEvaluateNeuralNetwork(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(20))
	c.SplitData(0.25, 3).
		SelectModel("neural_network", map[string]any{"layers": []int{8}, "epochs": 300}).
		TrainModel().
		EvaluateModel()
	require.NoError(t, c.Err())

	r, ok := c.Report()
	require.True(t, ok)
	assert.GreaterOrEqual(t, r.Accuracy, 0.9)
}

func TestReselectingModelResetsTraining(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.SplitData(0.25, 1).SelectModel("decision_tree", nil).TrainModel()
	require.True(t, c.Trained())

	c.SelectModel("decision_tree", map[string]any{"max_depth": 2})
	assert.False(t, c.Trained())
}

func TestOptimizeModel(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(20))
	c.SplitData(0.25, 5).
		OptimizeModel("decision_tree", map[string][]any{"max_depth": {1, 2, 3}},
			model_selection.SearchOptions{CV: 3}).
		EvaluateModel()
	require.NoError(t, c.Err())
	assert.True(t, c.Trained())

	m, _ := c.Model()
	assert.Contains(t, []any{1, 2, 3}, m.GetParams()["max_depth"])
}

func TestOptimizeModelNeedsSplit(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.OptimizeModel("decision_tree", map[string][]any{"max_depth": {1}}, model_selection.SearchOptions{})
	var pe *errors.PreconditionError
	assert.True(t, errors.As(c.Err(), &pe))
}

func TestSplitDataFromFrame(t *testing.T) {
	f, err := dataset.NewFrame(
		dataset.NumericColumn("x", []float64{1, 2, 3, 4, 5, 6, 7, 8}),
		dataset.NumericColumn("y", []float64{0, 0, 0, 0, 1, 1, 1, 1}),
	)
	require.NoError(t, err)
	c, _ := newTestChain(t, f)
	c.SplitData(0.25, 0)
	require.NoError(t, c.Err())
	s, _ := c.Split()
	train, test := s.Sizes()
	assert.Equal(t, 8, train+test)
}

func TestCompareModels(t *testing.T) {
	c, logger := newTestChain(t, twoBlobs(20))
	c.SplitData(0.25, 5)
	logger.Clear()

	c.CompareModels([]models.Candidate{
		{Name: "stump", Type: "decision_tree", Params: map[string]any{"max_depth": 1}},
		{Name: "deep", Type: "decision_tree"},
	}, 3, "accuracy")
	require.NoError(t, c.Err())

	m, ok := c.Model()
	require.True(t, ok)
	assert.False(t, c.Trained())
	assert.Equal(t, 1, m.GetParams()["max_depth"])

	// step line, then one line per candidate
	assert.Len(t, logger.EntriesAt("INFO"), 3)
	assert.True(t, logger.ContainsMessage("stump model selected by comparison"))
	assert.True(t, logger.ContainsField("candidate", "deep"))

	c.TrainModel().EvaluateModel()
	require.NoError(t, c.Err())
	assert.True(t, c.Trained())
}

func TestCompareModelsKeepsModelOnFailure(t *testing.T) {
	c, _ := newTestChain(t, twoBlobs(10))
	c.CompareModels([]models.Candidate{{Type: "decision_tree"}}, 3, "accuracy")
	var pe *errors.PreconditionError
	require.True(t, errors.As(c.Err(), &pe))
	assert.Equal(t, StepSplitData, pe.Requires)

	c, logger := newTestChain(t, twoBlobs(10))
	c.SplitData(0.25, 1).SelectModel("decision_tree", map[string]any{"max_depth": 2})
	logger.Clear()
	c.CompareModels([]models.Candidate{{Type: "decision_tree"}, {Type: "svm"}}, 3, "accuracy")
	assert.Equal(t, "ConfigurationError", errors.Kind(c.Err()))
	assert.Empty(t, logger.EntriesAt("INFO"))

	m, _ := c.Model()
	assert.Equal(t, 2, m.GetParams()["max_depth"])
}
