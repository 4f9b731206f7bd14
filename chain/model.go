package chain

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/evaluation"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

// labeled returns the payload as features and labels, the label being the
// last column. Frames must be all-numeric.
func (c *Chain) labeled(op string) (*mat.Dense, []float64, error) {
	var m *dataset.Matrix
	switch p := c.data.(type) {
	case *dataset.Matrix:
		m = p
	case *dataset.Frame:
		var err error
		if m, err = p.ToMatrix(); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.NewCollaboratorErrorf(op, "expected a matrix or frame payload, got %s", c.data.Kind())
	}
	if m.HasNaN() {
		return nil, nil, errors.NewCollaboratorError(op, errors.ErrMissingValues)
	}
	return m.SplitLabel()
}

// SplitData partitions the payload into train and test sets. The last column
// is the label. The payload is not changed. On failure the previous split,
// if any, is kept. Rows that appear in both partitions are reported with a
// warning.
func (c *Chain) SplitData(testSize float64, randomState int64) *Chain {
	return c.run(StepSplitData, func() (*outcome, error) {
		X, y, err := c.labeled(StepSplitData)
		if err != nil {
			return nil, err
		}
		split, err := model_selection.TrainTestSplit(X, y, testSize, randomState)
		if err != nil {
			return nil, err
		}
		leak, err := model_selection.DetectLeakage(split.XTrain, split.XTest)
		if err != nil {
			return nil, err
		}

		train, test := split.Sizes()
		return &outcome{
			message: "data split into training and testing sets",
			commit:  func() { c.split = split },
			after: func() {
				if leak.Leaked() {
					c.logger.Warn("possible data leakage: test rows also present in training set",
						log.StepKey, StepSplitData, "shared_rows", leak.SharedRows)
				}
			},
			fields: []any{log.TrainSamplesKey, train, log.TestSamplesKey, test},
		}, nil
	})
}

// SelectModel sets an untrained model of modelType (decision_tree or
// neural_network) configured by params. On failure the previous model, if
// any, is kept.
func (c *Chain) SelectModel(modelType string, params map[string]any) *Chain {
	return c.run(StepSelectModel, func() (*outcome, error) {
		clf, err := models.New(modelType, params)
		if err != nil {
			return nil, err
		}
		return &outcome{
			message: fmt.Sprintf("%s model selected", modelType),
			commit: func() {
				c.model = clf
				c.trained = false
				c.report = nil
			},
			fields: []any{log.ModelTypeKey, modelType},
		}, nil
	})
}

// TrainModel fits the selected model on the training partition.
func (c *Chain) TrainModel() *Chain {
	return c.run(StepTrainModel, func() (*outcome, error) {
		if c.model == nil {
			return nil, errors.NewPreconditionError(StepTrainModel, StepSelectModel)
		}
		if c.split == nil {
			return nil, errors.NewPreconditionError(StepTrainModel, StepSplitData)
		}

		// Fit on a fresh model so a failed fit leaves the selected one untouched.
		params := c.model.GetParams()
		typ, err := models.TypeOf(c.model)
		if err != nil {
			return nil, err
		}
		clf, err := models.New(typ, params)
		if err != nil {
			return nil, err
		}
		n := len(c.split.YTrain)
		y := mat.NewDense(n, 1, append([]float64(nil), c.split.YTrain...))
		if err := clf.Fit(c.split.XTrain, y); err != nil {
			return nil, err
		}
		return &outcome{
			message: "model trained successfully",
			commit: func() {
				c.model = clf
				c.trained = true
				c.report = nil
			},
			fields: []any{log.ModelTypeKey, typ, log.SamplesKey, n},
		}, nil
	})
}

// EvaluateModel predicts the test partition with the trained model and
// computes accuracy, precision, recall and F1. The result is available from
// Report.
func (c *Chain) EvaluateModel() *Chain {
	return c.run(StepEvaluateModel, func() (*outcome, error) {
		if !c.Trained() {
			return nil, errors.NewPreconditionError(StepEvaluateModel, StepTrainModel)
		}
		if c.split == nil {
			return nil, errors.NewPreconditionError(StepEvaluateModel, StepSplitData)
		}

		pred, err := c.model.Predict(c.split.XTest)
		if err != nil {
			return nil, err
		}
		scores, _ := c.positiveScores()
		report, err := evaluation.CalculateMetrics(c.logger, c.split.YTest, mat.Col(nil, 0, pred), scores)
		if err != nil {
			return nil, err
		}

		fields := []any{}
		if report.AUC != nil {
			fields = append(fields, log.AUCKey, *report.AUC)
		}
		return &outcome{
			message: "evaluation completed",
			commit:  func() { c.report = report },
			fields:  fields,
		}, nil
	})
}

// positiveScores returns class-1 probabilities for the test partition when
// the test labels are binary {0, 1} and both classes are present.
func (c *Chain) positiveScores() ([]float64, bool) {
	var pos, neg bool
	for _, v := range c.split.YTest {
		switch v {
		case 0:
			neg = true
		case 1:
			pos = true
		default:
			return nil, false
		}
	}
	if !pos || !neg {
		return nil, false
	}
	proba, err := c.model.PredictProba(c.split.XTest)
	if err != nil {
		return nil, false
	}
	if _, cols := proba.Dims(); cols != 2 {
		return nil, false
	}
	return mat.Col(nil, 1, proba), true
}

// OptimizeModel searches grid for the best parameters of modelType with
// cross validation on the training partition, then installs the best model
// fitted on the whole training partition.
func (c *Chain) OptimizeModel(modelType string, grid map[string][]any, opts model_selection.SearchOptions) *Chain {
	return c.run(StepOptimizeModel, func() (*outcome, error) {
		if c.split == nil {
			return nil, errors.NewPreconditionError(StepOptimizeModel, StepSplitData)
		}
		clf, params, err := models.OptimizeHyperparameters(context.Background(), modelType, grid,
			c.split.XTrain, c.split.YTrain, opts)
		if err != nil {
			return nil, err
		}
		return &outcome{
			message: "hyperparameters optimized",
			commit: func() {
				c.model = clf
				c.trained = true
				c.report = nil
			},
			fields: []any{log.ModelTypeKey, modelType, log.ParamsKey, params},
		}, nil
	})
}

// CompareModels scores every candidate by cross validation on the training
// partition and selects the best one, untrained. Ties go to the earlier
// candidate. Each candidate's score is logged after the step line.
func (c *Chain) CompareModels(candidates []models.Candidate, cv int, scoring string) *Chain {
	return c.run(StepCompareModels, func() (*outcome, error) {
		if c.split == nil {
			return nil, errors.NewPreconditionError(StepCompareModels, StepSplitData)
		}
		cmp, err := models.CompareModels(context.Background(), candidates,
			c.split.XTrain, c.split.YTrain, cv, scoring)
		if err != nil {
			return nil, err
		}
		best := cmp.BestScore()
		return &outcome{
			message: fmt.Sprintf("%s model selected by comparison", best.Name),
			commit: func() {
				c.model = cmp.Best
				c.trained = false
				c.report = nil
			},
			after: func() {
				for _, s := range cmp.Scores {
					c.logger.Info("candidate scored", log.StepKey, StepCompareModels,
						log.ModelTypeKey, s.Type, "candidate", s.Name, "mean_score", s.MeanScore, "std_score", s.StdScore)
				}
			},
			fields: []any{log.ModelTypeKey, best.Type, "best_score", best.MeanScore},
		}, nil
	})
}
