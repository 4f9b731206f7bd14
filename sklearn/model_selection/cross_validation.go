package model_selection

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/core/parallel"
	"github.com/YuminosukeSato/mlu/metrics"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// スコアリング指標
const (
	ScoringAccuracy  = "accuracy"
	ScoringPrecision = "precision"
	ScoringRecall    = "recall"
	ScoringF1        = "f1"
)

// Scorings はサポートされている指標の一覧
var Scorings = []string{ScoringAccuracy, ScoringPrecision, ScoringRecall, ScoringF1}

// Factory は学習前の新しい分類器を返す。各フォールドで呼ばれる。
type Factory func() (model.Classifier, error)

// Score は予測結果を指定の指標で評価する
func Score(scoring string, yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "Score")
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("Score", len(yTrue), len(yPred), 0)
	}
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))
	switch scoring {
	case ScoringAccuracy, "":
		return metrics.Accuracy(t, p)
	case ScoringPrecision:
		return metrics.Precision(t, p)
	case ScoringRecall:
		return metrics.Recall(t, p)
	case ScoringF1:
		return metrics.F1(t, p)
	default:
		return 0, errors.NewConfigurationError("scoring", scoring, Scorings...)
	}
}

func validScoring(s string) bool {
	if s == "" {
		return true
	}
	for _, known := range Scorings {
		if s == known {
			return true
		}
	}
	return false
}

// FitScore は訓練データで clf を学習し、テストデータのスコアを返す
func FitScore(clf model.Classifier, XTrain *mat.Dense, yTrain []float64, XTest *mat.Dense, yTest []float64, scoring string) (float64, error) {
	if err := clf.Fit(XTrain, mat.NewDense(len(yTrain), 1, yTrain)); err != nil {
		return 0, err
	}
	pred, err := clf.Predict(XTest)
	if err != nil {
		return 0, err
	}
	return Score(scoring, yTest, mat.Col(nil, 0, pred))
}

// CrossValScore は k 分割交差検証で各フォールドのスコアを返す。
// フォールドは並列に評価される。
//
// 使用例:
//
//	scores, err := model_selection.CrossValScore(ctx, func() (model.Classifier, error) {
//		return tree.NewDecisionTreeClassifier(), nil
//	}, X, y, 5, "accuracy")
func CrossValScore(ctx context.Context, factory Factory, X *mat.Dense, y []float64, cv int, scoring string) ([]float64, error) {
	if !validScoring(scoring) {
		return nil, errors.NewConfigurationError("scoring", scoring, Scorings...)
	}
	n, _ := X.Dims()
	if len(y) != n {
		return nil, errors.NewDimensionError("CrossValScore", n, len(y), 0)
	}
	folds, err := KFold(n, cv, true, 0)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, cv)
	err = parallel.ForEach(ctx, cv, 0, func(_ context.Context, f int) error {
		var trainIdx []int
		for g, fold := range folds {
			if g != f {
				trainIdx = append(trainIdx, fold...)
			}
		}
		XTrain, yTrain := takeRows(X, y, trainIdx)
		XTest, yTest := takeRows(X, y, folds[f])

		clf, err := factory()
		if err != nil {
			return err
		}
		scores[f], err = FitScore(clf, XTrain, yTrain, XTest, yTest, scoring)
		return err
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// MeanScore はスコアの平均と標準偏差を返す
func MeanScore(scores []float64) (mean, std float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(scores, nil)
}
