package models

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

// Candidate は比較対象の1モデル。Name が空なら Type を名前に使う。
type Candidate struct {
	Name   string                 `yaml:"name" toml:"name" json:"name"`
	Type   string                 `yaml:"type" toml:"type" json:"type"`
	Params map[string]interface{} `yaml:"params" toml:"params" json:"params"`
}

func (c Candidate) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Type
}

// CandidateScore は1候補の交差検証結果
type CandidateScore struct {
	Name      string
	Type      string
	MeanScore float64
	StdScore  float64
}

// Comparison は CompareModels の結果。Best は未学習の分類器。
type Comparison struct {
	Best      Classifier
	BestIndex int
	Scores    []CandidateScore
}

// BestScore は最良候補の結果を返す
func (c *Comparison) BestScore() CandidateScore { return c.Scores[c.BestIndex] }

// CompareModels は各候補を交差検証の平均スコアで比べ、最良の候補を未学習の
// 分類器として返す。同点なら先の候補を選ぶ。候補の設定が不正なら何も評価しない。
//
// 使用例:
//
//	cmp, err := models.CompareModels(ctx, []models.Candidate{
//		{Type: "decision_tree", Params: map[string]any{"max_depth": 3}},
//		{Type: "neural_network"},
//	}, X, y, 5, "accuracy")
func CompareModels(ctx context.Context, candidates []Candidate, X *mat.Dense, y []float64, cv int, scoring string) (*Comparison, error) {
	if len(candidates) == 0 {
		return nil, errors.NewValidationError("candidates", "at least one model is required", 0)
	}
	if cv == 0 {
		cv = 5
	}
	// 評価の前に全候補の設定を確認する
	for _, cand := range candidates {
		if _, err := New(cand.Type, cand.Params); err != nil {
			return nil, err
		}
	}

	cmp := &Comparison{Scores: make([]CandidateScore, len(candidates))}
	for i, cand := range candidates {
		cand := cand
		scores, err := model_selection.CrossValScore(ctx, func() (model.Classifier, error) {
			return New(cand.Type, cand.Params)
		}, X, y, cv, scoring)
		if err != nil {
			return nil, errors.Wrapf(err, "compare %s", cand.label())
		}
		mean, std := model_selection.MeanScore(scores)
		cmp.Scores[i] = CandidateScore{Name: cand.label(), Type: cand.Type, MeanScore: mean, StdScore: std}
		if mean > cmp.Scores[cmp.BestIndex].MeanScore {
			cmp.BestIndex = i
		}
	}

	best := candidates[cmp.BestIndex]
	clf, err := New(best.Type, best.Params)
	if err != nil {
		return nil, err
	}
	cmp.Best = clf
	log.GetLoggerWithName("models").Debug("models compared",
		"candidates", len(candidates), "best", best.label(), "best_score", cmp.Scores[cmp.BestIndex].MeanScore)
	return cmp, nil
}

// importancer は学習時に特徴量重要度を計算する分類器
type importancer interface {
	GetFeatureImportances() []float64
}

// FeatureImportances は学習済み分類器の特徴量重要度を返す。分類器が自前の
// 重要度を持たなければ X, y での並べ替え重要度を使う。
func FeatureImportances(clf Classifier, X *mat.Dense, y []float64) ([]float64, error) {
	if !clf.IsFitted() {
		return nil, errors.NewPreconditionError("feature importances", "a trained model")
	}
	if imp, ok := clf.(importancer); ok {
		return append([]float64(nil), imp.GetFeatureImportances()...), nil
	}
	return model_selection.PermutationImportance(clf, X, y, 5, model_selection.ScoringAccuracy, 0)
}
