package model_selection

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// PermutationImportance は特徴量ごとに列をシャッフルしたときのスコア低下量を返す。
// 学習済みの clf を X, y で評価し、nRepeats 回の平均をとる。X は変更しない。
func PermutationImportance(clf model.Classifier, X *mat.Dense, y []float64, nRepeats int, scoring string, randomState int64) ([]float64, error) {
	if !validScoring(scoring) {
		return nil, errors.NewConfigurationError("scoring", scoring, Scorings...)
	}
	if nRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be at least 1", nRepeats)
	}
	rows, cols := X.Dims()
	if len(y) != rows {
		return nil, errors.NewDimensionError("PermutationImportance", rows, len(y), 0)
	}

	score := func(data *mat.Dense) (float64, error) {
		pred, err := clf.Predict(data)
		if err != nil {
			return 0, err
		}
		return Score(scoring, y, mat.Col(nil, 0, pred))
	}
	baseline, err := score(X)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(randomState))
	shuffled := mat.DenseCopyOf(X)
	column := make([]float64, rows)
	importances := make([]float64, cols)
	drops := make([]float64, nRepeats)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, X)
		for r := 0; r < nRepeats; r++ {
			perm := rng.Perm(rows)
			for i, p := range perm {
				shuffled.Set(i, j, column[p])
			}
			s, err := score(shuffled)
			if err != nil {
				return nil, err
			}
			drops[r] = baseline - s
		}
		shuffled.SetCol(j, column)
		importances[j] = stat.Mean(drops, nil)
	}
	return importances, nil
}
