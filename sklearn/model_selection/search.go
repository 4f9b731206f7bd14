package model_selection

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/core/model"
	"github.com/YuminosukeSato/mlu/core/parallel"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// 探索方法
const (
	SearchGrid   = "grid"
	SearchRandom = "random"
)

// ParamFactory はハイパーパラメータを設定した未学習の分類器を返す
type ParamFactory func(params map[string]interface{}) (model.Classifier, error)

// SearchOptions はハイパーパラメータ探索の設定
type SearchOptions struct {
	// Type は "grid" または "random"
	Type string
	// CV は交差検証のフォールド数（デフォルト5）
	CV int
	// Scoring は評価指標（デフォルト "accuracy"）
	Scoring string
	// NIter は random 探索で試す候補数。random の場合は必須。
	NIter int
	// RandomState は random 探索の候補抽出に使う乱数シード
	RandomState int64
	// NJobs は同時に評価する候補数。0以下ならCPU数。
	NJobs int
}

// CandidateResult は1つの候補の評価結果
type CandidateResult struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
	Scores    []float64
}

// SearchResult は探索全体の結果
type SearchResult struct {
	BestParams map[string]interface{}
	BestScore  float64
	BestIndex  int
	Candidates []CandidateResult
}

// ParameterGrid はグリッドの全組み合わせを返す。
// キーは辞書順に展開するので、結果の順序は決定的。
func ParameterGrid(grid map[string][]interface{}) ([]map[string]interface{}, error) {
	keys := make([]string, 0, len(grid))
	for k, values := range grid {
		if len(values) == 0 {
			return nil, errors.NewValidationError("param_grid", fmt.Sprintf("parameter %q has no values", k), values)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		var next []map[string]interface{}
		for _, base := range combos {
			for _, v := range grid[k] {
				c := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					c[bk] = bv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos, nil
}

// Search はグリッドまたはランダム探索で最良のハイパーパラメータを探す。
// 候補は NJobs 並列で評価し、各候補は k 分割交差検証の平均スコアで比較する。
// 同点の場合は先に列挙された候補を選ぶ。
func Search(ctx context.Context, factory ParamFactory, grid map[string][]interface{}, X *mat.Dense, y []float64, opts SearchOptions) (*SearchResult, error) {
	if opts.CV == 0 {
		opts.CV = 5
	}
	if opts.Scoring == "" {
		opts.Scoring = ScoringAccuracy
	}
	if !validScoring(opts.Scoring) {
		return nil, errors.NewConfigurationError("scoring", opts.Scoring, Scorings...)
	}

	candidates, err := ParameterGrid(grid)
	if err != nil {
		return nil, err
	}
	switch opts.Type {
	case SearchGrid, "":
	case SearchRandom:
		if opts.NIter <= 0 {
			return nil, errors.NewValidationError("n_iter", "must be specified when using random search", opts.NIter)
		}
		candidates = sampleCandidates(candidates, opts.NIter, opts.RandomState)
	default:
		return nil, errors.NewConfigurationError("search_type", opts.Type, SearchGrid, SearchRandom)
	}

	logger := log.GetLoggerWithName("model_selection")
	results := make([]CandidateResult, len(candidates))
	err = parallel.ForEach(ctx, len(candidates), opts.NJobs, func(ctx context.Context, i int) error {
		params := candidates[i]
		scores, err := CrossValScore(ctx, func() (model.Classifier, error) {
			return factory(params)
		}, X, y, opts.CV, opts.Scoring)
		if err != nil {
			return errors.Wrapf(err, "candidate %v", params)
		}
		mean, std := MeanScore(scores)
		results[i] = CandidateResult{Params: params, MeanScore: mean, StdScore: std, Scores: scores}

		logger.Debug("candidate evaluated", log.ParamsKey, params, "score", mean)
		return nil
	})
	if err != nil {
		return nil, err
	}

	best := 0
	for i, r := range results {
		if r.MeanScore > results[best].MeanScore {
			best = i
		}
	}
	logger.Info("hyperparameter search finished",
		"best_params", results[best].Params, "best_score", results[best].MeanScore, "candidates", len(results))

	return &SearchResult{
		BestParams: results[best].Params,
		BestScore:  results[best].MeanScore,
		BestIndex:  best,
		Candidates: results,
	}, nil
}

// sampleCandidates は重複なしで最大 n 個の候補を抽出する
func sampleCandidates(all []map[string]interface{}, n int, seed int64) []map[string]interface{} {
	if n >= len(all) {
		return all
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(all))[:n]
	sort.Ints(perm)
	out := make([]map[string]interface{}, n)
	for i, idx := range perm {
		out[i] = all[idx]
	}
	return out
}
