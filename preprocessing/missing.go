package preprocessing

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// 欠損値補完の戦略
const (
	StrategyMean     = "mean"
	StrategyMedian   = "median"
	StrategyMode     = "mode"
	StrategyConstant = "constant"
)

// Strategies はサポートされている補完戦略の一覧
var Strategies = []string{StrategyMean, StrategyMedian, StrategyMode, StrategyConstant}

// ConstantFillValue は constant 戦略で数値列に入れる値
const ConstantFillValue = 0.0

// ConstantFillCategory は constant 戦略でカテゴリ列に入れる値
const ConstantFillCategory = "missing"

// FillMissing は欠損値を指定の戦略で補完した新しい値を返す。
//
// Vector は全体で1列、Matrix と Frame は列ごとに統計量を計算する。
// カテゴリ列は mean / median / mode のいずれでも最頻値で補完する。
// 全て欠損の列はそのまま残す。
func FillMissing(v dataset.Value, strategy string) (dataset.Value, error) {
	if !validStrategy(strategy) {
		return nil, errors.NewConfigurationError("strategy", strategy, Strategies...)
	}

	switch p := v.(type) {
	case dataset.Vector:
		out := make(dataset.Vector, len(p))
		copy(out, p)
		fillFloats(out, strategy)
		return out, nil
	case *dataset.Matrix:
		_, c := p.Dims()
		out := mat.DenseCopyOf(p.Dense())
		for j := 0; j < c; j++ {
			col := p.Col(j)
			fillFloats(col, strategy)
			out.SetCol(j, col)
		}
		return dataset.NewMatrix(out), nil
	case *dataset.Frame:
		cols := make([]*dataset.Column, p.NumCols())
		for j, c := range p.Columns() {
			col := c.Clone()
			if col.Type == dataset.ColCategorical {
				fillStrings(col, strategy)
			} else {
				fillFloats(col.Floats, strategy)
			}
			cols[j] = col
		}
		return dataset.NewFrame(cols...)
	default:
		return nil, errors.NewCollaboratorErrorf("handle_missing_values", "unsupported payload %s", v.Kind())
	}
}

func validStrategy(s string) bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// fillFloats は values の NaN をその場で補完する
func fillFloats(values []float64, strategy string) {
	present := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == len(values) {
		return
	}

	fill := ConstantFillValue
	if strategy != StrategyConstant {
		if len(present) == 0 {
			return
		}
		switch strategy {
		case StrategyMean:
			fill, _ = stats.Mean(present)
		case StrategyMedian:
			fill, _ = stats.Median(present)
		case StrategyMode:
			fill = numericMode(present)
		}
	}

	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = fill
		}
	}
}

// numericMode は最頻値を返す。同数の場合は最小値。
func numericMode(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := math.Inf(1), 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// fillStrings はカテゴリ列の欠損をその場で補完する
func fillStrings(col *dataset.Column, strategy string) {
	fill := ConstantFillCategory
	if strategy != StrategyConstant {
		m, ok := categoryMode(col)
		if !ok {
			return
		}
		fill = m
	}
	for i := range col.Strings {
		if !col.Valid[i] {
			col.Strings[i] = fill
			col.Valid[i] = true
		}
	}
}

// categoryMode は最頻カテゴリを返す。同数の場合は辞書順で最初のもの。
func categoryMode(col *dataset.Column) (string, bool) {
	counts := make(map[string]int)
	for i, s := range col.Strings {
		if col.Valid[i] {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
