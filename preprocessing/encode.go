package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// エンコーディング種別
const (
	EncodingOneHot = "onehot"
	EncodingLabel  = "label"
)

// Encodings はサポートされているエンコーディング種別の一覧
var Encodings = []string{EncodingOneHot, EncodingLabel}

// EncodeCategorical はFrameのカテゴリ列を数値列に変換する。
//
// onehot: 各カテゴリ列を `<列名>_<カテゴリ>` のダミー列（0/1）に置き換える。
// カテゴリはソート順。欠損行は全てのダミー列が0になる。
// label: ソート順のカテゴリ番号に置き換える。欠損は NaN。
// 数値列はそのまま残る。
func EncodeCategorical(f *dataset.Frame, encodingType string) (*dataset.Frame, error) {
	if encodingType != EncodingOneHot && encodingType != EncodingLabel {
		return nil, errors.NewConfigurationError("encoding_type", encodingType, Encodings...)
	}
	if f == nil {
		return nil, errors.NewCollaboratorErrorf("encode_categorical", "nil frame")
	}

	var cols []*dataset.Column
	for _, c := range f.Columns() {
		if c.Type != dataset.ColCategorical {
			cols = append(cols, c.Clone())
			continue
		}
		categories := Categories(c)
		if encodingType == EncodingLabel {
			cols = append(cols, labelEncode(c, categories))
		} else {
			cols = append(cols, oneHotEncode(c, categories)...)
		}
	}
	return dataset.NewFrame(cols...)
}

// Categories は列内の欠損でない値をソートして重複なしで返す
func Categories(c *dataset.Column) []string {
	seen := make(map[string]struct{})
	for i, s := range c.Strings {
		if c.Valid[i] {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func labelEncode(c *dataset.Column, categories []string) *dataset.Column {
	codes := make(map[string]float64, len(categories))
	for i, cat := range categories {
		codes[cat] = float64(i)
	}
	values := make([]float64, c.Len())
	for i, s := range c.Strings {
		if !c.Valid[i] {
			values[i] = math.NaN()
			continue
		}
		values[i] = codes[s]
	}
	return dataset.NumericColumn(c.Name, values)
}

func oneHotEncode(c *dataset.Column, categories []string) []*dataset.Column {
	out := make([]*dataset.Column, len(categories))
	for k, cat := range categories {
		values := make([]float64, c.Len())
		for i, s := range c.Strings {
			if c.Valid[i] && s == cat {
				values[i] = 1
			}
		}
		out[k] = dataset.NumericColumn(c.Name+"_"+cat, values)
	}
	return out
}
