package model_selection

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// LeakageReport はデータリーク検出の結果
type LeakageReport struct {
	// ColumnMismatch は訓練とテストの列数が異なる場合に true
	ColumnMismatch bool
	// SharedRows は訓練データにも存在するテスト行の数
	SharedRows int
	// SharedIndices はそれらのテスト行のインデックス
	SharedIndices []int
}

// Leaked はリークの疑いがあるかどうかを返す
func (r LeakageReport) Leaked() bool {
	return r.ColumnMismatch || r.SharedRows > 0
}

// DetectLeakage は訓練データとテストデータの間のリークを検出する。
// 列数の不一致と、訓練データと完全に一致するテスト行を報告する。
// 行の比較は xxh3 ハッシュで行い、衝突は値の比較で確認する。
func DetectLeakage(XTrain, XTest *mat.Dense) (LeakageReport, error) {
	if XTrain == nil || XTest == nil {
		return LeakageReport{}, errors.Wrap(errors.ErrEmptyData, "DetectLeakage")
	}
	trainRows, trainCols := XTrain.Dims()
	testRows, testCols := XTest.Dims()
	if trainCols != testCols {
		return LeakageReport{ColumnMismatch: true}, nil
	}

	seen := make(map[uint64][]int, trainRows)
	buf := make([]byte, 8*trainCols)
	for i := 0; i < trainRows; i++ {
		h := hashRow(buf, XTrain.RawRowView(i))
		seen[h] = append(seen[h], i)
	}

	var report LeakageReport
	for i := 0; i < testRows; i++ {
		row := XTest.RawRowView(i)
		for _, j := range seen[hashRow(buf, row)] {
			if equalRows(row, XTrain.RawRowView(j)) {
				report.SharedRows++
				report.SharedIndices = append(report.SharedIndices, i)
				break
			}
		}
	}
	return report, nil
}

func hashRow(buf []byte, row []float64) uint64 {
	for j, v := range row {
		binary.LittleEndian.PutUint64(buf[8*j:], math.Float64bits(v))
	}
	return xxh3.Hash(buf[:8*len(row)])
}

func equalRows(a, b []float64) bool {
	for j := range a {
		if a[j] != b[j] {
			return false
		}
	}
	return true
}
