// Package metrics は分類モデルの評価指標を提供します。
// 全ての関数は入力を変更せず、長さ不一致や空入力にはエラーを返します。
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// logLossEpsilon は log(0) を避けるためのクリッピング幅
const logLossEpsilon = 1e-15

// validatePair は2つのベクトルが非nil・非空・同じ長さであることを確認する
func validatePair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// requireBinary はラベルが0または1のみであることを確認する
func requireBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Labels は yTrue と yPred に現れるラベルをソートして返す
func Labels(yTrue, yPred *mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range [...]*mat.VecDense{yTrue, yPred} {
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}

// ConfusionMatrix は混同行列を計算する。行が正解ラベル、列が予測ラベル。
// ラベルの並びも返す。
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []float64, error) {
	n, err := validatePair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	labels := Labels(yTrue, yPred)
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := index[yTrue.AtVec(i)], index[yPred.AtVec(i)]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// isBinary はラベル集合が {0,1} の部分集合かどうか
func isBinary(labels []float64) bool {
	for _, l := range labels {
		if l != 0 && l != 1 {
			return false
		}
	}
	return true
}

// Precision は適合率を計算する。
// ラベルが {0,1} の場合は陽性クラス1の適合率、それ以外はマクロ平均。
// 陽性予測が無い場合は0を返し、UndefinedMetricWarning を発生させる。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	return perClassScore("precision", yTrue, yPred, func(tp, fp, fn float64) (float64, bool) {
		if tp+fp == 0 {
			return 0, false
		}
		return tp / (tp + fp), true
	})
}

// Recall は再現率を計算する。平均方法は Precision と同じ。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	return perClassScore("recall", yTrue, yPred, func(tp, fp, fn float64) (float64, bool) {
		if tp+fn == 0 {
			return 0, false
		}
		return tp / (tp + fn), true
	})
}

// F1 はF1スコアを計算する。平均方法は Precision と同じ。
func F1(yTrue, yPred *mat.VecDense) (float64, error) {
	return perClassScore("f1", yTrue, yPred, func(tp, fp, fn float64) (float64, bool) {
		if 2*tp+fp+fn == 0 {
			return 0, false
		}
		return 2 * tp / (2*tp + fp + fn), true
	})
}

func perClassScore(name string, yTrue, yPred *mat.VecDense, score func(tp, fp, fn float64) (float64, bool)) (float64, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	classes := make([]int, 0, len(labels))
	if isBinary(labels) {
		for i, l := range labels {
			if l == 1 {
				classes = append(classes, i)
			}
		}
		if len(classes) == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning(name, "no positive samples in y_true or y_pred", 0))
			return 0, nil
		}
	} else {
		for i := range labels {
			classes = append(classes, i)
		}
	}

	k := len(labels)
	total := 0.0
	for _, c := range classes {
		tp := cm.At(c, c)
		var fp, fn float64
		for o := 0; o < k; o++ {
			if o == c {
				continue
			}
			fp += cm.At(o, c)
			fn += cm.At(c, o)
		}
		s, ok := score(tp, fp, fn)
		if !ok {
			errors.Warn(errors.NewUndefinedMetricWarning(name, "zero denominator", 0))
		}
		total += s
	}
	return total / float64(len(classes)), nil
}

// AUC はROC曲線下の面積を順位統計量（Mann-Whitney U）で計算する。
// 同順位は平均順位を使う。片方のクラスしか無い場合は未定義のため0.5を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列入力に対してAUCを計算する（最初の列を使う）
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yt, yp, err := firstColumns("AUCMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return AUC(yt, yp)
}

func firstColumns(op string, a, b mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if a == nil || b == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra == 0 || ca == 0 || rb == 0 || cb == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if ra != rb {
		return nil, nil, errors.NewDimensionError(op, ra, rb, 0)
	}
	return mat.NewVecDense(ra, mat.Col(nil, 0, a)), mat.NewVecDense(rb, mat.Col(nil, 0, b)), nil
}

// ROCCurve は閾値ごとの偽陽性率と真陽性率を返す。先頭は (0, 0)。
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	n, err := validatePair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := requireBinary("ROCCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) > yScore.AtVec(idx[b]) })

	var nPos, nNeg float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		} else {
			nNeg++
		}
	}

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}
	var tp, fp float64
	for k, i := range idx {
		if yTrue.AtVec(i) == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < n && yScore.AtVec(idx[k+1]) == yScore.AtVec(i) {
			continue
		}
		fpr = append(fpr, errors.SafeDivide(fp, nNeg))
		tpr = append(tpr, errors.SafeDivide(tp, nPos))
		thresholds = append(thresholds, yScore.AtVec(i))
	}
	return fpr, tpr, thresholds, nil
}

// BinaryLogLoss は二値分類の対数損失を計算する。予測確率は [eps, 1-eps] にクリップする。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validatePair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), logLossEpsilon), 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
