// Package model はmluの推定器が共有するインターフェースと状態管理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n_samples × 1）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParamsAccessor はハイパーパラメータを取得・設定できるモデルのインターフェース
type ParamsAccessor interface {
	// GetParams はモデルのハイパーパラメータを返す
	GetParams() map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定する
	SetParams(params map[string]interface{}) error
}

// Classifier はChainが選択・学習・評価する分類器のインターフェース。
// ラベルは 0..k-1 の整数値を float64 で表現する。
type Classifier interface {
	Fitter
	Predictor
	ParamsAccessor

	// PredictProba は各クラスの確率を返す（n_samples × n_classes）
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}
