// Package errors はmlu全体のエラーハンドリングと警告システムを提供します。
// Chainの各ステップで捕捉されるエラー種別と、コラボレーター（数値計算・学習ルーチン）が
// 返す構造化エラーを定義します。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex sync.Mutex
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetZerologWarnFunc はzerolog警告関数を設定します（pkg/logから呼ばれる）。
// nilを渡すと標準エラー出力へのフォールバックに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ標準エラー出力に書きます。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	log.Printf("mlu-Warning: %v\n", w)
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing epochs or the learning rate.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、適合率(precision)を計算する際に、陽性クラスの予測が一つもなかった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Chainのステップ境界で扱うエラー型
//
// ===========================================================================

// InitializationError はChainの構築時に入力を内部表現へ変換できなかった場合のエラーです。
// ステップ境界で捕捉されない唯一のエラー種別です。
type InitializationError struct {
	Input  string // 入力の型名
	Reason string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("mlu: cannot initialize chain from %s: %s", e.Input, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InitializationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("input", e.Input).
		Str("reason", e.Reason).
		Str("type", "InitializationError")
}

// NewInitializationError は新しいInitializationErrorを作成し、スタックトレースを付与します。
func NewInitializationError(input, reason string) error {
	return errors.WithStack(&InitializationError{Input: input, Reason: reason})
}

// ConfigurationError はサポートされていない引数（戦略名、エンコーディング種別、モデル種別など）が
// 渡された場合のエラーです。
type ConfigurationError struct {
	Param   string
	Value   interface{}
	Allowed []string // 空の場合は許容値を列挙しない
}

func (e *ConfigurationError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("mlu: unsupported %s %v", e.Param, e.Value)
	}
	return fmt.Sprintf("mlu: unsupported %s %v. Choose from %s", e.Param, e.Value, quoteJoin(e.Allowed))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Interface("value", e.Value).
		Strs("allowed", e.Allowed).
		Str("type", "ConfigurationError")
}

// NewConfigurationError は新しいConfigurationErrorを作成し、スタックトレースを付与します。
func NewConfigurationError(param string, value interface{}, allowed ...string) error {
	return errors.WithStack(&ConfigurationError{Param: param, Value: value, Allowed: allowed})
}

// PreconditionError は必要な前段のステップより先に操作が呼ばれた場合のエラーです。
// 例: SelectModel より先に TrainModel を呼んだ場合。
type PreconditionError struct {
	Op       string
	Requires string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("mlu: %s requires %s first", e.Op, e.Requires)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PreconditionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("requires", e.Requires).
		Str("type", "PreconditionError")
}

// NewPreconditionError は新しいPreconditionErrorを作成し、スタックトレースを付与します。
func NewPreconditionError(op, requires string) error {
	return errors.WithStack(&PreconditionError{Op: op, Requires: requires})
}

// CollaboratorError は委譲先の数値計算・学習ルーチン自体が失敗した場合のエラーです。
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("mlu: %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CollaboratorError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "CollaboratorError")
}

// NewCollaboratorError は新しいCollaboratorErrorを作成し、スタックトレースを付与します。
func NewCollaboratorError(op string, err error) error {
	return errors.WithStack(&CollaboratorError{Op: op, Err: err})
}

// NewCollaboratorErrorf はメッセージから原因エラーを組み立ててCollaboratorErrorを作成します。
func NewCollaboratorErrorf(op, format string, args ...interface{}) error {
	return errors.WithStack(&CollaboratorError{Op: op, Err: errors.Newf(format, args...)})
}

// DegenerateRangeError は最小値と最大値が等しく、min-max正規化が定義できない場合のエラーです。
type DegenerateRangeError struct {
	Op    string
	Value float64 // min == max の値
}

func (e *DegenerateRangeError) Error() string {
	return fmt.Sprintf("mlu: %s: degenerate range, min == max == %g", e.Op, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DegenerateRangeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Float64("value", e.Value).
		Str("type", "DegenerateRangeError")
}

// NewDegenerateRangeError は新しいDegenerateRangeErrorを作成し、スタックトレースを付与します。
func NewDegenerateRangeError(op string, value float64) error {
	return errors.WithStack(&DegenerateRangeError{Op: op, Value: value})
}

// ===========================================================================
//
//	推定器の構造化エラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mlu: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mlu: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mlu: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mlu: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Kind はエラーの種別名を返します（ログの error.type 属性用）。
// 既知の型に当たらない場合は "error" を返します。
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case As(err, new(*InitializationError)):
		return "InitializationError"
	case As(err, new(*ConfigurationError)):
		return "ConfigurationError"
	case As(err, new(*PreconditionError)):
		return "PreconditionError"
	case As(err, new(*DegenerateRangeError)):
		return "DegenerateRangeError"
	case As(err, new(*PanicError)):
		return "PanicError"
	case As(err, new(*CollaboratorError)):
		return "CollaboratorError"
	default:
		return "error"
	}
}

func quoteJoin(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrMissingValues は欠損値を含むデータが渡された場合のエラーです。
	ErrMissingValues = New("data contains missing values")
)
