package log

// Pipeline context.
const (
	// StepKey names the Chain step that produced the record.
	// Examples: "normalize", "split_data", "train_model", "pca"
	StepKey = "chain.step"

	// RunIDKey identifies one Chain instance across all of its records.
	RunIDKey = "chain.run_id"

	// ComponentKey identifies the package emitting the record.
	ComponentKey = "component"

	// StatusKey is "ok", "failed" or "skipped".
	StatusKey = "chain.status"
)

// Payload shape.
const (
	// PayloadKindKey is the kind of the current payload: "vector", "matrix",
	// "frame" or "summary".
	PayloadKindKey = "payload.kind"

	// PayloadLenKey is the number of elements (vector) or rows.
	PayloadLenKey = "payload.len"

	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Models.
const (
	ModelTypeKey = "model.type"
	ParamsKey    = "model.params"
	ClassesKey   = "model.classes"
	EpochKey     = "model.epoch"
	LossKey      = "model.loss"
)

// Statistics and metrics.
const (
	StatisticKey = "stat.name"
	ValueKey     = "stat.value"

	AccuracyKey  = "metrics.accuracy"
	PrecisionKey = "metrics.precision"
	RecallKey    = "metrics.recall"
	F1Key        = "metrics.f1"
	AUCKey       = "metrics.auc"
)

// Performance and errors.
const (
	DurationMsKey = "perf.duration_ms"

	ErrorTypeKey = "error.type"
	ErrorCodeKey = "error.code"
)
