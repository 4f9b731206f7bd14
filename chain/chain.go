// Package chain provides Chain, a fluent wrapper that owns one dataset payload
// and runs named operations on it.
//
// Every operation returns the receiver so calls can be chained:
//
//	c, err := chain.New([]float64{-2, -1, 0, 1, 2})
//	if err != nil {
//		return err
//	}
//	out := c.Filter(func(x float64) bool { return x > 0 }).
//		Map(func(x float64) float64 { return x * 2 }).
//		Value() // [2 4]
//
// A failing operation leaves the payload and all auxiliary state as they
// were, records a StepFailure and logs one error line. Under the default
// LogAndContinue policy later operations still run; under FailFast they are
// skipped and the first failure is reported by Err and Result.
//
// A Chain is not safe for concurrent use. A Registry may be shared.
package chain

import (
	"github.com/google/uuid"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/evaluation"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

// Policy decides what happens to later steps after a step fails.
type Policy int

const (
	// LogAndContinue logs each failure and keeps running later steps.
	LogAndContinue Policy = iota
	// FailFast skips every step after the first failure.
	FailFast
)

func (p Policy) String() string {
	if p == FailFast {
		return "fail_fast"
	}
	return "log_and_continue"
}

// ParsePolicy maps "log_and_continue" / "fail_fast" to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "log_and_continue", "continue":
		return LogAndContinue, true
	case "fail_fast", "strict":
		return FailFast, true
	}
	return LogAndContinue, false
}

// Split is the train/test partition produced by SplitData.
type Split = model_selection.Split

// StepFailure records one failed step.
type StepFailure struct {
	Step string
	Err  error
}

// Chain owns one payload and the auxiliary state built up by its steps.
type Chain struct {
	data dataset.Value

	split   *Split
	model   models.Classifier
	trained bool
	report  *evaluation.Report

	failures []StepFailure
	err      error

	logger   log.Logger
	registry *Registry
	policy   Policy
	runID    string
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger every step reports to.
func WithLogger(l log.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// WithRegistry sets the registry Apply looks operations up in.
func WithRegistry(r *Registry) Option {
	return func(c *Chain) { c.registry = r }
}

// WithErrorPolicy sets the failure policy.
func WithErrorPolicy(p Policy) Option {
	return func(c *Chain) { c.policy = p }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(c *Chain) { c.runID = id }
}

// New builds a Chain over a copy of input. Input that cannot be coerced into
// a payload yields an InitializationError; see dataset.From for the accepted
// types.
func New(input any, opts ...Option) (*Chain, error) {
	data, err := dataset.From(input)
	if err != nil {
		return nil, err
	}

	c := &Chain{data: data, policy: LogAndContinue}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = newRunID()
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("chain")
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	c.logger = c.logger.With(log.RunIDKey, c.runID)

	c.logger.Info("chain initialized",
		log.PayloadKindKey, string(data.Kind()),
		log.PayloadLenKey, data.Len(),
		"policy", c.policy.String(),
	)
	return c, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Value returns the current payload. It never fails.
func (c *Chain) Value() dataset.Value {
	return c.data
}

// Split returns the train/test partition if SplitData has succeeded.
func (c *Chain) Split() (*Split, bool) {
	return c.split, c.split != nil
}

// Model returns the selected model, trained or not.
func (c *Chain) Model() (models.Classifier, bool) {
	return c.model, c.model != nil
}

// Trained reports whether the selected model has been fitted.
func (c *Chain) Trained() bool {
	return c.model != nil && c.trained
}

// Report returns the metrics of the last successful EvaluateModel.
func (c *Chain) Report() (*evaluation.Report, bool) {
	return c.report, c.report != nil
}

// Failures returns every recorded step failure in order.
func (c *Chain) Failures() []StepFailure {
	return append([]StepFailure(nil), c.failures...)
}

// Err returns the first step failure, or nil.
func (c *Chain) Err() error {
	return c.err
}

// Result returns the payload together with the first step failure.
func (c *Chain) Result() (dataset.Value, error) {
	return c.data, c.err
}

// RunID identifies this chain in log records.
func (c *Chain) RunID() string {
	return c.runID
}

// Policy returns the failure policy.
func (c *Chain) Policy() Policy {
	return c.policy
}
