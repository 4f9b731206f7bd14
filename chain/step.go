package chain

import (
	"time"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// outcome is what a successful step body hands back to run. commit installs
// the new state; nothing is changed before it is called. after runs once the
// success line has been logged.
type outcome struct {
	message string
	commit  func()
	after   func()
	fields  []any

	replaces bool
	next     dataset.Value
}

// swap is the outcome of a step that replaces the payload with next.
func (c *Chain) swap(message string, next dataset.Value, fields ...any) *outcome {
	return &outcome{
		message:  message,
		commit:   func() { c.data = next },
		fields:   fields,
		replaces: true,
		next:     next,
	}
}

// run executes one step. A step skipped by FailFast leaves no failure. A
// failing body never commits.
func (c *Chain) run(step string, body func() (*outcome, error)) *Chain {
	if c.policy == FailFast && c.err != nil {
		c.logger.Warn("step skipped after earlier failure",
			log.StepKey, step, log.StatusKey, "skipped")
		return c
	}

	start := time.Now()
	var out *outcome
	err := errors.SafeExecute(step, func() error {
		var err error
		out, err = body()
		return err
	})
	if err == nil && out == nil {
		err = errors.NewCollaboratorErrorf(step, "step produced no result")
	}
	if err == nil && out.replaces && !dataset.Present(out.next) {
		err = errors.NewCollaboratorErrorf(step, "step produced an empty payload")
	}
	if err != nil {
		c.fail(step, err)
		return c
	}

	if out.commit != nil {
		out.commit()
	}
	fields := []any{
		log.StepKey, step,
		log.StatusKey, "ok",
		log.PayloadKindKey, string(c.data.Kind()),
		log.PayloadLenKey, c.data.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	c.logger.Info(out.message, append(fields, out.fields...)...)
	if out.after != nil {
		out.after()
	}
	return c
}

// fail records err for step and logs it once. Errors that are not one of
// the chain's error kinds are reported as collaborator failures.
func (c *Chain) fail(step string, err error) {
	if errors.Kind(err) == "error" {
		err = errors.NewCollaboratorError(step, err)
	}
	c.failures = append(c.failures, StepFailure{Step: step, Err: err})
	if c.err == nil {
		c.err = err
	}
	c.logger.Error("step failed", err,
		log.StepKey, step,
		log.StatusKey, "failed",
		log.ErrorTypeKey, errors.Kind(err),
	)
}
