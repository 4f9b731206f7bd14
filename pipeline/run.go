package pipeline

import (
	"github.com/YuminosukeSato/mlu/chain"
	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/evaluation"
	"github.com/YuminosukeSato/mlu/extensions"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// Result is what a pipeline run produced.
type Result struct {
	Name     string              `json:"name,omitempty"`
	RunID    string              `json:"run_id"`
	Value    dataset.Envelope    `json:"value"`
	Report   *evaluation.Report  `json:"report,omitempty"`
	Failures []chain.StepFailure `json:"-"`
	// Errors holds the failure messages in step order.
	Errors    []string `json:"errors,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`

	chain *chain.Chain
}

// Err returns the first step failure, or nil.
func (r *Result) Err() error {
	return r.chain.Err()
}

// Chain returns the chain the pipeline ran on.
func (r *Result) Chain() *chain.Chain {
	return r.chain
}

// Run builds a Chain from cfg and runs every step. Step failures do not make
// Run fail; they are reported by Result.Err and Result.Errors. Run returns an
// error when the input cannot be loaded or an output cannot be written.
func Run(cfg *Config, opts ...chain.Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	input, err := cfg.loadInput()
	if err != nil {
		return nil, err
	}

	policy, _ := chain.ParsePolicy(cfg.Policy)
	reg := chain.NewRegistry()
	if cfg.Extensions {
		if err := extensions.Load(reg); err != nil {
			return nil, err
		}
	}
	base := []chain.Option{chain.WithRegistry(reg), chain.WithErrorPolicy(policy)}
	c, err := chain.New(input, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	for _, s := range cfg.Steps {
		apply(c, s)
	}

	res := &Result{
		Name:     cfg.Name,
		RunID:    c.RunID(),
		Value:    dataset.Wrap(c.Value()),
		Failures: c.Failures(),
		chain:    c,
	}
	for _, f := range res.Failures {
		res.Errors = append(res.Errors, f.Err.Error())
	}
	if r, ok := c.Report(); ok {
		res.Report = r
	}

	if err := cfg.writeOutputs(c, res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Config) loadInput() (any, error) {
	switch {
	case c.Input.Path != "":
		var opt dataset.CSVOptions
		if c.Input.Delimiter != "" {
			opt.Delimiter = []rune(c.Input.Delimiter)[0]
		}
		return dataset.ReadCSVFile(c.resolve(c.Input.Path), opt)
	case len(c.Input.Values) > 0:
		return c.Input.Values, nil
	default:
		return c.Input.Rows, nil
	}
}

// apply dispatches one step. Unknown ops go through the registry.
func apply(c *chain.Chain, s Step) {
	switch s.Op {
	case chain.StepHandleMissingValues:
		c.HandleMissingValues(s.Strategy)
	case chain.StepNormalize:
		c.Normalize()
	case chain.StepEncodeCategorical:
		c.EncodeCategorical(s.Encoding)
	case chain.StepFilter:
		pred, _ := s.Where.Predicate()
		c.Filter(pred)
	case chain.StepMap:
		fn, _ := s.Expr.Func()
		c.Map(fn)
	case chain.StepAggregate:
		c.Aggregate(s.Operation)
	case chain.StepSummary:
		c.Summary()
	case chain.StepSplitData:
		c.SplitData(s.TestSize, s.RandomState)
	case chain.StepSelectModel:
		c.SelectModel(s.Model, s.Params)
	case chain.StepTrainModel:
		c.TrainModel()
	case chain.StepEvaluateModel:
		c.EvaluateModel()
	case chain.StepOptimizeModel:
		c.OptimizeModel(s.Model, s.Grid, s.Search.options())
	case chain.StepCompareModels:
		c.CompareModels(s.Candidates, s.Search.CV, s.Search.Scoring)
	default:
		c.Apply(s.Op, s.Args...)
	}
}

func (c *Config) writeOutputs(ch *chain.Chain, res *Result) error {
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, ch.RunID())

	if path := c.resolve(c.Output.Model); path != "" {
		m, ok := ch.Model()
		if !ok || !ch.Trained() {
			return errors.NewPreconditionError("save model", chain.StepTrainModel)
		}
		if err := models.SaveFile(m, path); err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, path)
		logger.Info("model saved", "path", path)
	}

	report, ok := ch.Report()
	if c.Output.ROCPlot != "" || c.Output.ConfusionPlot != "" {
		if !ok {
			return errors.NewPreconditionError("write plots", chain.StepEvaluateModel)
		}
	}
	if path := c.resolve(c.Output.ROCPlot); path != "" {
		if report.YScore == nil {
			logger.Warn("ROC plot skipped: no probability scores for binary labels", "path", path)
		} else {
			if _, err := evaluation.PlotROCCurve(report.YTrue, report.YScore, path); err != nil {
				return err
			}
			res.Artifacts = append(res.Artifacts, path)
		}
	}
	if path := c.resolve(c.Output.ConfusionPlot); path != "" {
		if _, err := evaluation.PlotConfusionMatrix(report.ConfusionMatrix, report.Labels, path); err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, path)
	}
	if path := c.resolve(c.Output.ImportancePlot); path != "" {
		if err := writeImportancePlot(ch, path); err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, path)
		logger.Info("feature importance plot saved", "path", path)
	}
	return nil
}

func writeImportancePlot(ch *chain.Chain, path string) error {
	m, ok := ch.Model()
	split, hasSplit := ch.Split()
	if !ok || !ch.Trained() || !hasSplit {
		return errors.NewPreconditionError("plot feature importance", chain.StepTrainModel)
	}
	imp, err := models.FeatureImportances(m, split.XTest, split.YTest)
	if err != nil {
		return err
	}
	_, err = evaluation.PlotFeatureImportance(imp, featureNames(ch.Value(), len(imp)), path)
	return err
}

// featureNames returns the frame's column names without the label column,
// or nil when the payload carries no names.
func featureNames(v dataset.Value, n int) []string {
	f, ok := v.(*dataset.Frame)
	if !ok {
		return nil
	}
	names := f.Names()
	if len(names) != n+1 {
		return nil
	}
	return names[:n]
}
