// Package pipeline runs a Chain described by a YAML, TOML or JSON file.
//
//	name: iris
//	policy: fail_fast
//	extensions: true
//	input:
//	  path: iris.csv
//	steps:
//	  - op: handle_missing_values
//	    strategy: mean
//	  - op: encode_categorical
//	    encoding: label
//	  - op: split_data
//	    test_size: 0.25
//	  - op: select_model
//	    model: decision_tree
//	    params: {max_depth: 3}
//	  - op: train_model
//	  - op: evaluate_model
//	output:
//	  model: iris.gob
//	  importance_plot: importance.png
package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlu/chain"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/sklearn/model_selection"
)

// Supported file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Config is one pipeline file.
type Config struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	// Policy is log_and_continue (default) or fail_fast.
	Policy string `yaml:"policy" toml:"policy" json:"policy"`
	// Extensions loads the optional operations of package extensions.
	Extensions bool   `yaml:"extensions" toml:"extensions" json:"extensions"`
	Input      Input  `yaml:"input" toml:"input" json:"input"`
	Steps      []Step `yaml:"steps" toml:"steps" json:"steps"`
	Output     Output `yaml:"output" toml:"output" json:"output"`

	// dir resolves relative paths; set by Load.
	dir string
}

// Input names exactly one data source.
type Input struct {
	// Path is a CSV file with a header row.
	Path      string      `yaml:"path" toml:"path" json:"path"`
	Delimiter string      `yaml:"delimiter" toml:"delimiter" json:"delimiter"`
	Values    []float64   `yaml:"values" toml:"values" json:"values"`
	Rows      [][]float64 `yaml:"rows" toml:"rows" json:"rows"`
}

// Output lists optional artifacts written after the chain has run.
type Output struct {
	Model         string `yaml:"model" toml:"model" json:"model"`
	ROCPlot       string `yaml:"roc_plot" toml:"roc_plot" json:"roc_plot"`
	ConfusionPlot string `yaml:"confusion_plot" toml:"confusion_plot" json:"confusion_plot"`
	// ImportancePlot needs a trained model and a split. Importances are
	// measured on the test partition.
	ImportancePlot string `yaml:"importance_plot" toml:"importance_plot" json:"importance_plot"`
}

// Step is one chain operation. Only the fields used by Op are read.
type Step struct {
	Op string `yaml:"op" toml:"op" json:"op"`

	Strategy  string `yaml:"strategy" toml:"strategy" json:"strategy"`
	Encoding  string `yaml:"encoding" toml:"encoding" json:"encoding"`
	Operation string `yaml:"operation" toml:"operation" json:"operation"`

	// Where is the filter predicate, Expr the map function.
	Where *Expr `yaml:"where" toml:"where" json:"where"`
	Expr  *Expr `yaml:"expr" toml:"expr" json:"expr"`

	TestSize    float64 `yaml:"test_size" toml:"test_size" json:"test_size"`
	RandomState int64   `yaml:"random_state" toml:"random_state" json:"random_state"`

	Model  string           `yaml:"model" toml:"model" json:"model"`
	Params map[string]any   `yaml:"params" toml:"params" json:"params"`
	Grid   map[string][]any `yaml:"grid" toml:"grid" json:"grid"`
	Search Search           `yaml:"search" toml:"search" json:"search"`

	// Candidates are the models compare_models scores with Search.CV and
	// Search.Scoring.
	Candidates []models.Candidate `yaml:"candidates" toml:"candidates" json:"candidates"`

	// Args are passed to a registered extension operation.
	Args []any `yaml:"args" toml:"args" json:"args"`
}

// Search configures optimize_model. compare_models reads CV and Scoring.
type Search struct {
	Type        string `yaml:"type" toml:"type" json:"type"`
	CV          int    `yaml:"cv" toml:"cv" json:"cv"`
	Scoring     string `yaml:"scoring" toml:"scoring" json:"scoring"`
	NIter       int    `yaml:"n_iter" toml:"n_iter" json:"n_iter"`
	RandomState int64  `yaml:"random_state" toml:"random_state" json:"random_state"`
	NJobs       int    `yaml:"n_jobs" toml:"n_jobs" json:"n_jobs"`
}

func (s Search) options() model_selection.SearchOptions {
	return model_selection.SearchOptions{
		Type:        s.Type,
		CV:          s.CV,
		Scoring:     s.Scoring,
		NIter:       s.NIter,
		RandomState: s.RandomState,
		NJobs:       s.NJobs,
	}
}

// Expr is a comparison (filter) or arithmetic (map) against Value.
type Expr struct {
	Op    string  `yaml:"op" toml:"op" json:"op"`
	Value float64 `yaml:"value" toml:"value" json:"value"`
}

var (
	comparisons = []string{">", ">=", "<", "<=", "==", "!="}
	arithmetic  = []string{"+", "-", "*", "/", "pow", "abs", "log"}
)

// Predicate returns the comparison x <op> Value.
func (e *Expr) Predicate() (func(float64) bool, error) {
	v := e.Value
	switch e.Op {
	case ">":
		return func(x float64) bool { return x > v }, nil
	case ">=":
		return func(x float64) bool { return x >= v }, nil
	case "<":
		return func(x float64) bool { return x < v }, nil
	case "<=":
		return func(x float64) bool { return x <= v }, nil
	case "==":
		return func(x float64) bool { return x == v }, nil
	case "!=":
		return func(x float64) bool { return x != v }, nil
	}
	return nil, errors.NewConfigurationError("where.op", e.Op, comparisons...)
}

// Func returns the arithmetic x <op> Value. abs and log ignore Value.
func (e *Expr) Func() (func(float64) float64, error) {
	v := e.Value
	switch e.Op {
	case "+":
		return func(x float64) float64 { return x + v }, nil
	case "-":
		return func(x float64) float64 { return x - v }, nil
	case "*":
		return func(x float64) float64 { return x * v }, nil
	case "/":
		if v == 0 {
			return nil, errors.NewValidationError("expr.value", "division by zero", v)
		}
		return func(x float64) float64 { return x / v }, nil
	case "pow":
		return func(x float64) float64 { return math.Pow(x, v) }, nil
	case "abs":
		return math.Abs, nil
	case "log":
		return math.Log, nil
	}
	return nil, errors.NewConfigurationError("expr.op", e.Op, arithmetic...)
}

// FormatOf maps a file extension to a format.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.NewConfigurationError("config format", filepath.Ext(path), ".yaml", ".yml", ".toml", ".json")
}

// Load reads and validates a pipeline file. Relative paths inside it are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	cfg, err := Parse(b, format)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates a pipeline in the given format.
func Parse(b []byte, format string) (*Config, error) {
	var cfg Config
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(b, &cfg)
	case FormatTOML:
		err = toml.Unmarshal(b, &cfg)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, errors.NewConfigurationError("config format", format, FormatYAML, FormatTOML, FormatJSON)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks what can be checked before any data is loaded.
func (c *Config) Validate() error {
	sources := 0
	if c.Input.Path != "" {
		sources++
	}
	if len(c.Input.Values) > 0 {
		sources++
	}
	if len(c.Input.Rows) > 0 {
		sources++
	}
	if sources != 1 {
		return errors.NewValidationError("input", "exactly one of path, values or rows is required", sources)
	}
	if len([]rune(c.Input.Delimiter)) > 1 {
		return errors.NewValidationError("input.delimiter", "must be a single character", c.Input.Delimiter)
	}
	if _, ok := chain.ParsePolicy(c.Policy); !ok {
		return errors.NewConfigurationError("policy", c.Policy, "log_and_continue", "fail_fast")
	}
	if len(c.Steps) == 0 {
		return errors.NewValidationError("steps", "at least one step is required", 0)
	}
	for i, s := range c.Steps {
		if s.Op == "" {
			return errors.NewValidationError("steps", "op is required", i)
		}
		switch s.Op {
		case chain.StepFilter:
			if s.Where == nil {
				return errors.NewValidationError("steps", "filter needs where", i)
			}
			if _, err := s.Where.Predicate(); err != nil {
				return err
			}
		case chain.StepMap:
			if s.Expr == nil {
				return errors.NewValidationError("steps", "map needs expr", i)
			}
			if _, err := s.Expr.Func(); err != nil {
				return err
			}
		case chain.StepCompareModels:
			if len(s.Candidates) == 0 {
				return errors.NewValidationError("steps", "compare_models needs candidates", i)
			}
		case chain.StepTryMap, chain.StepValue, chain.StepApply:
			return errors.NewConfigurationError("step op", s.Op+" (not available in pipeline files)")
		}
	}
	return nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}
