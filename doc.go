// Package mlu is a fluent toolkit for small machine-learning workflows in Go.
//
// A Chain owns one dataset payload and runs named steps on it: cleaning,
// normalization, encoding, element-wise transforms, aggregation, train/test
// splitting, model selection, training and evaluation. Every step returns
// the chain, so a workflow reads top to bottom.
//
// # Installation
//
//	go get github.com/YuminosukeSato/mlu
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/mlu/chain"
//	)
//
//	func main() {
//	    c, err := chain.New([]float64{-2, -1, 0, 1, 2})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    out := c.Filter(func(x float64) bool { return x > 0 }).
//	        Map(func(x float64) float64 { return x * 2 }).
//	        Value()
//
//	    fmt.Println(out) // [2 4]
//	}
//
// # Error Handling
//
// A failing step never panics and never partially changes the chain. It is
// logged once with its error kind and recorded. With the default
// LogAndContinue policy later steps still run; with FailFast they are
// skipped and the first failure is returned by Chain.Err:
//
//	c, _ := chain.New(rows, chain.WithErrorPolicy(chain.FailFast))
//	c.SplitData(0.2, 42).
//	    SelectModel("decision_tree", map[string]any{"max_depth": 4}).
//	    TrainModel().
//	    EvaluateModel()
//	if err := c.Err(); err != nil {
//	    log.Fatalf("%+v", err)
//	}
//
// # Packages
//
//   - chain: the Chain, its failure policy and the extension registry
//   - dataset: payload kinds (Vector, Matrix, Frame, Summaries) and CSV loading
//   - array: filter, map, aggregate and summary statistics
//   - preprocessing: imputation, min-max normalization, encoding, scalers, PCA
//   - sklearn/model_selection: train/test split, k-fold CV, grid search, leakage checks
//   - sklearn/tree, sklearn/neural_network: the two supported classifiers
//   - sklearn/cluster: mini-batch k-means
//   - models: model construction by name and persistence
//   - metrics, evaluation: classification metrics, ROC and confusion-matrix plots
//   - extensions: optional chain operations, registered by Load
//   - pipeline: YAML, TOML or JSON files that describe a chain
//   - server: HTTP prediction endpoint
//   - cmd/mlu: command-line entry point
//   - pkg/errors, pkg/log: error kinds and structured logging
//
// # Command Line
//
//	mlu run -config pipeline.yaml
//	mlu serve -model model.gob -addr :8080
//
// # License
//
// mlu is released under the MIT License.
package mlu
