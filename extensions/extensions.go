// Package extensions registers the optional Chain operations. Nothing is
// registered until Load is called:
//
//	reg := chain.DefaultRegistry()
//	if err := extensions.Load(reg); err != nil {
//		return err
//	}
//	c, _ := chain.New(rows, chain.WithRegistry(reg))
//	c.Apply("pca", 2).Apply("cluster", 3)
package extensions

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/mlu/chain"
	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
	"github.com/YuminosukeSato/mlu/preprocessing"
	"github.com/YuminosukeSato/mlu/sklearn/cluster"
	"github.com/YuminosukeSato/mlu/sklearn/ensemble"
	"github.com/YuminosukeSato/mlu/sklearn/neighbors"
)

// Operation names.
const (
	FilterRows         = "filter_rows"
	RemoveLowVariance  = "remove_low_variance"
	PCA                = "pca"
	PolynomialFeatures = "polynomial_features"
	Cluster            = "cluster"
	CustomMap          = "custom_map"
	MaxScale           = "max_scale"
	IsolationForest    = "isolation_forest"
	LocalOutlier       = "local_outlier_factor"
)

var operations = []struct {
	name string
	op   chain.Operation
}{
	{FilterRows, filterRows},
	{RemoveLowVariance, removeLowVariance},
	{PCA, pca},
	{PolynomialFeatures, polynomialFeatures},
	{Cluster, clusterLabels},
	{CustomMap, customMap},
	{MaxScale, maxScale},
	{IsolationForest, isolationForest},
	{LocalOutlier, localOutlierFactor},
}

// Names lists every operation Load registers.
func Names() []string {
	names := make([]string, len(operations))
	for i, o := range operations {
		names[i] = o.name
	}
	return names
}

// Load registers every extension operation in reg. Loading twice into the
// same registry fails with a ConfigurationError.
func Load(reg *chain.Registry) error {
	for _, o := range operations {
		if err := reg.Register(o.name, o.op); err != nil {
			return err
		}
	}
	log.GetLoggerWithName("extensions").Debug("extensions loaded", "count", len(operations))
	return nil
}

// matrix returns a Matrix or all-numeric Frame payload as a Matrix.
func matrix(op string, data dataset.Value) (*dataset.Matrix, error) {
	switch p := data.(type) {
	case *dataset.Matrix:
		return p, nil
	case *dataset.Frame:
		return p.ToMatrix()
	default:
		return nil, errors.NewCollaboratorErrorf(op, "expected a matrix or frame payload, got %s", data.Kind())
	}
}

// filterRows keeps the rows of a matrix for which the predicate holds.
// args: func([]float64) bool
func filterRows(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(FilterRows, data)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, errors.NewValidationError("args", "filter_rows takes one predicate", len(args))
	}
	pred, ok := args[0].(func([]float64) bool)
	if !ok {
		return nil, errors.NewValidationError("predicate", "must be func([]float64) bool", args[0])
	}

	var rows [][]float64
	for _, row := range m.Rows() {
		if pred(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, errors.NewCollaboratorErrorf(FilterRows, "no rows matched")
	}
	return dataset.MatrixFromRows(rows)
}

// removeLowVariance drops columns whose variance is at most the threshold.
// args: threshold (default 0)
func removeLowVariance(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(RemoveLowVariance, data)
	if err != nil {
		return nil, err
	}
	threshold, err := floatArg(args, 0, "threshold", 0)
	if err != nil {
		return nil, err
	}
	out, _, err := preprocessing.RemoveLowVarianceFeatures(m, threshold)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pca projects onto the leading principal components.
// args: n_components (default 2)
func pca(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(PCA, data)
	if err != nil {
		return nil, err
	}
	n, err := intArg(args, 0, "n_components", 2)
	if err != nil {
		return nil, err
	}
	res, err := preprocessing.PCA(m, n)
	if err != nil {
		return nil, err
	}
	return res.Transformed, nil
}

// polynomialFeatures expands columns into polynomial terms.
// args: degree (default 2), include_bias (default true)
func polynomialFeatures(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(PolynomialFeatures, data)
	if err != nil {
		return nil, err
	}
	degree, err := intArg(args, 0, "degree", 2)
	if err != nil {
		return nil, err
	}
	bias := true
	if len(args) > 1 {
		b, ok := args[1].(bool)
		if !ok {
			return nil, errors.NewValidationError("include_bias", "must be a bool", args[1])
		}
		bias = b
	}
	return preprocessing.PolynomialFeatures(m, degree, bias)
}

// clusterLabels replaces the payload with mini-batch k-means labels.
// args: n_clusters (default 3), random_state (default 0)
func clusterLabels(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(Cluster, data)
	if err != nil {
		return nil, err
	}
	k, err := intArg(args, 0, "n_clusters", 3)
	if err != nil {
		return nil, err
	}
	seed, err := intArg(args, 1, "random_state", 0)
	if err != nil {
		return nil, err
	}

	km := cluster.NewMiniBatchKMeans(
		cluster.WithKMeansNClusters(k),
		cluster.WithKMeansRandomState(int64(seed)),
	)
	if err := km.Fit(m.Dense()); err != nil {
		return nil, err
	}
	labels := km.Labels()
	out := make(dataset.Vector, len(labels))
	for i, l := range labels {
		out[i] = float64(l)
	}
	log.GetLoggerWithName("extensions").Info("data clustered",
		log.StepKey, Cluster, "n_clusters", k, "inertia", km.Inertia())
	return out, nil
}

// customMap applies a function element-wise to a Vector payload.
// args: func(float64) float64
func customMap(data dataset.Value, args ...any) (dataset.Value, error) {
	v, ok := data.(dataset.Vector)
	if !ok {
		return nil, errors.NewCollaboratorErrorf(CustomMap, "expected a vector payload, got %s", data.Kind())
	}
	if len(args) != 1 {
		return nil, errors.NewValidationError("args", "custom_map takes one function", len(args))
	}
	fn, ok := args[0].(func(float64) float64)
	if !ok {
		return nil, errors.NewValidationError("function", "must be func(float64) float64", args[0])
	}
	out := make(dataset.Vector, len(v))
	for i, x := range v {
		out[i] = fn(x)
	}
	return out, nil
}

// maxScale divides every cell by the maximum cell.
func maxScale(data dataset.Value, _ ...any) (dataset.Value, error) {
	var values []float64
	switch p := data.(type) {
	case dataset.Vector:
		values = p
	case *dataset.Matrix:
		values = p.Values()
	default:
		return nil, errors.NewCollaboratorErrorf(MaxScale, "expected a vector or matrix payload, got %s", data.Kind())
	}
	if len(values) == 0 {
		return nil, errors.NewCollaboratorError(MaxScale, errors.ErrEmptyData)
	}
	for _, x := range values {
		if math.IsNaN(x) {
			return nil, errors.NewCollaboratorError(MaxScale, errors.ErrMissingValues)
		}
	}
	hi := floats.Max(values)
	if hi == 0 {
		return nil, errors.NewDegenerateRangeError(MaxScale, hi)
	}

	switch p := data.(type) {
	case dataset.Vector:
		out := make(dataset.Vector, len(p))
		copy(out, p)
		floats.Scale(1/hi, out)
		return out, nil
	default:
		m := p.(*dataset.Matrix)
		out := dataset.MatrixFrom(m.Dense())
		out.Dense().Scale(1/hi, out.Dense())
		return out, nil
	}
}

// isolationForest replaces the payload with the row indices an isolation
// forest flags as outliers. The result may be an empty vector.
// args: contamination (default 0.01), random_state (default 0)
func isolationForest(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(IsolationForest, data)
	if err != nil {
		return nil, err
	}
	contamination, err := floatArg(args, 0, "contamination", 0.01)
	if err != nil {
		return nil, err
	}
	seed, err := intArg(args, 1, "random_state", 0)
	if err != nil {
		return nil, err
	}
	forest := ensemble.NewIsolationForest(
		ensemble.WithContamination(contamination),
		ensemble.WithRandomState(int64(seed)),
	)
	idx, err := forest.FitOutliers(m.Dense())
	if err != nil {
		return nil, err
	}
	return anomalies(IsolationForest, idx, m.Len()), nil
}

// localOutlierFactor replaces the payload with the row indices whose local
// outlier factor is in the lowest contamination share.
// args: n_neighbors (default 20), contamination (default 0.05)
func localOutlierFactor(data dataset.Value, args ...any) (dataset.Value, error) {
	m, err := matrix(LocalOutlier, data)
	if err != nil {
		return nil, err
	}
	k, err := intArg(args, 0, "n_neighbors", 20)
	if err != nil {
		return nil, err
	}
	contamination, err := floatArg(args, 1, "contamination", 0.05)
	if err != nil {
		return nil, err
	}
	lof := neighbors.NewLocalOutlierFactor(
		neighbors.WithNNeighbors(k),
		neighbors.WithContamination(contamination),
	)
	idx, err := lof.FitOutliers(m.Dense())
	if err != nil {
		return nil, err
	}
	return anomalies(LocalOutlier, idx, m.Len()), nil
}

func anomalies(op string, idx []int, rows int) dataset.Vector {
	out := make(dataset.Vector, len(idx))
	for i, r := range idx {
		out[i] = float64(r)
	}
	log.GetLoggerWithName("extensions").Info("anomaly detection completed",
		log.StepKey, op, log.SamplesKey, rows, "anomalies", len(idx))
	return out
}

func intArg(args []any, i int, name string, def int) (int, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch n := args[i].(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.NewValidationError(name, "must be an integer", n)
		}
		return int(n), nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", args[i])
	}
}

func floatArg(args []any, i int, name string, def float64) (float64, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch n := args[i].(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", args[i])
	}
}
