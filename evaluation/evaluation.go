// Package evaluation is the model-evaluation collaborator of a Chain. It
// computes classification metrics, logs them, and renders ROC and
// confusion-matrix plots.
package evaluation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/metrics"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// Report holds the metrics of one evaluation.
type Report struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// AUC is set only when scores were supplied.
	AUC *float64 `json:"auc,omitempty"`

	Labels          []float64  `json:"labels"`
	ConfusionMatrix *mat.Dense `json:"-"`

	// YTrue, YPred and YScore keep the evaluated vectors for plotting.
	YTrue  []float64 `json:"-"`
	YPred  []float64 `json:"-"`
	YScore []float64 `json:"-"`
}

// ConfusionRows returns the confusion matrix as row slices.
func (r *Report) ConfusionRows() [][]float64 {
	if r.ConfusionMatrix == nil {
		return nil
	}
	n, _ := r.ConfusionMatrix.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, r.ConfusionMatrix)
	}
	return rows
}

// CalculateMetrics compares predictions with the ground truth and logs
// accuracy, precision and recall through logger. Labels {0,1} use binary
// precision and recall for class 1; other label sets are macro-averaged.
// yScore holds positive-class probabilities; when non-nil the ROC AUC is
// added. Nothing is logged unless every metric succeeds.
func CalculateMetrics(logger log.Logger, yTrue, yPred, yScore []float64) (*Report, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("evaluation")
	}
	if len(yTrue) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "calculate metrics")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("calculate metrics", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	r := &Report{
		Samples: len(yTrue),
		YTrue:   append([]float64(nil), yTrue...),
		YPred:   append([]float64(nil), yPred...),
	}
	var err error
	if r.Accuracy, err = metrics.Accuracy(t, p); err != nil {
		return nil, err
	}
	if r.Precision, err = metrics.Precision(t, p); err != nil {
		return nil, err
	}
	if r.Recall, err = metrics.Recall(t, p); err != nil {
		return nil, err
	}
	if r.F1, err = metrics.F1(t, p); err != nil {
		return nil, err
	}
	if r.ConfusionMatrix, r.Labels, err = metrics.ConfusionMatrix(t, p); err != nil {
		return nil, err
	}
	fields := []any{
		log.SamplesKey, r.Samples,
		log.AccuracyKey, r.Accuracy,
		log.PrecisionKey, r.Precision,
		log.RecallKey, r.Recall,
		log.F1Key, r.F1,
	}
	if yScore != nil {
		if err := r.WithScores(yTrue, yScore); err != nil {
			return nil, err
		}
		fields = append(fields, log.AUCKey, *r.AUC)
	}

	logger.Info("model evaluated", fields...)
	return r, nil
}

// WithScores adds the ROC AUC of yScore (positive-class probabilities) to r.
func (r *Report) WithScores(yTrue, yScore []float64) error {
	if len(yTrue) != len(yScore) {
		return errors.NewDimensionError("auc", len(yTrue), len(yScore), 0)
	}
	if len(yTrue) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "auc")
	}
	auc, err := metrics.AUC(
		mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...)),
		mat.NewVecDense(len(yScore), append([]float64(nil), yScore...)),
	)
	if err != nil {
		return err
	}
	r.AUC = &auc
	r.YScore = append([]float64(nil), yScore...)
	return nil
}
