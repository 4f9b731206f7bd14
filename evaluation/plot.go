package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlu/metrics"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// PlotSize is the width and height of saved plots.
var PlotSize = 5 * vg.Inch

// PlotROCCurve draws the ROC curve of binary labels yTrue against the
// positive-class scores yScore. When path is non-empty the plot is saved
// there, the format chosen by the file extension (.png, .svg, .pdf).
func PlotROCCurve(yTrue, yScore []float64, path string) (*plot.Plot, error) {
	if len(yTrue) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "plot roc curve")
	}
	if len(yTrue) != len(yScore) {
		return nil, errors.NewDimensionError("plot roc curve", len(yTrue), len(yScore), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	s := mat.NewVecDense(len(yScore), append([]float64(nil), yScore...))

	fpr, tpr, _, err := metrics.ROCCurve(t, s)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.AUC(t, s)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Receiver Operating Characteristic"
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(fpr))
	for i := range fpr {
		pts[i] = plotter.XY{X: fpr[i], Y: tpr[i]}
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "roc line")
	}
	curve.LineStyle.Width = vg.Points(2)

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, errors.Wrap(err, "chance line")
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(curve, chance)
	p.Legend.Add(fmt.Sprintf("ROC curve (area = %.2f)", auc), curve)
	p.Legend.Top = false
	p.Legend.Left = false

	if err := save(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Row 0 of the
// matrix is drawn at the top.
type confusionGrid struct {
	cm *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.cm.Dims()
	return c, r
}

func (g confusionGrid) Z(c, r int) float64 {
	n, _ := g.cm.Dims()
	return g.cm.At(n-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// PlotConfusionMatrix draws cm as a heat map with the counts written in each
// cell. Rows are true labels and columns predicted labels.
func PlotConfusionMatrix(cm *mat.Dense, labels []float64, path string) (*plot.Plot, error) {
	if cm == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "plot confusion matrix")
	}
	r, c := cm.Dims()
	if r != c || r != len(labels) {
		return nil, errors.NewDimensionError("plot confusion matrix", len(labels), r, 0)
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"

	grid := confusionGrid{cm: cm}
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(heat)

	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = fmt.Sprintf("%g", l)
	}
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}
	p.NominalX(names...)
	p.NominalY(reversed...)

	var cells plotter.XYLabels
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(j), Y: float64(r - 1 - i)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%g", cm.At(i, j)))
		}
	}
	text, err := plotter.NewLabels(cells)
	if err != nil {
		return nil, errors.Wrap(err, "cell labels")
	}
	p.Add(text)

	if err := save(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

// PlotFeatureImportance draws one horizontal bar per feature. names may be
// nil, in which case features are labelled x0, x1 and so on.
func PlotFeatureImportance(importances []float64, names []string, path string) (*plot.Plot, error) {
	if len(importances) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "plot feature importance")
	}
	if names == nil {
		names = make([]string, len(importances))
		for i := range names {
			names[i] = fmt.Sprintf("x%d", i)
		}
	}
	if len(names) != len(importances) {
		return nil, errors.NewDimensionError("plot feature importance", len(importances), len(names), 0)
	}

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.X.Label.Text = "Importance"
	p.Y.Label.Text = "Feature"

	bars, err := plotter.NewBarChart(plotter.Values(importances), vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "importance bars")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(names...)

	if err := save(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

func save(p *plot.Plot, path string) error {
	if path == "" {
		return nil
	}
	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
