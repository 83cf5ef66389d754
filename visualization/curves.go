package visualization

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/tsawler/go-boltzmann/training"
)

// CurveFormats are the formats accepted by WriteCurves.
var CurveFormats = []string{"svg", "png", "pdf"}

// NewCurvePlot plots the given metrics against the epoch number.
func NewCurvePlot(history *training.History, title string, metrics ...training.MetricType) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.X.Padding, p.Y.Padding = 0, 0
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, mt := range metrics {
		values := history.Series(mt)
		if len(values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(values))
		for e, v := range values {
			pts[e].X = float64(history.Epochs[e].Epoch + 1)
			pts[e].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %v", mt, err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(mt.String(), line)
	}
	return p, nil
}

// WriteCurves renders the metrics as a width x height point image.
func WriteCurves(w io.Writer, history *training.History, format string, width, height int, metrics ...training.MetricType) error {
	if len(metrics) == 0 {
		metrics = []training.MetricType{training.ReconstructionError}
	}
	p, err := NewCurvePlot(history, "RBM training", metrics...)
	if err != nil {
		return err
	}
	writer, err := p.WriterTo(vg.Points(float64(width)), vg.Points(float64(height)), format)
	if err != nil {
		return fmt.Errorf("error writing plot: %v", err)
	}
	_, err = writer.WriteTo(w)
	return err
}
