package training

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tsawler/go-boltzmann/rbm"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	TrainingCurves        PlotType = "training_curves"
	FreeEnergyCurves      PlotType = "free_energy_curves"
	LearningRateSchedule  PlotType = "learning_rate_schedule"
	GradientMagnitude     PlotType = "gradient_magnitude"
	ParameterDistribution PlotType = "parameter_distribution"
)

// PlotData is the JSON document served to plotting front ends
type PlotData struct {
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	Series []SeriesData `json:"series"`
	Config PlotConfig   `json:"config"`

	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "bar"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel string `json:"x_axis_label"`
	YAxisLabel string `json:"y_axis_label"`
	XAxisScale string `json:"x_axis_scale"` // "linear", "log"
	YAxisScale string `json:"y_axis_scale"` // "linear", "log"
	ShowLegend bool   `json:"show_legend"`
	ShowGrid   bool   `json:"show_grid"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// ParameterStats summarizes the distribution of one parameter tensor
type ParameterStats struct {
	Name      string    `json:"name"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Histogram []float64 `json:"histogram"`
	Bins      []float64 `json:"bins"` // len(Histogram)+1 edges
}

// VisualizationCollector records training progress for plotting. Attach it
// with Trainer.AddObserver and, for per-step series, Trainer.OnBatch.
// It is safe to read plots while training runs.
type VisualizationCollector struct {
	modelName string
	bins      int

	mu            sync.RWMutex
	epochs        []EpochMetrics
	steps         []int
	learningRates []float64
	gradientMax   []float64
	parameters    map[string]ParameterStats
}

// NewVisualizationCollector creates a new visualization collector
func NewVisualizationCollector(modelName string) *VisualizationCollector {
	return &VisualizationCollector{
		modelName:  modelName,
		bins:       30,
		parameters: make(map[string]ParameterStats),
	}
}

// RecordBatch records per-update values. It has the signature expected by
// Trainer.OnBatch.
func (vc *VisualizationCollector) RecordBatch(r BatchResult) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.steps = append(vc.steps, r.Step)
	vc.learningRates = append(vc.learningRates, r.LearningRate)
	vc.gradientMax = append(vc.gradientMax, r.Gradients.MaxAbs())
}

// ObserveEpoch records the epoch metrics and parameter distributions
func (vc *VisualizationCollector) ObserveEpoch(summary EpochSummary) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.epochs = append(vc.epochs, summary.Metrics)
	if summary.Params != nil {
		for _, ps := range ComputeParameterStats(summary.Params, vc.bins) {
			vc.parameters[ps.Name] = ps
		}
	}
	return nil
}

// GenerateTrainingCurvesPlot plots reconstruction error and hidden
// saturation per epoch
func (vc *VisualizationCollector) GenerateTrainingCurvesPlot() PlotData {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	recon := SeriesData{
		Name:  "Reconstruction Error",
		Type:  "line",
		Data:  make([]DataPoint, len(vc.epochs)),
		Style: map[string]interface{}{"color": "#FF6B6B", "line_width": 2},
	}
	saturation := SeriesData{
		Name:  "Hidden Saturation",
		Type:  "line",
		Data:  make([]DataPoint, len(vc.epochs)),
		Style: map[string]interface{}{"color": "#4ECDC4", "line_width": 2, "line_style": "dashed"},
	}
	for i, m := range vc.epochs {
		recon.Data[i] = DataPoint{X: float64(m.Epoch + 1), Y: m.ReconstructionError}
		saturation.Data[i] = DataPoint{X: float64(m.Epoch + 1), Y: m.HiddenSaturation}
	}

	plot := vc.newPlot(TrainingCurves, "Training Curves", []SeriesData{recon, saturation}, PlotConfig{
		XAxisLabel: "Epoch",
		YAxisLabel: "Error / Fraction",
		Height:     600,
	})
	if n := len(vc.epochs); n > 0 {
		plot.Metrics = map[string]interface{}{
			"final_reconstruction_error": vc.epochs[n-1].ReconstructionError,
			"epochs":                     n,
		}
	}
	return plot
}

// GenerateFreeEnergyPlot plots the mean free energy of data and model
// batches per epoch. A widening gap indicates the chains lag the data.
func (vc *VisualizationCollector) GenerateFreeEnergyPlot() PlotData {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	data := SeriesData{Name: "F(data)", Type: "line", Data: make([]DataPoint, len(vc.epochs)),
		Style: map[string]interface{}{"color": "#FF9F43", "line_width": 2}}
	model := SeriesData{Name: "F(model)", Type: "line", Data: make([]DataPoint, len(vc.epochs)),
		Style: map[string]interface{}{"color": "#5F27CD", "line_width": 2}}
	for i, m := range vc.epochs {
		data.Data[i] = DataPoint{X: float64(m.Epoch + 1), Y: m.DataFreeEnergy}
		model.Data[i] = DataPoint{X: float64(m.Epoch + 1), Y: m.ModelFreeEnergy}
	}
	return vc.newPlot(FreeEnergyCurves, "Free Energy", []SeriesData{data, model}, PlotConfig{
		XAxisLabel: "Epoch",
		YAxisLabel: "Mean free energy",
		Height:     600,
	})
}

// GenerateLearningRateSchedulePlot generates learning rate schedule plot data
func (vc *VisualizationCollector) GenerateLearningRateSchedulePlot() PlotData {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	series := SeriesData{
		Name:  "Learning Rate",
		Type:  "line",
		Data:  make([]DataPoint, len(vc.learningRates)),
		Style: map[string]interface{}{"color": "#6C5CE7", "line_width": 2},
	}
	for i, lr := range vc.learningRates {
		series.Data[i] = DataPoint{X: float64(vc.steps[i]), Y: lr}
	}
	return vc.newPlot(LearningRateSchedule, "Learning Rate Schedule", []SeriesData{series}, PlotConfig{
		XAxisLabel: "Step",
		YAxisLabel: "Learning Rate",
		YAxisScale: "log",
		Height:     400,
	})
}

// GenerateGradientPlot plots the largest absolute gradient entry per step
func (vc *VisualizationCollector) GenerateGradientPlot() PlotData {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	series := SeriesData{Name: "max |g|", Type: "line", Data: make([]DataPoint, len(vc.gradientMax))}
	for i, g := range vc.gradientMax {
		series.Data[i] = DataPoint{X: float64(vc.steps[i]), Y: g}
	}
	return vc.newPlot(GradientMagnitude, "Gradient Magnitude", []SeriesData{series}, PlotConfig{
		XAxisLabel: "Step",
		YAxisLabel: "max |g|",
		Height:     400,
	})
}

// GenerateParameterDistributionPlot plots a histogram per parameter tensor
// from the most recent epoch
func (vc *VisualizationCollector) GenerateParameterDistributionPlot() PlotData {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	names := make([]string, 0, len(vc.parameters))
	for name := range vc.parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	var series []SeriesData
	metrics := make(map[string]interface{})
	for _, name := range names {
		ps := vc.parameters[name]
		s := SeriesData{Name: name, Type: "bar", Data: make([]DataPoint, len(ps.Histogram))}
		for i, count := range ps.Histogram {
			s.Data[i] = DataPoint{X: (ps.Bins[i] + ps.Bins[i+1]) / 2, Y: count}
		}
		series = append(series, s)
		metrics[name+"_mean"] = ps.Mean
		metrics[name+"_std"] = ps.Std
	}

	plot := vc.newPlot(ParameterDistribution, "Parameter Distribution", series, PlotConfig{
		XAxisLabel: "Value",
		YAxisLabel: "Count",
		Height:     400,
	})
	plot.Metrics = metrics
	return plot
}

// History returns a copy of the recorded epoch metrics
func (vc *VisualizationCollector) History() []EpochMetrics {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return append([]EpochMetrics(nil), vc.epochs...)
}

func (vc *VisualizationCollector) newPlot(pt PlotType, title string, series []SeriesData, cfg PlotConfig) PlotData {
	if cfg.XAxisScale == "" {
		cfg.XAxisScale = "linear"
	}
	if cfg.YAxisScale == "" {
		cfg.YAxisScale = "linear"
	}
	cfg.ShowLegend = true
	cfg.ShowGrid = true
	cfg.Width = 800
	return PlotData{
		PlotType:  pt,
		Title:     fmt.Sprintf("%s - %s", title, vc.modelName),
		Timestamp: time.Now(),
		ModelName: vc.modelName,
		Series:    series,
		Config:    cfg,
	}
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}

// Clear resets all collected data
func (vc *VisualizationCollector) Clear() {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.epochs = vc.epochs[:0]
	vc.steps = vc.steps[:0]
	vc.learningRates = vc.learningRates[:0]
	vc.gradientMax = vc.gradientMax[:0]
	vc.parameters = make(map[string]ParameterStats)
}

// ComputeParameterStats summarizes the weights and both bias vectors
func ComputeParameterStats(p *rbm.Params, bins int) []ParameterStats {
	return []ParameterStats{
		parameterStats("weights", p.Weights.Data, bins),
		parameterStats("visible_bias", p.Visible.Data, bins),
		parameterStats("hidden_bias", p.Hidden.Data, bins),
	}
}

func parameterStats(name string, values []float64, bins int) ParameterStats {
	if bins < 1 {
		bins = 1
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)
	// Histogram's upper edge is exclusive
	edges[bins] = hi + 1e-12*(1+math.Abs(hi))

	return ParameterStats{
		Name:      name,
		Mean:      mean,
		Std:       std,
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Histogram: stat.Histogram(nil, edges, sorted, nil),
		Bins:      edges,
	}
}
