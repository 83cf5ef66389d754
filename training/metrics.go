package training

import (
	"fmt"
	"time"
)

// MetricType identifies one of the per-epoch training metrics
type MetricType int

const (
	ReconstructionError MetricType = iota
	DataFreeEnergy
	ModelFreeEnergy
	FreeEnergyGap
	HiddenSaturation
	GradientMax
	LearningRate
)

func (mt MetricType) String() string {
	switch mt {
	case ReconstructionError:
		return "reconstruction_error"
	case DataFreeEnergy:
		return "data_free_energy"
	case ModelFreeEnergy:
		return "model_free_energy"
	case FreeEnergyGap:
		return "free_energy_gap"
	case HiddenSaturation:
		return "hidden_saturation"
	case GradientMax:
		return "gradient_max"
	case LearningRate:
		return "learning_rate"
	default:
		return "unknown"
	}
}

// EpochMetrics holds batch-averaged metrics for a single epoch
type EpochMetrics struct {
	Epoch               int           `json:"epoch"`
	ReconstructionError float64       `json:"reconstruction_error"` // mean squared error of a mean-field up-down pass
	DataFreeEnergy      float64       `json:"data_free_energy"`
	ModelFreeEnergy     float64       `json:"model_free_energy"`
	HiddenSaturation    float64       `json:"hidden_saturation"` // fraction of p(h|v) within 1e-3 of 0 or 1
	GradientMax         float64       `json:"gradient_max"`      // largest |gradient| entry seen
	LearningRate        float64       `json:"learning_rate"`
	BatchCount          int           `json:"batch_count"`
	Duration            time.Duration `json:"duration"`
}

// Get returns the value of metric mt.
func (m EpochMetrics) Get(mt MetricType) float64 {
	switch mt {
	case ReconstructionError:
		return m.ReconstructionError
	case DataFreeEnergy:
		return m.DataFreeEnergy
	case ModelFreeEnergy:
		return m.ModelFreeEnergy
	case FreeEnergyGap:
		return m.ModelFreeEnergy - m.DataFreeEnergy
	case HiddenSaturation:
		return m.HiddenSaturation
	case GradientMax:
		return m.GradientMax
	case LearningRate:
		return m.LearningRate
	default:
		return 0
	}
}

func (m EpochMetrics) String() string {
	return fmt.Sprintf("epoch %d: recon=%.5f F(data)=%.3f F(model)=%.3f sat=%.3f lr=%g batches=%d (%s)",
		m.Epoch, m.ReconstructionError, m.DataFreeEnergy, m.ModelFreeEnergy,
		m.HiddenSaturation, m.LearningRate, m.BatchCount, m.Duration.Round(time.Millisecond))
}

// metricAccumulator averages per-batch values over an epoch
type metricAccumulator struct {
	recon, dataFree, modelFree, saturation float64
	gradMax                                float64
	count                                  int
}

func (a *metricAccumulator) add(recon, dataFree, modelFree, saturation, gradMax float64) {
	a.recon += recon
	a.dataFree += dataFree
	a.modelFree += modelFree
	a.saturation += saturation
	if gradMax > a.gradMax {
		a.gradMax = gradMax
	}
	a.count++
}

func (a *metricAccumulator) metrics(epoch int, lr float64, d time.Duration) EpochMetrics {
	m := EpochMetrics{
		Epoch:        epoch,
		GradientMax:  a.gradMax,
		LearningRate: lr,
		BatchCount:   a.count,
		Duration:     d,
	}
	if a.count > 0 {
		n := float64(a.count)
		m.ReconstructionError = a.recon / n
		m.DataFreeEnergy = a.dataFree / n
		m.ModelFreeEnergy = a.modelFree / n
		m.HiddenSaturation = a.saturation / n
	}
	return m
}

// History records the metrics of every completed epoch
type History struct {
	Epochs []EpochMetrics `json:"epochs"`
}

func (h *History) Add(m EpochMetrics) {
	h.Epochs = append(h.Epochs, m)
}

func (h *History) Len() int {
	return len(h.Epochs)
}

// Last returns the most recent epoch, if any.
func (h *History) Last() (EpochMetrics, bool) {
	if len(h.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Best returns the epoch with the lowest reconstruction error.
func (h *History) Best() (EpochMetrics, bool) {
	if len(h.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	best := h.Epochs[0]
	for _, m := range h.Epochs[1:] {
		if m.ReconstructionError < best.ReconstructionError {
			best = m
		}
	}
	return best, true
}

// Series returns metric mt for every epoch in order.
func (h *History) Series(mt MetricType) []float64 {
	values := make([]float64, len(h.Epochs))
	for i, m := range h.Epochs {
		values[i] = m.Get(mt)
	}
	return values
}
