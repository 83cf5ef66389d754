package training

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/rbm"
)

// LRScheduler chooses the learning rate of an epoch. The rate is fixed for
// the whole epoch, so every update of epoch e is exactly EpochLR(e)*gradient.
// String describes the schedule for the model summary and epoch log.
type LRScheduler interface {
	EpochLR(epoch int, baseLR float64) float64
	String() string
}

// ReconScheduler is implemented by schedules that adapt to the mean
// reconstruction error of each finished epoch.
type ReconScheduler interface {
	LRScheduler
	ObserveRecon(recon float64)
}

func checkDecay(gamma float64) error {
	if !(gamma > 0 && gamma < 1) {
		return errors.Wrapf(rbm.ErrConfig, "gamma must be in (0, 1), got %g", gamma)
	}
	return nil
}

// ConstantLR keeps the base learning rate.
type ConstantLR struct{}

func (ConstantLR) EpochLR(epoch int, baseLR float64) float64 { return baseLR }
func (ConstantLR) String() string                            { return "constant" }

// StepDecay multiplies the rate by Gamma once every Every epochs.
type StepDecay struct {
	Every int
	Gamma float64
}

// NewStepDecay validates every > 0 and 0 < gamma < 1.
func NewStepDecay(every int, gamma float64) (*StepDecay, error) {
	if every <= 0 {
		return nil, errors.Wrapf(rbm.ErrConfig, "step_size must be positive, got %d", every)
	}
	if err := checkDecay(gamma); err != nil {
		return nil, err
	}
	return &StepDecay{Every: every, Gamma: gamma}, nil
}

func (s *StepDecay) EpochLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch/s.Every))
}

func (s *StepDecay) String() string {
	return fmt.Sprintf("step(every=%d, gamma=%g)", s.Every, s.Gamma)
}

// ExponentialDecay multiplies the rate by Gamma after every epoch.
type ExponentialDecay struct {
	Gamma float64
}

func NewExponentialDecay(gamma float64) (*ExponentialDecay, error) {
	if err := checkDecay(gamma); err != nil {
		return nil, err
	}
	return &ExponentialDecay{Gamma: gamma}, nil
}

func (s *ExponentialDecay) EpochLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialDecay) String() string {
	return fmt.Sprintf("exponential(gamma=%g)", s.Gamma)
}

// CosineDecay anneals from the base rate at epoch 0 to Floor at epoch
// Epochs and stays there.
type CosineDecay struct {
	Epochs int
	Floor  float64
}

func NewCosineDecay(epochs int, floor float64) (*CosineDecay, error) {
	if epochs <= 0 {
		return nil, errors.Wrapf(rbm.ErrConfig, "cosine schedule needs a positive epoch count, got %d", epochs)
	}
	if floor < 0 {
		return nil, errors.Wrapf(rbm.ErrConfig, "cosine floor cannot be negative: %g", floor)
	}
	return &CosineDecay{Epochs: epochs, Floor: floor}, nil
}

func (s *CosineDecay) EpochLR(epoch int, baseLR float64) float64 {
	if epoch >= s.Epochs {
		return s.Floor
	}
	progress := float64(epoch) / float64(s.Epochs)
	return s.Floor + (baseLR-s.Floor)*(1+math.Cos(math.Pi*progress))/2
}

func (s *CosineDecay) String() string {
	return fmt.Sprintf("cosine(epochs=%d, floor=%g)", s.Epochs, s.Floor)
}

// PlateauDecay multiplies the rate by Gamma whenever the reconstruction
// error has not dropped by at least MinDelta below its best value for
// Patience consecutive epochs. The reduction takes effect from the next
// epoch.
type PlateauDecay struct {
	Gamma    float64
	Patience int
	MinDelta float64

	best  float64
	stale int
	scale float64
}

func NewPlateauDecay(gamma float64, patience int, minDelta float64) (*PlateauDecay, error) {
	if err := checkDecay(gamma); err != nil {
		return nil, err
	}
	if patience <= 0 {
		return nil, errors.Wrapf(rbm.ErrConfig, "plateau patience must be positive, got %d", patience)
	}
	if minDelta < 0 {
		return nil, errors.Wrapf(rbm.ErrConfig, "plateau min delta cannot be negative: %g", minDelta)
	}
	return &PlateauDecay{Gamma: gamma, Patience: patience, MinDelta: minDelta, best: math.Inf(1), scale: 1}, nil
}

func (s *PlateauDecay) EpochLR(epoch int, baseLR float64) float64 {
	return baseLR * s.scale
}

// ObserveRecon records the reconstruction error of a finished epoch.
func (s *PlateauDecay) ObserveRecon(recon float64) {
	if recon < s.best-s.MinDelta {
		s.best = recon
		s.stale = 0
		return
	}
	s.stale++
	if s.stale >= s.Patience {
		s.scale *= s.Gamma
		s.stale = 0
	}
}

// Reductions returns how many times the rate has been cut.
func (s *PlateauDecay) Reductions() int {
	if s.scale >= 1 {
		return 0
	}
	return int(math.Round(math.Log(s.scale) / math.Log(s.Gamma)))
}

func (s *PlateauDecay) String() string {
	return fmt.Sprintf("plateau(gamma=%g, patience=%d)", s.Gamma, s.Patience)
}
