package optimizer

import (
	"fmt"

	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// SGDOptimizerState performs plain stochastic gradient ascent on the
// log-likelihood: θ += lr * g. The gradient estimate already points uphill,
// so no sign flip happens here.
type SGDOptimizerState struct {
	LearningRate float64

	// Step tracking
	StepCount uint64

	// Ascent is always true for RBM training. It is recorded in checkpoints
	// so a restored optimizer can be checked against its origin.
	Ascent bool
}

// SGDConfig holds configuration for SGD optimizer
type SGDConfig struct {
	LearningRate float64
}

// DefaultSGDConfig returns default SGD optimizer configuration
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
	}
}

// NewSGDOptimizer creates a new SGD optimizer
func NewSGDOptimizer(config SGDConfig) (*SGDOptimizerState, error) {
	if config.LearningRate < 0 {
		return nil, fmt.Errorf("learning rate cannot be negative: %f", config.LearningRate)
	}
	return &SGDOptimizerState{
		LearningRate: config.LearningRate,
		Ascent:       true,
	}, nil
}

// Step applies θ += lr*g to every parameter. All shapes are checked before
// the first write, so a failed step leaves params untouched.
func (sgd *SGDOptimizerState) Step(params *rbm.Params, grads *rbm.Gradients) error {
	if params == nil || grads == nil {
		return fmt.Errorf("sgd step requires parameters and gradients")
	}
	pairs := []struct {
		name     string
		param    *tensor.Tensor
		gradient *tensor.Tensor
	}{
		{"weights", params.Weights, grads.Weights},
		{"visible bias", params.Visible, grads.Visible},
		{"hidden bias", params.Hidden, grads.Hidden},
	}
	for _, p := range pairs {
		if p.param == nil || p.gradient == nil {
			return fmt.Errorf("missing %s tensor", p.name)
		}
		if !tensor.SameShape(p.param, p.gradient) {
			return fmt.Errorf("%s gradient shape %v doesn't match parameter shape %v",
				p.name, p.gradient.Shape, p.param.Shape)
		}
	}

	for _, p := range pairs {
		if err := tensor.Axpy(sgd.LearningRate, p.gradient, p.param); err != nil {
			return fmt.Errorf("failed to update %s: %v", p.name, err)
		}
	}
	sgd.StepCount++
	return nil
}

// UpdateLearningRate updates the learning rate
func (sgd *SGDOptimizerState) UpdateLearningRate(newLR float64) {
	sgd.LearningRate = newLR
}

func (sgd *SGDOptimizerState) GetLearningRate() float64 {
	return sgd.LearningRate
}

// GetStepCount returns the current step count
func (sgd *SGDOptimizerState) GetStepCount() uint64 {
	return sgd.StepCount
}

// GetState extracts optimizer state for checkpointing
func (sgd *SGDOptimizerState) GetState() (*OptimizerState, error) {
	return &OptimizerState{
		Type: "SGD",
		Parameters: map[string]interface{}{
			"learning_rate": sgd.LearningRate,
			"step_count":    sgd.StepCount,
			"ascent":        sgd.Ascent,
		},
	}, nil
}

// LoadState restores optimizer state from checkpoint
func (sgd *SGDOptimizerState) LoadState(state *OptimizerState) error {
	if err := validateStateType("SGD", state); err != nil {
		return err
	}
	if !extractBoolParam(state.Parameters, "ascent", true) {
		return fmt.Errorf("checkpointed optimizer performed descent, expected ascent")
	}

	sgd.LearningRate = extractFloat64Param(state.Parameters, "learning_rate", sgd.LearningRate)
	sgd.StepCount = extractUint64Param(state.Parameters, "step_count", sgd.StepCount)
	return nil
}
