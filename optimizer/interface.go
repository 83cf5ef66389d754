package optimizer

import (
	"fmt"

	"github.com/tsawler/go-boltzmann/rbm"
)

// Optimizer applies gradient estimates to RBM parameters.
// Implementations must either apply a whole update or leave the parameters
// untouched.
type Optimizer interface {
	// Step applies one update computed from grads to params in place
	Step(params *rbm.Params, grads *rbm.Gradients) error

	// GetState extracts optimizer state for checkpointing
	GetState() (*OptimizerState, error)

	// LoadState restores optimizer state from a checkpoint
	LoadState(state *OptimizerState) error

	// GetStepCount returns the number of updates applied so far
	GetStepCount() uint64

	// UpdateLearningRate updates the learning rate
	UpdateLearningRate(lr float64)

	// GetLearningRate returns the current learning rate
	GetLearningRate() float64
}

// OptimizerState represents the serializable state of an optimizer
type OptimizerState struct {
	Type       string                 `json:"type"`       // "SGD"
	Parameters map[string]interface{} `json:"parameters"` // Hyperparameters and counters
}

// validateStateType ensures the state type matches the optimizer
func validateStateType(optimizerType string, state *OptimizerState) error {
	if state == nil {
		return fmt.Errorf("optimizer state is nil")
	}
	if state.Type != optimizerType {
		return fmt.Errorf("state type mismatch: expected %s, got %s", optimizerType, state.Type)
	}
	return nil
}
