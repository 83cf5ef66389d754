package training

import (
	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// EpochSummary is handed to observers after every epoch.
type EpochSummary struct {
	Metrics EpochMetrics
	// ModelSample is the model batch produced by the last gradient estimate
	// of the epoch.
	ModelSample *tensor.Tensor
	// Params is a snapshot taken after the epoch's final update.
	Params *rbm.Params
}

// EpochObserver receives one summary per completed epoch. Observers run on
// the training goroutine between epochs; an error aborts training.
type EpochObserver interface {
	ObserveEpoch(summary EpochSummary) error
}

// ObserverFunc adapts a function to EpochObserver.
type ObserverFunc func(summary EpochSummary) error

func (f ObserverFunc) ObserveEpoch(summary EpochSummary) error {
	return f(summary)
}
