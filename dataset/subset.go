package dataset

import (
	"fmt"

	"github.com/tsawler/go-boltzmann/tensor"
)

// SubsetDataset allows training on a limited number of samples from an underlying dataset.
type SubsetDataset struct {
	originalDataset Dataset
	limit           int
}

// NewSubsetDataset creates a new SubsetDataset that wraps an existing dataset
// and limits the number of samples it exposes.
func NewSubsetDataset(original Dataset, limit int) (*SubsetDataset, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative")
	}
	if limit > original.Len() {
		limit = original.Len() // Adjust limit if it's greater than the original dataset's length
	}
	return &SubsetDataset{
		originalDataset: original,
		limit:           limit,
	}, nil
}

// Len returns the number of samples in the subset, which is the minimum
// of the original dataset's length and the specified limit.
func (sd *SubsetDataset) Len() int {
	return sd.limit
}

func (sd *SubsetDataset) Width() int {
	return sd.originalDataset.Width()
}

// Get returns a sample at the given index from the original dataset.
func (sd *SubsetDataset) Get(idx int) (*tensor.Tensor, error) {
	if idx < 0 || idx >= sd.limit {
		return nil, fmt.Errorf("index out of bounds for subset: %d (limit: %d)", idx, sd.limit)
	}
	return sd.originalDataset.Get(idx)
}

// Label forwards to the original dataset when it carries labels.
func (sd *SubsetDataset) Label(idx int) (int, error) {
	labeled, ok := sd.originalDataset.(Labeled)
	if !ok {
		return 0, fmt.Errorf("dataset has no labels")
	}
	if idx < 0 || idx >= sd.limit {
		return 0, fmt.Errorf("index out of bounds for subset: %d (limit: %d)", idx, sd.limit)
	}
	return labeled.Label(idx)
}
