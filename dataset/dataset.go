// Package dataset supplies training sets of binary visible configurations.
package dataset

import (
	"fmt"

	"github.com/tsawler/go-boltzmann/tensor"
)

// Dataset interface defines methods that all datasets must implement
type Dataset interface {
	Len() int                            // Total number of samples
	Width() int                          // Visible units per sample
	Get(idx int) (*tensor.Tensor, error) // Returns one sample as a vector
}

// Labeled is implemented by datasets that carry class labels. Labels are
// never used for training but are handy for inspection.
type Labeled interface {
	Label(idx int) (int, error)
}

// BinaryDataset is an in-memory dataset whose samples are the rows of a
// matrix with entries in {0,1}.
type BinaryDataset struct {
	samples *tensor.Tensor
	labels  []int
}

// NewBinaryDataset wraps samples, one configuration per row. labels may be
// nil; otherwise it needs one entry per row.
func NewBinaryDataset(samples *tensor.Tensor, labels []int) (*BinaryDataset, error) {
	if samples == nil || samples.Rank() != 2 {
		return nil, fmt.Errorf("samples must be a matrix")
	}
	if !samples.IsBinary() {
		return nil, fmt.Errorf("samples must contain only 0 and 1")
	}
	if labels != nil && len(labels) != samples.Shape[0] {
		return nil, fmt.Errorf("got %d labels for %d samples", len(labels), samples.Shape[0])
	}
	return &BinaryDataset{samples: samples, labels: labels}, nil
}

// FromRows builds a BinaryDataset from equal-length rows.
func FromRows(rows [][]float64, labels []int) (*BinaryDataset, error) {
	samples, err := tensor.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to stack samples: %v", err)
	}
	return NewBinaryDataset(samples, labels)
}

func (d *BinaryDataset) Len() int {
	return d.samples.Shape[0]
}

func (d *BinaryDataset) Width() int {
	return d.samples.Shape[1]
}

// Get returns sample idx. The vector shares storage with the dataset and
// must not be modified.
func (d *BinaryDataset) Get(idx int) (*tensor.Tensor, error) {
	if idx < 0 || idx >= d.Len() {
		return nil, fmt.Errorf("index %d out of range [0, %d)", idx, d.Len())
	}
	return tensor.NewTensor([]int{d.Width()}, d.samples.Row(idx))
}

func (d *BinaryDataset) Label(idx int) (int, error) {
	if d.labels == nil {
		return 0, fmt.Errorf("dataset has no labels")
	}
	if idx < 0 || idx >= len(d.labels) {
		return 0, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.labels))
	}
	return d.labels[idx], nil
}

// Samples returns the backing matrix.
func (d *BinaryDataset) Samples() *tensor.Tensor {
	return d.samples
}

// Gather copies the samples at index into a (len(index), Width) batch.
func Gather(ds Dataset, index []int) (*tensor.Tensor, error) {
	if bd, ok := ds.(*BinaryDataset); ok {
		return tensor.GatherRows(bd.samples, index)
	}

	width := ds.Width()
	batch, err := tensor.Zeros(len(index), width)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch tensor: %v", err)
	}
	for i, idx := range index {
		sample, err := ds.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		if sample.NumElems != width {
			return nil, fmt.Errorf("sample %d has %d units, expected %d", idx, sample.NumElems, width)
		}
		copy(batch.Row(i), sample.Data)
	}
	return batch, nil
}
