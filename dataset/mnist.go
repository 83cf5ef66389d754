package dataset

import (
	"fmt"

	"github.com/unixpickle/mnist"

	"github.com/tsawler/go-boltzmann/tensor"
)

// DefaultThreshold maps MNIST intensities to {0,1}.
const DefaultThreshold = 0.5

// Split selects the MNIST training or test set.
type Split int

const (
	TrainSplit Split = iota
	TestSplit
)

func (s Split) String() string {
	switch s {
	case TrainSplit:
		return "train"
	case TestSplit:
		return "test"
	default:
		return "unknown"
	}
}

// Binarize maps each intensity to 1 when it is strictly above threshold and
// to 0 otherwise.
func Binarize(dst, intensities []float64, threshold float64) {
	for i, x := range intensities {
		if x > threshold {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
}

// LoadMNIST returns the requested MNIST split with every 28x28 image
// flattened to 784 visible units and thresholded to {0,1}.
func LoadMNIST(split Split, threshold float64) (*BinaryDataset, error) {
	var set mnist.DataSet
	switch split {
	case TrainSplit:
		set = mnist.LoadTrainingDataSet()
	case TestSplit:
		set = mnist.LoadTestingDataSet()
	default:
		return nil, fmt.Errorf("unknown MNIST split %d", split)
	}
	return fromSamples(set.Samples, threshold)
}

func fromSamples(samples []mnist.Sample, threshold float64) (*BinaryDataset, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("MNIST set is empty")
	}
	width := len(samples[0].Intensities)
	data, err := tensor.Zeros(len(samples), width)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate MNIST tensor: %v", err)
	}
	labels := make([]int, len(samples))
	for i, s := range samples {
		if len(s.Intensities) != width {
			return nil, fmt.Errorf("sample %d has %d pixels, expected %d", i, len(s.Intensities), width)
		}
		Binarize(data.Row(i), s.Intensities, threshold)
		labels[i] = s.Label
	}
	return NewBinaryDataset(data, labels)
}
