package training

import (
	"fmt"
	"sync"

	"github.com/tsawler/go-boltzmann/dataset"
	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// DataLoader yields the mini-batches of one epoch at a time. Every batch
// holds exactly batchSize samples; the floor(N/batchSize)*batchSize cut of a
// fresh permutation is used and the remainder is skipped for that epoch.
type DataLoader struct {
	dataset   dataset.Dataset
	batchSize int
	batches   [][]int
	position  int
	mutex     sync.Mutex
}

// Batch is one mini-batch together with the dataset indices it was drawn from.
type Batch struct {
	Index []int
	Data  *tensor.Tensor
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(ds dataset.Dataset, batchSize int) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if batchSize > ds.Len() {
		return nil, fmt.Errorf("batch size %d exceeds dataset size %d", batchSize, ds.Len())
	}
	return &DataLoader{
		dataset:   ds,
		batchSize: batchSize,
	}, nil
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return dl.dataset.Len() / dl.batchSize
}

// Reset starts a new epoch over the permutation drawn from key.
func (dl *DataLoader) Reset(key random.Key) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	dl.batches = Partition(random.Perm(key, dl.dataset.Len()), dl.batchSize)
}

// Next returns the next batch or nil if epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.batches) {
		return nil, nil // End of epoch
	}
	index := dl.batches[dl.position]
	dl.position++

	data, err := dataset.Gather(dl.dataset, index)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}
	return &Batch{Index: index, Data: data}, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.batches)
}

// Partition cuts perm into consecutive, non-overlapping batches of exactly
// size elements. Trailing elements that do not fill a batch are dropped.
func Partition(perm []int, size int) [][]int {
	if size <= 0 {
		return nil
	}
	n := len(perm) / size
	batches := make([][]int, n)
	for k := range batches {
		batches[k] = perm[k*size : (k+1)*size]
	}
	return batches
}
