package training

import (
	"sort"
	"testing"

	"github.com/tsawler/go-boltzmann/dataset"
	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// indexDataset returns n binary samples of width 10 whose bits encode the
// sample index, so batches can be traced back to their rows.
func indexDataset(t *testing.T, n int) *dataset.BinaryDataset {
	t.Helper()
	samples, err := tensor.Zeros(n, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		row := samples.Row(i)
		for b := 0; b < 10; b++ {
			row[b] = float64((i >> b) & 1)
		}
	}
	ds, err := dataset.NewBinaryDataset(samples, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func decodeIndex(row []float64) int {
	idx := 0
	for b, v := range row {
		if v == 1 {
			idx |= 1 << b
		}
	}
	return idx
}

// TestPartition tests batches are disjoint, full, and drop the remainder
func TestPartition(t *testing.T) {
	perm := random.Perm(random.NewKey(5), 1000)
	batches := Partition(perm, 128)

	if len(batches) != 7 {
		t.Fatalf("Expected 7 batches, got %d", len(batches))
	}
	seen := make(map[int]bool)
	for k, batch := range batches {
		if len(batch) != 128 {
			t.Errorf("Batch %d: expected 128 indices, got %d", k, len(batch))
		}
		for _, idx := range batch {
			if seen[idx] {
				t.Errorf("Index %d appears in more than one batch", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != 896 {
		t.Errorf("Expected 896 distinct indices, got %d", len(seen))
	}
	for _, idx := range perm[896:] {
		if seen[idx] {
			t.Errorf("Remainder index %d should not be in any batch", idx)
		}
	}

	if Partition(perm, 0) != nil {
		t.Error("Expected nil for non-positive batch size")
	}
	if len(Partition(perm[:10], 20)) != 0 {
		t.Error("Expected no batches when size exceeds input")
	}
}

// TestDataLoader tests one epoch of batches
func TestDataLoader(t *testing.T) {
	ds := indexDataset(t, 1000)
	loader, err := NewDataLoader(ds, 128)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}
	if loader.Len() != 7 {
		t.Errorf("Expected 7 batches per epoch, got %d", loader.Len())
	}
	if loader.HasNext() {
		t.Error("Expected no batches before Reset")
	}

	loader.Reset(random.NewKey(11))
	var all []int
	count := 0
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			t.Fatalf("Failed to load batch: %v", err)
		}
		if batch.Data.Shape[0] != 128 || batch.Data.Shape[1] != 10 {
			t.Fatalf("Expected (128, 10) batch, got %v", batch.Data.Shape)
		}
		for i, idx := range batch.Index {
			if got := decodeIndex(batch.Data.Row(i)); got != idx {
				t.Fatalf("Row %d: expected sample %d, got %d", i, idx, got)
			}
		}
		all = append(all, batch.Index...)
		count++
	}
	if count != 7 {
		t.Errorf("Expected 7 batches, got %d", count)
	}

	sort.Ints(all)
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("Sample %d drawn twice in one epoch", all[i])
		}
	}

	batch, err := loader.Next()
	if batch != nil || err != nil {
		t.Errorf("Expected nil batch at end of epoch, got %v, %v", batch, err)
	}
}

// TestDataLoaderDeterminism tests the same key gives the same order
func TestDataLoaderDeterminism(t *testing.T) {
	ds := indexDataset(t, 200)
	a, _ := NewDataLoader(ds, 50)
	b, _ := NewDataLoader(ds, 50)

	a.Reset(random.NewKey(3))
	b.Reset(random.NewKey(3))
	for a.HasNext() {
		ba, _ := a.Next()
		bb, _ := b.Next()
		for i := range ba.Index {
			if ba.Index[i] != bb.Index[i] {
				t.Fatalf("Expected identical order, differ at %d", i)
			}
		}
	}

	a.Reset(random.NewKey(3))
	b.Reset(random.NewKey(4))
	ba, _ := a.Next()
	bb, _ := b.Next()
	same := true
	for i := range ba.Index {
		if ba.Index[i] != bb.Index[i] {
			same = false
		}
	}
	if same {
		t.Error("Expected different keys to give different orders")
	}
}

// TestNewDataLoaderErrors tests invalid batch sizes
func TestNewDataLoaderErrors(t *testing.T) {
	ds := indexDataset(t, 10)
	if _, err := NewDataLoader(ds, 0); err == nil {
		t.Error("Expected error for zero batch size")
	}
	if _, err := NewDataLoader(ds, 11); err == nil {
		t.Error("Expected error for batch size larger than dataset")
	}
}
