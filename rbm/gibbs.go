package rbm

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// Randomness layout: step s of a chain uses the key key.Fold(s), so GibbsStep
// is exactly step 0 of GibbsSample with the same key. A step key is split into a hidden and a visible key, and row i of the batch draws from
// hiddenKey.Fold(i) and visibleKey.Fold(i). A row's trajectory therefore
// depends only on the key, its own index and the parameters, which makes the
// result independent of how rows are distributed across workers.

// GibbsStep draws h ~ p(h|v) and then v' ~ p(v|h) for every row of v. The
// returned batch has the shape of v and holds only 0s and 1s. It equals
// GibbsSample(v, p, key, 1).
func GibbsStep(v *tensor.Tensor, p *Params, key random.Key) (*tensor.Tensor, error) {
	vm, err := asBatch(v, p.NumVisible(), "visible")
	if err != nil {
		return nil, err
	}
	hk, vk := stepKeys(key, 0)
	out, err := gibbsStep(vm, p, hk, vk, 0)
	if err != nil {
		return nil, err
	}
	return out.Reshape(v.Shape...)
}

// GibbsSample runs nSteps Gibbs transitions on every row of v.
func GibbsSample(v *tensor.Tensor, p *Params, key random.Key, nSteps int) (*tensor.Tensor, error) {
	return GibbsSampleParallel(v, p, key, nSteps, 1)
}

// GibbsSampleParallel is GibbsSample with the rows split across up to
// workers goroutines. Parameters are only read. The output does not depend
// on the number of workers.
func GibbsSampleParallel(v *tensor.Tensor, p *Params, key random.Key, nSteps, workers int) (*tensor.Tensor, error) {
	if nSteps <= 0 {
		return nil, configErrorf("chain length must be positive, got %d", nSteps)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	vm, err := asBatch(v, p.NumVisible(), "visible")
	if err != nil {
		return nil, err
	}

	rows, cols := vm.Shape[0], vm.Shape[1]
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}

	out := vm.Clone()
	if workers == 1 {
		if err := runChain(out, p, key, nSteps, 0); err != nil {
			return nil, err
		}
		return out.Reshape(v.Shape...)
	}

	chunk := (rows + workers - 1) / workers
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > rows {
			end = rows
		}
		if start >= end {
			continue
		}
		part, err := tensor.NewTensor([]int{end - start, cols}, out.Data[start*cols:end*cols])
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(w int, part *tensor.Tensor, offset int) {
			defer wg.Done()
			errs[w] = runChain(part, p, key, nSteps, offset)
		}(w, part, start)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out.Reshape(v.Shape...)
}

// runChain advances the rows of batch in place. offset is the index of the
// first row within the full batch.
func runChain(batch *tensor.Tensor, p *Params, key random.Key, nSteps, offset int) error {
	for s := 0; s < nSteps; s++ {
		hk, vk := stepKeys(key, s)
		next, err := gibbsStep(batch, p, hk, vk, offset)
		if err != nil {
			return errors.Wrapf(err, "gibbs step %d", s)
		}
		copy(batch.Data, next.Data)
	}
	return nil
}

// stepKeys returns the hidden and visible keys of step s.
func stepKeys(key random.Key, s int) (random.Key, random.Key) {
	return key.Fold(s).Split2()
}

func gibbsStep(vm *tensor.Tensor, p *Params, hiddenKey, visibleKey random.Key, offset int) (*tensor.Tensor, error) {
	ph, err := HiddenProbs(vm, p)
	if err != nil {
		return nil, err
	}
	if err := sampleRows(ph, hiddenKey, offset); err != nil {
		return nil, err
	}
	pv, err := VisibleProbs(ph, p)
	if err != nil {
		return nil, err
	}
	if err := sampleRows(pv, visibleKey, offset); err != nil {
		return nil, err
	}
	return pv, nil
}

// sampleRows replaces each probability in m with a Bernoulli draw.
func sampleRows(m *tensor.Tensor, key random.Key, offset int) error {
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		if err := random.Bernoulli(key.Fold(offset+i), row, row); err != nil {
			return err
		}
	}
	return nil
}
