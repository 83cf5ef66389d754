package rbm

import (
	"gonum.org/v1/gonum/floats"

	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// Energy returns E(v,h) = -a·v - b·h - vᵀWh for each row pair of v and h.
func Energy(v, h *tensor.Tensor, p *Params) ([]float64, error) {
	vm, err := asBatch(v, p.NumVisible(), "visible")
	if err != nil {
		return nil, err
	}
	hm, err := asBatch(h, p.NumHidden(), "hidden")
	if err != nil {
		return nil, err
	}
	if vm.Rows() != hm.Rows() {
		return nil, configErrorf("visible batch has %d rows, hidden batch has %d", vm.Rows(), hm.Rows())
	}
	vw, err := tensor.MatMul(vm, p.Weights)
	if err != nil {
		return nil, err
	}
	energies := make([]float64, vm.Rows())
	for i := range energies {
		vi, hi := vm.Row(i), hm.Row(i)
		energies[i] = -floats.Dot(p.Visible.Data, vi) - floats.Dot(p.Hidden.Data, hi) - floats.Dot(vw.Row(i), hi)
	}
	return energies, nil
}

// FreeEnergy returns F(v) = -a·v - Σ_μ softplus(b_μ + (vW)_μ) for each row,
// the energy with the hidden units summed out.
func FreeEnergy(v *tensor.Tensor, p *Params) ([]float64, error) {
	vm, err := asBatch(v, p.NumVisible(), "visible")
	if err != nil {
		return nil, err
	}
	pre, err := tensor.MatMul(vm, p.Weights)
	if err != nil {
		return nil, err
	}
	if err := tensor.AddRowVector(pre, p.Hidden); err != nil {
		return nil, err
	}
	free := make([]float64, vm.Rows())
	for i := range free {
		f := -floats.Dot(p.Visible.Data, vm.Row(i))
		for _, x := range pre.Row(i) {
			f -= tensor.Softplus(x)
		}
		free[i] = f
	}
	return free, nil
}

// MeanFreeEnergy averages FreeEnergy over the rows of v.
func MeanFreeEnergy(v *tensor.Tensor, p *Params) (float64, error) {
	free, err := FreeEnergy(v, p)
	if err != nil {
		return 0, err
	}
	return floats.Sum(free) / float64(len(free)), nil
}

// Reconstruct performs one mean-field up-down pass and returns p(v|p(h|v)).
func Reconstruct(v *tensor.Tensor, p *Params) (*tensor.Tensor, error) {
	ph, err := HiddenProbs(v, p)
	if err != nil {
		return nil, err
	}
	return VisibleProbs(ph, p)
}

// ReconstructionError is the mean squared difference between v and its
// mean-field reconstruction.
func ReconstructionError(v *tensor.Tensor, p *Params) (float64, error) {
	r, err := Reconstruct(v, p)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, x := range v.Data {
		d := x - r.Data[i]
		sum += d * d
	}
	return sum / float64(v.NumElems), nil
}

// Saturation returns the fraction of probabilities within eps of 0 or 1.
// Saturated units contribute almost nothing to the gradient, so a value
// near 1 signals that training has stalled.
func Saturation(probs *tensor.Tensor, eps float64) float64 {
	var n int
	for _, x := range probs.Data {
		if x <= eps || x >= 1-eps {
			n++
		}
	}
	return float64(n) / float64(probs.NumElems)
}

// HiddenSaturation is Saturation of p(h|v) over the batch v.
func HiddenSaturation(v *tensor.Tensor, p *Params, eps float64) (float64, error) {
	ph, err := HiddenProbs(v, p)
	if err != nil {
		return 0, err
	}
	return Saturation(ph, eps), nil
}

// Generate starts n chains from uniform noise and runs each for nSteps
// Gibbs transitions, returning an (n, Nv) batch of fantasy samples.
func Generate(p *Params, key random.Key, n, nSteps int) (*tensor.Tensor, error) {
	if n <= 0 {
		return nil, configErrorf("sample count must be positive, got %d", n)
	}
	noise, err := tensor.Full(0.5, n, p.NumVisible())
	if err != nil {
		return nil, err
	}
	noiseKey, chainKey := key.Split2()
	if err := random.Bernoulli(noiseKey, noise.Data, noise.Data); err != nil {
		return nil, err
	}
	return GibbsSample(noise, p, chainKey, nSteps)
}
