package rbm

import (
	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/tensor"
)

// HiddenProbs returns p(h_μ=1|v) = sigmoid(b_μ + Σ_i v_i W_iμ) for every row
// of v. A vector input yields a vector result.
func HiddenProbs(v *tensor.Tensor, p *Params) (*tensor.Tensor, error) {
	vm, err := asBatch(v, p.NumVisible(), "visible")
	if err != nil {
		return nil, err
	}
	pre, err := tensor.MatMul(vm, p.Weights)
	if err != nil {
		return nil, errors.Wrap(err, "hidden pre-activation")
	}
	return activate(pre, p.Hidden, v.Rank())
}

// VisibleProbs returns p(v_i=1|h) = sigmoid(a_i + Σ_μ W_iμ h_μ) for every
// row of h.
func VisibleProbs(h *tensor.Tensor, p *Params) (*tensor.Tensor, error) {
	hm, err := asBatch(h, p.NumHidden(), "hidden")
	if err != nil {
		return nil, err
	}
	pre, err := tensor.MatMulTransB(hm, p.Weights)
	if err != nil {
		return nil, errors.Wrap(err, "visible pre-activation")
	}
	return activate(pre, p.Visible, h.Rank())
}

func activate(pre, bias *tensor.Tensor, rank int) (*tensor.Tensor, error) {
	if err := tensor.AddRowVector(pre, bias); err != nil {
		return nil, err
	}
	tensor.SigmoidInPlace(pre.Data, pre.Data)
	if rank == 1 {
		return pre.Reshape(pre.Cols())
	}
	return pre, nil
}
