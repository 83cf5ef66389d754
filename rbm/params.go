// Package rbm implements a binary Restricted Boltzmann Machine: its
// conditional distributions, a batched Gibbs sampler and the contrastive
// divergence gradient estimator.
package rbm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// Params holds θ = (a, b, W). Visible is a (length Nv), Hidden is b
// (length Nh) and Weights is W with shape (Nv, Nh).
type Params struct {
	Visible *tensor.Tensor
	Hidden  *tensor.Tensor
	Weights *tensor.Tensor
}

// NewParams returns parameters with W drawn from N(0, weightScale²) and zero
// biases.
func NewParams(numVisible, numHidden int, key random.Key, weightScale float64) (*Params, error) {
	p, err := ZeroParams(numVisible, numHidden)
	if err != nil {
		return nil, err
	}
	if weightScale < 0 {
		return nil, configErrorf("weight scale must be non-negative, got %g", weightScale)
	}
	random.Normal(key, p.Weights.Data, 0, weightScale)
	return p, nil
}

// ZeroParams returns parameters with every entry zero.
func ZeroParams(numVisible, numHidden int) (*Params, error) {
	if numVisible <= 0 || numHidden <= 0 {
		return nil, configErrorf("unit counts must be positive, got %d visible and %d hidden", numVisible, numHidden)
	}
	a, err := tensor.Zeros(numVisible)
	if err != nil {
		return nil, errors.Wrap(err, "visible bias")
	}
	b, err := tensor.Zeros(numHidden)
	if err != nil {
		return nil, errors.Wrap(err, "hidden bias")
	}
	w, err := tensor.Zeros(numVisible, numHidden)
	if err != nil {
		return nil, errors.Wrap(err, "weights")
	}
	return &Params{Visible: a, Hidden: b, Weights: w}, nil
}

func (p *Params) NumVisible() int {
	return p.Visible.Shape[0]
}

func (p *Params) NumHidden() int {
	return p.Hidden.Shape[0]
}

func (p *Params) String() string {
	return fmt.Sprintf("RBM(visible=%d, hidden=%d)", p.NumVisible(), p.NumHidden())
}

// Validate checks that the three tensors have consistent shapes.
func (p *Params) Validate() error {
	if p == nil || p.Visible == nil || p.Hidden == nil || p.Weights == nil {
		return configErrorf("parameters are incomplete")
	}
	if p.Visible.Rank() != 1 || p.Hidden.Rank() != 1 || p.Weights.Rank() != 2 {
		return configErrorf("unexpected parameter ranks: a %v, b %v, W %v",
			p.Visible.Shape, p.Hidden.Shape, p.Weights.Shape)
	}
	if p.Weights.Shape[0] != p.NumVisible() || p.Weights.Shape[1] != p.NumHidden() {
		return configErrorf("weights have shape %v, expected (%d, %d)",
			p.Weights.Shape, p.NumVisible(), p.NumHidden())
	}
	return nil
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	return &Params{
		Visible: p.Visible.Clone(),
		Hidden:  p.Hidden.Clone(),
		Weights: p.Weights.Clone(),
	}
}

// Equal reports whether both parameter sets hold identical values.
func (p *Params) Equal(other *Params) bool {
	return tensor.Equal(p.Visible, other.Visible) &&
		tensor.Equal(p.Hidden, other.Hidden) &&
		tensor.Equal(p.Weights, other.Weights)
}

// asBatch returns v as a matrix with one configuration per row. A vector
// is treated as a batch of one and shares storage with v.
func asBatch(v *tensor.Tensor, width int, what string) (*tensor.Tensor, error) {
	if v == nil {
		return nil, configErrorf("%s batch is nil", what)
	}
	if v.Cols() != width {
		return nil, configErrorf("%s batch has shape %v, expected %d units per row", what, v.Shape, width)
	}
	if v.Rank() == 1 {
		return v.Reshape(1, width)
	}
	return v, nil
}
