package rbm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/tensor"
)

// Gradients holds the log-likelihood gradient estimate for each parameter.
// Shapes match the corresponding fields of Params.
type Gradients struct {
	Visible *tensor.Tensor
	Hidden  *tensor.Tensor
	Weights *tensor.Tensor
}

// MaxAbs returns the largest absolute gradient entry.
func (g *Gradients) MaxAbs() float64 {
	var max float64
	for _, t := range []*tensor.Tensor{g.Visible, g.Hidden, g.Weights} {
		for _, v := range t.Data {
			if a := math.Abs(v); a > max {
				max = a
			}
		}
	}
	return max
}

// statistics are the batch means entering the gradient.
type statistics struct {
	outer   *tensor.Tensor // mean v ⊗ p(h|v), (Nv, Nh)
	visible *tensor.Tensor // mean v, Nv
	hidden  *tensor.Tensor // mean p(h|v), Nh
}

func sufficientStatistics(v *tensor.Tensor, p *Params) (*statistics, error) {
	ph, err := HiddenProbs(v, p)
	if err != nil {
		return nil, err
	}
	outer, err := tensor.MatMulTransA(v, ph)
	if err != nil {
		return nil, err
	}
	tensor.ScaleInPlace(1/float64(v.Rows()), outer)
	mv, err := tensor.MeanRows(v)
	if err != nil {
		return nil, err
	}
	mh, err := tensor.MeanRows(ph)
	if err != nil {
		return nil, err
	}
	return &statistics{outer: outer, visible: mv, hidden: mh}, nil
}

// Contrast returns the data statistics minus the model statistics. When
// data and model hold identical rows every gradient is exactly zero.
func Contrast(data, model *tensor.Tensor, p *Params) (*Gradients, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dm, err := asBatch(data, p.NumVisible(), "data")
	if err != nil {
		return nil, err
	}
	mm, err := asBatch(model, p.NumVisible(), "model")
	if err != nil {
		return nil, err
	}
	if !tensor.SameShape(dm, mm) {
		return nil, configErrorf("model batch has shape %v, data batch has %v", mm.Shape, dm.Shape)
	}

	pos, err := sufficientStatistics(dm, p)
	if err != nil {
		return nil, errors.Wrap(err, "data statistics")
	}
	neg, err := sufficientStatistics(mm, p)
	if err != nil {
		return nil, errors.Wrap(err, "model statistics")
	}

	gw, err := tensor.Sub(pos.outer, neg.outer)
	if err != nil {
		return nil, err
	}
	ga, err := tensor.Sub(pos.visible, neg.visible)
	if err != nil {
		return nil, err
	}
	gb, err := tensor.Sub(pos.hidden, neg.hidden)
	if err != nil {
		return nil, err
	}
	return &Gradients{Visible: ga, Hidden: gb, Weights: gw}, nil
}

// Estimator computes contrastive divergence gradients with a Gibbs chain of
// ChainLength steps. Workers bounds the goroutines used by the sampler.
type Estimator struct {
	ChainLength int
	Workers     int
}

// Validate checks the estimator options.
func (e Estimator) Validate() error {
	if e.ChainLength <= 0 {
		return configErrorf("chain length must be positive, got %d", e.ChainLength)
	}
	return nil
}

// Estimate seeds a chain with carried, or with data when carried is nil,
// runs it for ChainLength steps and contrasts the result against data. The
// model batch is returned so callers can carry it into the next call.
func (e Estimator) Estimate(data *tensor.Tensor, p *Params, key random.Key, carried *tensor.Tensor) (*Gradients, *tensor.Tensor, error) {
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	seed := data
	if carried != nil {
		if !tensor.SameShape(carried, data) {
			return nil, nil, configErrorf("carried sample has shape %v, data batch has %v", carried.Shape, data.Shape)
		}
		seed = carried
	}

	model, err := GibbsSampleParallel(seed, p, key, e.ChainLength, e.Workers)
	if err != nil {
		return nil, nil, err
	}
	grads, err := Contrast(data, model, p)
	if err != nil {
		return nil, nil, err
	}
	return grads, model, nil
}
