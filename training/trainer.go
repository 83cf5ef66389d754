package training

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/dataset"
	"github.com/tsawler/go-boltzmann/optimizer"
	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// saturationEps is the distance from 0 or 1 at which a hidden probability
// counts as saturated in the epoch metrics.
const saturationEps = 1e-3

// BatchResult describes one completed parameter update
type BatchResult struct {
	Epoch        int
	Batch        int
	Step         int
	Data         *tensor.Tensor
	Model        *tensor.Tensor
	Gradients    *rbm.Gradients
	LearningRate float64
}

// Trainer manages the training process. It exclusively owns the parameters
// between NewTrainer and the end of Train; callers must not modify them
// concurrently.
type Trainer struct {
	config    Config
	params    *rbm.Params
	optimizer optimizer.Optimizer
	scheduler LRScheduler
	estimator rbm.Estimator
	loader    *DataLoader

	key     random.Key
	carried *tensor.Tensor
	last    *tensor.Tensor
	epoch   int // next epoch to run
	step    int // updates applied so far

	history   History
	observers []EpochObserver
	onBatch   func(BatchResult)
	out       io.Writer
}

// NewTrainer validates config against ds and prepares a trainer. When params
// is nil fresh parameters are drawn from the seed with config.NumHidden
// hidden units; otherwise params is trained in place and must have one
// visible unit per dataset column. All checks happen before anything is
// modified.
func NewTrainer(ds dataset.Dataset, params *rbm.Params, config Config) (*Trainer, error) {
	if ds == nil {
		return nil, errors.Wrap(rbm.ErrConfig, "dataset is nil")
	}
	if err := config.Validate(ds.Len()); err != nil {
		return nil, err
	}
	scheduler, err := config.NewScheduler()
	if err != nil {
		return nil, err
	}

	root := random.NewKey(config.Seed)
	initKey, trainKey := root.Split2()

	if params == nil {
		params, err = rbm.NewParams(ds.Width(), config.NumHidden, initKey, config.WeightScale)
		if err != nil {
			return nil, err
		}
	} else {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		if params.NumVisible() != ds.Width() {
			return nil, errors.Wrapf(rbm.ErrConfig, "model has %d visible units, dataset samples have %d",
				params.NumVisible(), ds.Width())
		}
	}

	loader, err := NewDataLoader(ds, config.BatchSize)
	if err != nil {
		return nil, errors.Wrap(rbm.ErrConfig, err.Error())
	}
	opt, err := optimizer.NewSGDOptimizer(optimizer.SGDConfig{LearningRate: config.LearningRate})
	if err != nil {
		return nil, errors.Wrap(rbm.ErrConfig, err.Error())
	}

	return &Trainer{
		config:    config,
		params:    params,
		optimizer: opt,
		scheduler: scheduler,
		estimator: rbm.Estimator{ChainLength: config.ChainLength, Workers: config.Workers},
		loader:    loader,
		key:       trainKey,
		out:       os.Stdout,
	}, nil
}

// SetOutput redirects epoch summaries and the progress bar
func (t *Trainer) SetOutput(w io.Writer) {
	t.out = w
}

// AddObserver registers an observer called after every epoch
func (t *Trainer) AddObserver(o EpochObserver) {
	t.observers = append(t.observers, o)
}

// OnBatch registers a function called after every parameter update
func (t *Trainer) OnBatch(f func(BatchResult)) {
	t.onBatch = f
}

func (t *Trainer) Params() *rbm.Params {
	return t.params
}

func (t *Trainer) Config() Config {
	return t.config
}

func (t *Trainer) History() *History {
	return &t.history
}

// Epoch returns the number of completed epochs
func (t *Trainer) Epoch() int {
	return t.epoch
}

// Step returns the number of parameter updates applied
func (t *Trainer) Step() int {
	return t.step
}

// LearningRate returns the learning rate of the most recent epoch
func (t *Trainer) LearningRate() float64 {
	return t.optimizer.GetLearningRate()
}

// Carried returns the model sample that will seed the next gradient
// estimate, or nil when the next estimate starts from data.
func (t *Trainer) Carried() *tensor.Tensor {
	return t.carried
}

// ModelSample returns the most recent model batch.
func (t *Trainer) ModelSample() *tensor.Tensor {
	return t.last
}

// OptimizerState returns the optimizer state for checkpointing
func (t *Trainer) OptimizerState() (*optimizer.OptimizerState, error) {
	return t.optimizer.GetState()
}

// Resume continues from a saved position: epoch completed epochs, step
// applied updates and, for persistent runs, the carried model sample.
func (t *Trainer) Resume(epoch, step int, opt *optimizer.OptimizerState, carried *tensor.Tensor) error {
	if epoch < 0 || step < 0 {
		return errors.Wrapf(rbm.ErrConfig, "invalid resume position epoch=%d step=%d", epoch, step)
	}
	if carried != nil {
		if carried.Rank() != 2 || carried.Shape[0] != t.config.BatchSize || carried.Shape[1] != t.params.NumVisible() {
			return errors.Wrapf(rbm.ErrConfig, "carried sample has shape %v, expected (%d, %d)",
				carried.Shape, t.config.BatchSize, t.params.NumVisible())
		}
	}
	if opt != nil {
		if err := t.optimizer.LoadState(opt); err != nil {
			return errors.Wrap(err, "failed to restore optimizer")
		}
	}
	t.epoch = epoch
	t.step = step
	if t.config.Persistent {
		t.carried = carried
	}
	return nil
}

// Train runs the remaining epochs of the configured run
func (t *Trainer) Train() (*History, error) {
	if t.epoch == 0 {
		fmt.Fprintf(t.out, "Starting training for %d epochs (%s, lr schedule %s)\n", t.config.NumEpochs, t.params, t.scheduler)
	}
	for t.epoch < t.config.NumEpochs {
		if _, err := t.TrainEpoch(); err != nil {
			return &t.history, err
		}
	}
	return &t.history, nil
}

// TrainEpoch runs one epoch: a fresh permutation, floor(N/batchSize)
// updates, then the epoch observers.
func (t *Trainer) TrainEpoch() (EpochMetrics, error) {
	epoch := t.epoch
	epochStart := time.Now()
	epochKey := t.key.Fold(epoch)
	permKey, batchKey := epochKey.Split2()

	lr := t.scheduler.EpochLR(epoch, t.config.LearningRate)
	t.optimizer.UpdateLearningRate(lr)

	if !t.config.Persistent || !t.config.CarryAcrossEpochs {
		t.carried = nil
	}

	t.loader.Reset(permKey)
	var progress *ProgressBar
	if t.config.Verbose {
		progress = NewProgressBarTo(t.out, fmt.Sprintf("Epoch %d/%d", epoch+1, t.config.NumEpochs), t.loader.Len())
	}

	var acc metricAccumulator
	for k := 0; t.loader.HasNext(); k++ {
		batch, err := t.loader.Next()
		if err != nil {
			return EpochMetrics{}, errors.Wrapf(err, "epoch %d batch %d", epoch, k)
		}
		if err := t.trainBatch(epoch, k, batch.Data, batchKey.Fold(k), &acc); err != nil {
			return EpochMetrics{}, errors.Wrapf(err, "epoch %d batch %d", epoch, k)
		}
		if progress != nil {
			progress.Update(k+1, map[string]float64{"recon": acc.recon / float64(acc.count)})
		}
	}
	if progress != nil {
		progress.Finish()
	}

	metrics := acc.metrics(epoch, lr, time.Since(epochStart))
	if rs, ok := t.scheduler.(ReconScheduler); ok {
		rs.ObserveRecon(metrics.ReconstructionError)
	}
	t.history.Add(metrics)
	t.epoch++
	t.printEpochSummary(metrics)

	summary := EpochSummary{Metrics: metrics, Params: t.params.Clone()}
	if t.last != nil {
		summary.ModelSample = t.last.Clone()
	}
	for _, o := range t.observers {
		if err := o.ObserveEpoch(summary); err != nil {
			return metrics, errors.Wrapf(err, "epoch %d observer", epoch)
		}
	}
	return metrics, nil
}

// trainBatch estimates the gradient for one batch and applies it. The
// parameters are read during estimation and written once at the end.
func (t *Trainer) trainBatch(epoch, k int, data *tensor.Tensor, key random.Key, acc *metricAccumulator) error {
	grads, model, err := t.estimator.Estimate(data, t.params, key, t.carried)
	if err != nil {
		return err
	}

	recon, err := rbm.ReconstructionError(data, t.params)
	if err != nil {
		return err
	}
	dataFree, err := rbm.MeanFreeEnergy(data, t.params)
	if err != nil {
		return err
	}
	modelFree, err := rbm.MeanFreeEnergy(model, t.params)
	if err != nil {
		return err
	}
	saturation, err := rbm.HiddenSaturation(data, t.params, saturationEps)
	if err != nil {
		return err
	}
	acc.add(recon, dataFree, modelFree, saturation, grads.MaxAbs())

	if err := t.optimizer.Step(t.params, grads); err != nil {
		return errors.Wrap(err, "parameter update")
	}
	t.step++
	t.last = model
	if t.config.Persistent {
		t.carried = model
	} else {
		t.carried = nil
	}

	if t.onBatch != nil {
		t.onBatch(BatchResult{
			Epoch:        epoch,
			Batch:        k,
			Step:         t.step,
			Data:         data,
			Model:        model,
			Gradients:    grads,
			LearningRate: t.optimizer.GetLearningRate(),
		})
	}
	return nil
}

// printEpochSummary prints a summary of the epoch
func (t *Trainer) printEpochSummary(m EpochMetrics) {
	fmt.Fprintf(t.out, "Epoch %d/%d - Recon: %.5f, F(data): %.3f, F(model): %.3f, Saturation: %.1f%%, LR: %g (%s), Time: %v\n",
		m.Epoch+1, t.config.NumEpochs, m.ReconstructionError, m.DataFreeEnergy, m.ModelFreeEnergy,
		m.HiddenSaturation*100, m.LearningRate, t.scheduler, m.Duration.Round(time.Millisecond))
}
