package training

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/checkpoints"
	"github.com/tsawler/go-boltzmann/optimizer"
	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// CheckpointConfig configures checkpoint saving behavior
type CheckpointConfig struct {
	SaveDirectory   string                       // Directory to save checkpoints
	SaveFrequency   int                          // Save every N epochs (0 = disabled)
	SaveBest        bool                         // Save when reconstruction error improves
	MaxCheckpoints  int                          // Maximum number of periodic checkpoints to keep (0 = unlimited)
	Format          checkpoints.CheckpointFormat // JSON or Protobuf
	FilenamePattern string                       // Pattern for checkpoint filenames
}

// DefaultCheckpointConfig returns a sensible default configuration
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		SaveDirectory:   "./checkpoints",
		SaveFrequency:   5, // Save every 5 epochs
		SaveBest:        true,
		MaxCheckpoints:  10,
		Format:          checkpoints.FormatJSON,
		FilenamePattern: "checkpoint_epoch_%d_step_%d",
	}
}

// CheckpointManager saves trainer state after epochs and restores it. It
// implements EpochObserver.
type CheckpointManager struct {
	config     CheckpointConfig
	trainer    *Trainer
	saver      *checkpoints.CheckpointSaver
	bestRecon  float64
	savedFiles []string // periodic checkpoints, oldest first
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(trainer *Trainer, config CheckpointConfig) *CheckpointManager {
	return &CheckpointManager{
		config:    config,
		trainer:   trainer,
		saver:     checkpoints.NewCheckpointSaver(config.Format),
		bestRecon: math.Inf(1),
	}
}

// ObserveEpoch saves periodic and best checkpoints
func (cm *CheckpointManager) ObserveEpoch(summary EpochSummary) error {
	if _, err := cm.SaveBestCheckpoint(summary.Metrics.ReconstructionError); err != nil {
		return err
	}
	_, err := cm.SavePeriodicCheckpoint()
	return err
}

// SaveCheckpoint saves the current trainer state and returns the file path
func (cm *CheckpointManager) SaveCheckpoint(description string) (string, error) {
	checkpoint, err := cm.createCheckpointFromTrainer(description)
	if err != nil {
		return "", errors.Wrap(err, "failed to create checkpoint")
	}

	path := filepath.Join(cm.config.SaveDirectory, cm.generateFilename(cm.trainer.Epoch(), cm.trainer.Step()))
	if err := cm.ensureDirectory(); err != nil {
		return "", errors.Wrap(err, "failed to create checkpoint directory")
	}
	if err := cm.saver.SaveCheckpoint(checkpoint, path); err != nil {
		return "", errors.Wrap(err, "failed to save checkpoint")
	}

	cm.track(path)
	if err := cm.cleanupOldCheckpoints(); err != nil {
		fmt.Fprintf(cm.trainer.out, "Warning: failed to cleanup old checkpoints: %v\n", err)
	}
	return path, nil
}

// SaveBestCheckpoint saves best_checkpoint when recon improves on every
// earlier epoch
func (cm *CheckpointManager) SaveBestCheckpoint(recon float64) (bool, error) {
	if !cm.config.SaveBest || !(recon < cm.bestRecon) {
		return false, nil
	}
	cm.bestRecon = recon

	description := fmt.Sprintf("Best checkpoint - Reconstruction error: %.6f", recon)
	checkpoint, err := cm.createCheckpointFromTrainer(description)
	if err != nil {
		return false, errors.Wrap(err, "failed to create best checkpoint")
	}
	if err := cm.ensureDirectory(); err != nil {
		return false, errors.Wrap(err, "failed to create checkpoint directory")
	}
	if err := cm.saver.SaveCheckpoint(checkpoint, cm.BestPath()); err != nil {
		return false, errors.Wrap(err, "failed to save best checkpoint")
	}
	return true, nil
}

// SavePeriodicCheckpoint saves a checkpoint every SaveFrequency completed
// epochs
func (cm *CheckpointManager) SavePeriodicCheckpoint() (bool, error) {
	epoch := cm.trainer.Epoch()
	if cm.config.SaveFrequency <= 0 || epoch%cm.config.SaveFrequency != 0 {
		return false, nil
	}
	if _, err := cm.SaveCheckpoint(fmt.Sprintf("Periodic checkpoint - Epoch %d", epoch)); err != nil {
		return false, err
	}
	return true, nil
}

// BestPath returns where the best checkpoint is written
func (cm *CheckpointManager) BestPath() string {
	return filepath.Join(cm.config.SaveDirectory, "best_checkpoint."+cm.config.Format.Extension())
}

// SavedFiles returns the periodic checkpoints still on disk
func (cm *CheckpointManager) SavedFiles() []string {
	return append([]string(nil), cm.savedFiles...)
}

// LoadCheckpoint loads a checkpoint and restores trainer state so that Train
// continues where the saved run stopped
func (cm *CheckpointManager) LoadCheckpoint(path string) error {
	checkpoint, err := cm.saver.LoadCheckpoint(path)
	if err != nil {
		return errors.Wrap(err, "failed to load checkpoint")
	}
	if err := cm.restoreTrainerFromCheckpoint(checkpoint); err != nil {
		return errors.Wrap(err, "failed to restore trainer state")
	}
	return nil
}

func (cm *CheckpointManager) createCheckpointFromTrainer(description string) (*checkpoints.Checkpoint, error) {
	t := cm.trainer
	cfg := t.Config()

	var optimizerState *checkpoints.OptimizerState
	state, err := t.OptimizerState()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read optimizer state")
	}
	if state != nil {
		optimizerState = &checkpoints.OptimizerState{Type: state.Type, Parameters: state.Parameters}
	}

	best := cm.bestRecon
	if math.IsInf(best, 1) {
		best = 0
	}

	return &checkpoints.Checkpoint{
		Weights:     checkpoints.ExtractWeights(t.Params()),
		ModelSample: checkpoints.SampleTensor(t.Carried()),
		TrainingState: checkpoints.TrainingState{
			Epoch:                   t.Epoch(),
			Step:                    t.Step(),
			LearningRate:            t.LearningRate(),
			BestReconstructionError: best,
			Seed:                    cfg.Seed,
			ChainLength:             cfg.ChainLength,
			Persistent:              cfg.Persistent,
		},
		OptimizerState: optimizerState,
		Metadata: checkpoints.CheckpointMetadata{
			Description: description,
			Tags:        []string{fmt.Sprintf("epoch_%d", t.Epoch()), t.Params().String()},
		},
	}, nil
}

func (cm *CheckpointManager) restoreTrainerFromCheckpoint(checkpoint *checkpoints.Checkpoint) error {
	t := cm.trainer
	cfg := t.Config()
	state := checkpoint.TrainingState

	if state.Seed != cfg.Seed {
		return errors.Wrapf(rbm.ErrConfig, "checkpoint was trained with seed %d, trainer uses %d", state.Seed, cfg.Seed)
	}
	if state.Persistent != cfg.Persistent {
		return errors.Wrapf(rbm.ErrConfig, "checkpoint persistent=%t does not match trainer persistent=%t", state.Persistent, cfg.Persistent)
	}

	var opt *optimizer.OptimizerState
	if checkpoint.OptimizerState != nil {
		opt = &optimizer.OptimizerState{
			Type:       checkpoint.OptimizerState.Type,
			Parameters: checkpoint.OptimizerState.Parameters,
		}
	}
	carried := checkpoint.ModelSample
	if !cfg.Persistent {
		carried = nil
	}

	// Everything that can fail is checked before weights are overwritten
	params, err := checkpoint.Params()
	if err != nil {
		return err
	}
	if params.NumVisible() != t.Params().NumVisible() || params.NumHidden() != t.Params().NumHidden() {
		return errors.Wrapf(rbm.ErrConfig, "checkpoint model %s incompatible with trainer model %s", params, t.Params())
	}
	sample, err := sampleFromCheckpoint(carried)
	if err != nil {
		return err
	}
	if err := t.Resume(state.Epoch, state.Step, opt, sample); err != nil {
		return err
	}
	if err := checkpoint.LoadWeightsIntoParams(t.Params()); err != nil {
		return errors.Wrap(err, "failed to load weights")
	}

	if state.BestReconstructionError > 0 {
		cm.bestRecon = state.BestReconstructionError
	}
	return nil
}

func sampleFromCheckpoint(wt *checkpoints.WeightTensor) (*tensor.Tensor, error) {
	if wt == nil {
		return nil, nil
	}
	return wt.Tensor()
}

func (cm *CheckpointManager) generateFilename(epoch int, step int) string {
	pattern := cm.config.FilenamePattern
	if pattern == "" {
		pattern = "checkpoint_epoch_%d_step_%d"
	}
	return fmt.Sprintf(pattern, epoch, step) + "." + cm.config.Format.Extension()
}

func (cm *CheckpointManager) ensureDirectory() error {
	return os.MkdirAll(cm.config.SaveDirectory, 0755)
}

// track records path as the newest checkpoint. Saving twice at the same
// epoch and step overwrites one file, so its earlier entry is dropped.
func (cm *CheckpointManager) track(path string) {
	kept := cm.savedFiles[:0]
	for _, p := range cm.savedFiles {
		if p != path {
			kept = append(kept, p)
		}
	}
	cm.savedFiles = append(kept, path)
}

func (cm *CheckpointManager) cleanupOldCheckpoints() error {
	if cm.config.MaxCheckpoints <= 0 || len(cm.savedFiles) <= cm.config.MaxCheckpoints {
		return nil
	}

	toRemove := len(cm.savedFiles) - cm.config.MaxCheckpoints
	keep := make(map[string]bool, cm.config.MaxCheckpoints)
	for _, p := range cm.savedFiles[toRemove:] {
		keep[p] = true
	}
	for _, p := range cm.savedFiles[:toRemove] {
		if keep[p] {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove old checkpoint %s", p)
		}
	}
	cm.savedFiles = append([]string(nil), cm.savedFiles[toRemove:]...)
	return nil
}
