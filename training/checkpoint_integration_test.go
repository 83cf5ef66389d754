package training

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/go-boltzmann/checkpoints"
	"github.com/tsawler/go-boltzmann/rbm"
)

// TestCheckpointResume tests that a run resumed from a checkpoint ends with
// the same parameters as an uninterrupted run
func TestCheckpointResume(t *testing.T) {
	ds := randomDataset(t, 40, 12, 11)

	for _, format := range []checkpoints.CheckpointFormat{checkpoints.FormatJSON, checkpoints.FormatProtobuf} {
		t.Run(format.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.NumEpochs = 3
			cfg.Persistent = true
			cfg.CarryAcrossEpochs = true
			cfg.Scheduler = SchedulerStep
			cfg.StepSize = 1
			cfg.Gamma = 0.5

			dir := t.TempDir()
			full := newTestTrainer(t, ds, cfg)
			manager := NewCheckpointManager(full, CheckpointConfig{
				SaveDirectory: dir,
				SaveFrequency: 1,
				Format:        format,
			})
			full.AddObserver(manager)
			if _, err := full.Train(); err != nil {
				t.Fatalf("Training failed: %v", err)
			}

			saved := manager.SavedFiles()
			if len(saved) != 3 {
				t.Fatalf("Expected 3 periodic checkpoints, got %d", len(saved))
			}

			resumed := newTestTrainer(t, ds, cfg)
			loader := NewCheckpointManager(resumed, CheckpointConfig{SaveDirectory: dir, Format: format})
			if err := loader.LoadCheckpoint(saved[0]); err != nil {
				t.Fatalf("Failed to load checkpoint: %v", err)
			}
			if resumed.Epoch() != 1 || resumed.Step() != 5 {
				t.Errorf("Expected epoch 1 step 5 after loading, got epoch %d step %d", resumed.Epoch(), resumed.Step())
			}
			if resumed.Carried() == nil {
				t.Error("Expected carried sample to be restored")
			}

			if _, err := resumed.Train(); err != nil {
				t.Fatalf("Resumed training failed: %v", err)
			}
			if !resumed.Params().Equal(full.Params()) {
				t.Error("Expected resumed run to match the uninterrupted run")
			}
			if resumed.History().Len() != 2 {
				t.Errorf("Expected 2 epochs in resumed history, got %d", resumed.History().Len())
			}
		})
	}
}

// TestCheckpointBestAndCleanup tests best checkpoints and the retention limit
func TestCheckpointBestAndCleanup(t *testing.T) {
	ds := randomDataset(t, 16, 8, 12)
	cfg := testConfig()
	cfg.NumEpochs = 4

	dir := t.TempDir()
	tr := newTestTrainer(t, ds, cfg)
	manager := NewCheckpointManager(tr, CheckpointConfig{
		SaveDirectory:  dir,
		SaveFrequency:  1,
		SaveBest:       true,
		MaxCheckpoints: 2,
		Format:         checkpoints.FormatJSON,
	})
	tr.AddObserver(manager)
	if _, err := tr.Train(); err != nil {
		t.Fatalf("Training failed: %v", err)
	}

	saved := manager.SavedFiles()
	if len(saved) != 2 {
		t.Fatalf("Expected 2 retained checkpoints, got %d", len(saved))
	}
	if filepath.Base(saved[1]) != "checkpoint_epoch_4_step_8.json" {
		t.Errorf("Unexpected newest checkpoint name %s", filepath.Base(saved[1]))
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoint_epoch_1_step_2.json")); !os.IsNotExist(err) {
		t.Errorf("Expected oldest checkpoint to be removed, stat error %v", err)
	}

	best, err := checkpoints.NewCheckpointSaver(checkpoints.FormatJSON).LoadCheckpoint(manager.BestPath())
	if err != nil {
		t.Fatalf("Failed to load best checkpoint: %v", err)
	}
	bestEpoch, _ := tr.History().Best()
	if best.TrainingState.Epoch != bestEpoch.Epoch+1 {
		t.Errorf("Expected best checkpoint after epoch %d, got %d", bestEpoch.Epoch+1, best.TrainingState.Epoch)
	}
	if best.TrainingState.BestReconstructionError != bestEpoch.ReconstructionError {
		t.Errorf("Expected best error %g, got %g", bestEpoch.ReconstructionError, best.TrainingState.BestReconstructionError)
	}
}

// TestCheckpointSaveAfterPeriodic tests that saving again at the epoch and
// step of the last periodic checkpoint keeps that file on disk
func TestCheckpointSaveAfterPeriodic(t *testing.T) {
	ds := randomDataset(t, 16, 8, 14)
	cfg := testConfig()
	cfg.NumEpochs = 2

	dir := t.TempDir()
	tr := newTestTrainer(t, ds, cfg)
	manager := NewCheckpointManager(tr, CheckpointConfig{
		SaveDirectory:  dir,
		SaveFrequency:  1,
		MaxCheckpoints: 1,
		Format:         checkpoints.FormatJSON,
	})
	tr.AddObserver(manager)
	if _, err := tr.Train(); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	periodic := manager.SavedFiles()

	path, err := manager.SaveCheckpoint("final")
	if err != nil {
		t.Fatalf("Failed to save final checkpoint: %v", err)
	}
	if len(periodic) != 1 || periodic[0] != path {
		t.Errorf("Expected final checkpoint to reuse %v, got %s", periodic, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected final checkpoint on disk, got %v", err)
	}

	saved := manager.SavedFiles()
	if len(saved) != 1 || saved[0] != path {
		t.Errorf("Expected saved files [%s], got %v", path, saved)
	}

	// a later save still evicts the older file
	tr.step++
	next, err := manager.SaveCheckpoint("later")
	if err != nil {
		t.Fatalf("Failed to save later checkpoint: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, stat error %v", filepath.Base(path), err)
	}
	if _, err := os.Stat(next); err != nil {
		t.Errorf("Expected newest checkpoint on disk, got %v", err)
	}
}

// TestCheckpointLoadErrors tests how load failures are classified
func TestCheckpointLoadErrors(t *testing.T) {
	ds := randomDataset(t, 16, 8, 15)
	cfg := testConfig()
	cfg.NumEpochs = 1
	cfg.Persistent = true

	tr := newTestTrainer(t, ds, cfg)
	manager := NewCheckpointManager(tr, CheckpointConfig{SaveDirectory: t.TempDir(), Format: checkpoints.FormatJSON})

	err := manager.LoadCheckpoint(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Expected error for missing checkpoint")
	}
	if rbm.IsConfigError(err) {
		t.Errorf("Expected I/O error, got configuration error %v", err)
	}

	if _, err := tr.Train(); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	path, err := manager.SaveCheckpoint("carried")
	if err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// the carried sample has 8 rows, the new trainer expects 4
	c := cfg
	c.BatchSize = 4
	other := newTestTrainer(t, ds, c)
	err = NewCheckpointManager(other, CheckpointConfig{Format: checkpoints.FormatJSON}).LoadCheckpoint(path)
	if !rbm.IsConfigError(err) {
		t.Errorf("Expected configuration error from resume, got %v", err)
	}
	if other.Epoch() != 0 {
		t.Errorf("Expected epoch 0 after a rejected load, got %d", other.Epoch())
	}
}

// TestCheckpointIncompatible tests that mismatched runs are rejected
func TestCheckpointIncompatible(t *testing.T) {
	ds := randomDataset(t, 16, 8, 13)
	cfg := testConfig()
	dir := t.TempDir()

	tr := newTestTrainer(t, ds, cfg)
	manager := NewCheckpointManager(tr, CheckpointConfig{SaveDirectory: dir, Format: checkpoints.FormatJSON})
	path, err := manager.SaveCheckpoint("initial")
	if err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"Seed", func(c *Config) { c.Seed = 99 }},
		{"Persistent", func(c *Config) { c.Persistent = true }},
		{"HiddenUnits", func(c *Config) { c.NumHidden = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.modify(&c)
			other := newTestTrainer(t, ds, c)
			before := other.Params().Clone()
			err := NewCheckpointManager(other, CheckpointConfig{Format: checkpoints.FormatJSON}).LoadCheckpoint(path)
			if err == nil {
				t.Fatal("Expected incompatible checkpoint to be rejected")
			}
			if !rbm.IsConfigError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
			if !other.Params().Equal(before) {
				t.Error("Expected params to be untouched after a rejected load")
			}
		})
	}
}
