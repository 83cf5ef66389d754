package training

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/go-boltzmann/rbm"
)

// TestDefaultConfig tests the default options validate
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(1000); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.ChainLength != 1 || cfg.Persistent {
		t.Errorf("Expected CD-1 by default, got chain_length=%d persistent=%t", cfg.ChainLength, cfg.Persistent)
	}
}

// TestConfigValidate tests every rejected option
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		n      int
	}{
		{"NegativeLearningRate", func(c *Config) { c.LearningRate = -0.1 }, 100},
		{"ZeroEpochs", func(c *Config) { c.NumEpochs = 0 }, 100},
		{"ZeroBatchSize", func(c *Config) { c.BatchSize = 0 }, 100},
		{"BatchLargerThanDataset", func(c *Config) { c.BatchSize = 101 }, 100},
		{"EmptyDataset", func(c *Config) {}, 0},
		{"ZeroChainLength", func(c *Config) { c.ChainLength = 0 }, 100},
		{"ZeroHidden", func(c *Config) { c.NumHidden = 0 }, 100},
		{"NegativeWeightScale", func(c *Config) { c.WeightScale = -1 }, 100},
		{"NegativeWorkers", func(c *Config) { c.Workers = -2 }, 100},
		{"UnknownScheduler", func(c *Config) { c.Scheduler = "linear" }, 100},
		{"ExponentialNegativeGamma", func(c *Config) { c.Scheduler = SchedulerExponential; c.Gamma = -0.5 }, 100},
		{"StepGammaOne", func(c *Config) { c.Scheduler = SchedulerStep; c.Gamma = 1 }, 100},
		{"StepZeroStepSize", func(c *Config) { c.Scheduler = SchedulerStep; c.StepSize = 0 }, 100},
		{"PlateauZeroGamma", func(c *Config) { c.Scheduler = SchedulerPlateau; c.Gamma = 0 }, 100},
		{"PlateauNegativePatience", func(c *Config) { c.Scheduler = SchedulerPlateau; c.StepSize = -3 }, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate(tt.n)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !rbm.IsConfigError(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}

	t.Run("ZeroLearningRateAllowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LearningRate = 0
		if err := cfg.Validate(100); err != nil {
			t.Errorf("Expected zero learning rate to be valid, got %v", err)
		}
	})

	t.Run("GammaIgnoredByConstantSchedule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gamma = -1
		cfg.StepSize = 0
		if err := cfg.Validate(100); err != nil {
			t.Errorf("Expected constant schedule to ignore gamma and step size, got %v", err)
		}
	})

	t.Run("BatchEqualToDataset", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BatchSize = 100
		if err := cfg.Validate(100); err != nil {
			t.Errorf("Expected batch size equal to dataset size to be valid, got %v", err)
		}
	})
}

// TestConfigSaveLoad tests the JSON round trip and default filling
func TestConfigSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.LearningRate = 0.05
	cfg.Persistent = true
	cfg.CarryAcrossEpochs = true
	cfg.Seed = 99
	cfg.Scheduler = SchedulerCosine
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded != cfg {
		t.Errorf("Expected %+v, got %+v", cfg, loaded)
	}

	partial := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(partial, []byte(`{"batch_size": 16, "chain_length": 3}`), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err = LoadConfig(partial)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}
	if loaded.BatchSize != 16 || loaded.ChainLength != 3 {
		t.Errorf("Expected batch_size 16 and chain_length 3, got %d and %d", loaded.BatchSize, loaded.ChainLength)
	}
	if loaded.NumHidden != DefaultConfig().NumHidden {
		t.Errorf("Expected default num_hidden %d, got %d", DefaultConfig().NumHidden, loaded.NumHidden)
	}

	unknown := filepath.Join(dir, "unknown.json")
	if err := os.WriteFile(unknown, []byte(`{"momentum": 0.9}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(unknown); err == nil {
		t.Error("Expected error for unknown option")
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestLoadConfigInto tests that a file only overrides the options it names
func TestLoadConfigInto(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(path, []byte(`{"num_epochs": 3, "chain_length": 5}`), 0644); err != nil {
		t.Fatal(err)
	}

	base := DefaultConfig()
	base.NumHidden = 256
	base.LearningRate = 0.05
	base.BatchSize = 100
	base.Persistent = true

	cfg, err := LoadConfigInto(path, base)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.NumEpochs != 3 || cfg.ChainLength != 5 {
		t.Errorf("Expected num_epochs 3 and chain_length 5, got %d and %d", cfg.NumEpochs, cfg.ChainLength)
	}
	if cfg.NumHidden != 256 || cfg.LearningRate != 0.05 || cfg.BatchSize != 100 || !cfg.Persistent {
		t.Errorf("Expected unnamed options to keep their base values, got %+v", cfg)
	}

	// a file can still switch a base option off
	off := filepath.Join(dir, "off.json")
	if err := os.WriteFile(off, []byte(`{"persistent": false}`), 0644); err != nil {
		t.Fatal(err)
	}
	if cfg, err = LoadConfigInto(off, base); err != nil {
		t.Fatal(err)
	}
	if cfg.Persistent {
		t.Error("Expected persistent to be switched off by the file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"batch_size": "many"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfigInto(bad, base)
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if cfg != base {
		t.Errorf("Expected base config back on error, got %+v", cfg)
	}
}

// TestConfigSetString tests setting options by JSON name
func TestConfigSetString(t *testing.T) {
	cfg := DefaultConfig()

	var err error
	for _, kv := range [][2]string{
		{"learning_rate", "0.2"},
		{"batch_size", "32"},
		{"seed", "-7"},
		{"persistent", "true"},
		{"scheduler", "step"},
	} {
		cfg, err = cfg.SetString(kv[0], kv[1])
		if err != nil {
			t.Fatalf("SetString(%s, %s) failed: %v", kv[0], kv[1], err)
		}
	}

	if cfg.LearningRate != 0.2 || cfg.BatchSize != 32 || cfg.Seed != -7 || !cfg.Persistent || cfg.Scheduler != "step" {
		t.Errorf("Unexpected config after SetString: %+v", cfg)
	}
	if cfg.Get("batch_size") != 32 {
		t.Errorf("Expected Get(batch_size) = 32, got %v", cfg.Get("batch_size"))
	}
	if cfg.Get("nope") != nil {
		t.Errorf("Expected nil for unknown option, got %v", cfg.Get("nope"))
	}

	if _, err := cfg.SetString("batch_size", "many"); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := cfg.SetString("momentum", "0.9"); err == nil {
		t.Error("Expected error for unknown option")
	}
}

// TestConfigString tests every option is listed
func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	for _, field := range cfg.Fields() {
		if !strings.Contains(s, field) {
			t.Errorf("Expected %q in config string", field)
		}
	}
	if cfg.Fields()[0] != "learning_rate" {
		t.Errorf("Expected first field learning_rate, got %s", cfg.Fields()[0])
	}
}
