package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tsawler/go-boltzmann/rbm"
)

// Scheduler names accepted by Config.Scheduler.
const (
	SchedulerConstant    = "constant"
	SchedulerStep        = "step"
	SchedulerExponential = "exponential"
	SchedulerCosine      = "cosine"
	SchedulerPlateau     = "plateau"
)

// Config holds the options of one training run.
type Config struct {
	LearningRate      float64 `json:"learning_rate"`
	NumEpochs         int     `json:"num_epochs"`
	BatchSize         int     `json:"batch_size"`
	ChainLength       int     `json:"chain_length"`        // Gibbs steps per gradient estimate
	Persistent        bool    `json:"persistent"`          // carry the model sample across batches
	CarryAcrossEpochs bool    `json:"carry_across_epochs"` // keep the carried sample at epoch boundaries
	Seed              int64   `json:"seed"`
	NumHidden         int     `json:"num_hidden"`
	WeightScale       float64 `json:"weight_scale"` // std of the initial weights
	Scheduler         string  `json:"scheduler"`
	StepSize          int     `json:"step_size"` // epochs between step decays, or plateau patience
	Gamma             float64 `json:"gamma"`     // decay factor for step, exponential and plateau schedules
	Workers           int     `json:"workers"`   // goroutines used by the Gibbs sampler
	Verbose           bool    `json:"verbose"`   // show a per-batch progress bar
}

// DefaultConfig returns the default training configuration
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.01,
		NumEpochs:    10,
		BatchSize:    64,
		ChainLength:  1,
		Persistent:   false,
		Seed:         1,
		NumHidden:    64,
		WeightScale:  0.01,
		Scheduler:    SchedulerConstant,
		StepSize:     30,
		Gamma:        0.1,
		Workers:      1,
	}
}

// Validate checks the options against a dataset of datasetLen samples.
// Errors wrap rbm.ErrConfig.
func (c Config) Validate(datasetLen int) error {
	check := func(ok bool, format string, args ...interface{}) error {
		if ok {
			return nil
		}
		return errors.Wrapf(rbm.ErrConfig, format, args...)
	}
	for _, err := range []error{
		check(c.LearningRate >= 0, "learning rate cannot be negative: %g", c.LearningRate),
		check(c.NumEpochs > 0, "number of epochs must be positive, got %d", c.NumEpochs),
		check(c.BatchSize > 0, "batch size must be positive, got %d", c.BatchSize),
		check(datasetLen > 0, "dataset is empty"),
		check(c.BatchSize <= datasetLen, "batch size %d exceeds dataset size %d", c.BatchSize, datasetLen),
		check(c.ChainLength > 0, "chain length must be positive, got %d", c.ChainLength),
		check(c.NumHidden > 0, "number of hidden units must be positive, got %d", c.NumHidden),
		check(c.WeightScale >= 0, "weight scale cannot be negative: %g", c.WeightScale),
		check(c.Workers >= 0, "workers cannot be negative, got %d", c.Workers),
	} {
		if err != nil {
			return err
		}
	}
	if _, err := c.NewScheduler(); err != nil {
		return err
	}
	return nil
}

// plateauMinDelta is the drop in reconstruction error that counts as progress
// for the plateau schedule.
const plateauMinDelta = 1e-4

// NewScheduler builds the learning rate schedule named by c.Scheduler. Gamma
// must lie in (0, 1) for the step, exponential and plateau schedules, and
// StepSize must be positive for step (epochs between decays) and plateau
// (patience).
func (c Config) NewScheduler() (LRScheduler, error) {
	var (
		s   LRScheduler
		err error
	)
	switch c.Scheduler {
	case "", SchedulerConstant:
		return ConstantLR{}, nil
	case SchedulerStep:
		s, err = NewStepDecay(c.StepSize, c.Gamma)
	case SchedulerExponential:
		s, err = NewExponentialDecay(c.Gamma)
	case SchedulerCosine:
		s, err = NewCosineDecay(c.NumEpochs, 0)
	case SchedulerPlateau:
		s, err = NewPlateauDecay(c.Gamma, c.StepSize, plateauMinDelta)
	default:
		return nil, errors.Wrapf(rbm.ErrConfig, "unknown scheduler %q", c.Scheduler)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "%s scheduler", c.Scheduler)
	}
	return s, nil
}

// LoadConfig reads a JSON config. Fields missing from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	return LoadConfigInto(path, DefaultConfig())
}

// LoadConfigInto decodes a JSON config on top of base, so fields missing
// from the file keep their base values. base is returned unchanged on error.
func LoadConfigInto(path string, base Config) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()

	c := base
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return base, errors.Wrapf(err, "failed to decode config %s", path)
	}
	return c, nil
}

// Save writes the config as indented JSON. The file is written under a
// temporary name and renamed into place.
func (c Config) Save(path string) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path))
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to encode config")
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Fields returns the JSON names of all options in declaration order.
func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fields := make([]string, st.NumField())
	for i := range fields {
		fields[i] = jsonName(st.Field(i))
	}
	return fields
}

// Get returns the option with the given JSON name, or nil.
func (c Config) Get(key string) interface{} {
	st := reflect.TypeOf(c)
	for i := 0; i < st.NumField(); i++ {
		if jsonName(st.Field(i)) == key {
			return reflect.ValueOf(c).Field(i).Interface()
		}
	}
	return nil
}

// SetString parses val into the option with the given JSON name.
func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	st := s.Type()
	for i := 0; i < st.NumField(); i++ {
		if jsonName(st.Field(i)) != key {
			continue
		}
		f := s.Field(i)
		switch f.Kind() {
		case reflect.Int, reflect.Int64:
			x, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return c, errors.Wrapf(err, "invalid value for %s", key)
			}
			f.SetInt(x)
		case reflect.Float64:
			x, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return c, errors.Wrapf(err, "invalid value for %s", key)
			}
			f.SetFloat(x)
		case reflect.Bool:
			x, err := strconv.ParseBool(val)
			if err != nil {
				return c, errors.Wrapf(err, "invalid value for %s", key)
			}
			f.SetBool(x)
		case reflect.String:
			f.SetString(val)
		default:
			return c, fmt.Errorf("invalid type for SetString: %v", f.Kind())
		}
		return c, nil
	}
	return c, fmt.Errorf("unknown config option %q", key)
}

func (c Config) String() string {
	str := []string{"== Config =="}
	for _, key := range c.Fields() {
		str = append(str, fmt.Sprintf("%-20s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if name := strings.Split(tag, ",")[0]; name != "" {
		return name
	}
	return f.Name
}
