package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatProtobuf
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatProtobuf:
		return "Protobuf"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension used for the format
func (cf CheckpointFormat) Extension() string {
	switch cf {
	case FormatProtobuf:
		return "pb"
	default:
		return "json"
	}
}

// Parameter tensor names
const (
	VisibleBiasName = "visible_bias"
	HiddenBiasName  = "hidden_bias"
	WeightsName     = "weights"
)

// Checkpoint represents a complete RBM state including parameters, optimizer
// state, and training metadata
type Checkpoint struct {
	Weights []WeightTensor `json:"weights"`

	// ModelSample is the carried persistent chain state, if any
	ModelSample *WeightTensor `json:"model_sample,omitempty"`

	TrainingState TrainingState `json:"training_state"`

	OptimizerState *OptimizerState `json:"optimizer_state,omitempty"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
	Type  string    `json:"type"` // "weight", "bias", "sample"
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch                   int     `json:"epoch"` // completed epochs
	Step                    int     `json:"step"`  // applied updates
	LearningRate            float64 `json:"learning_rate"`
	BestReconstructionError float64 `json:"best_reconstruction_error"`
	Seed                    int64   `json:"seed"`
	ChainLength             int     `json:"chain_length"`
	Persistent              bool    `json:"persistent"`
}

// OptimizerState captures optimizer-specific state
type OptimizerState struct {
	Type       string                 `json:"type"` // "SGD"
	Parameters map[string]interface{} `json:"parameters"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// CheckpointSaver handles saving model checkpoints in various formats
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// SaveCheckpoint saves a complete model checkpoint
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "go-boltzmann"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	var data []byte
	var err error
	switch cs.format {
	case FormatJSON:
		data, err = json.MarshalIndent(checkpoint, "", "  ")
	case FormatProtobuf:
		data, err = marshalCheckpoint(checkpoint)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return writeFile(path, data)
}

// LoadCheckpoint loads a model checkpoint
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}

	var checkpoint *Checkpoint
	switch cs.format {
	case FormatJSON:
		checkpoint = &Checkpoint{}
		err = json.Unmarshal(data, checkpoint)
	case FormatProtobuf:
		checkpoint, err = unmarshalCheckpoint(data)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return checkpoint, nil
}

// writeFile writes data under a temporary name and renames it into place
func writeFile(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move checkpoint into place: %v", err)
	}
	return nil
}

// ExtractWeights copies RBM parameters into checkpoint tensors
func ExtractWeights(p *rbm.Params) []WeightTensor {
	return []WeightTensor{
		toWeightTensor(WeightsName, "weight", p.Weights),
		toWeightTensor(VisibleBiasName, "bias", p.Visible),
		toWeightTensor(HiddenBiasName, "bias", p.Hidden),
	}
}

// SampleTensor wraps a carried model sample for storage
func SampleTensor(sample *tensor.Tensor) *WeightTensor {
	if sample == nil {
		return nil
	}
	wt := toWeightTensor("model_sample", "sample", sample)
	return &wt
}

func toWeightTensor(name, kind string, t *tensor.Tensor) WeightTensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return WeightTensor{Name: name, Shape: shape, Data: data, Type: kind}
}

// Tensor rebuilds a tensor from the stored shape and data
func (wt WeightTensor) Tensor() (*tensor.Tensor, error) {
	data := make([]float64, len(wt.Data))
	copy(data, wt.Data)
	t, err := tensor.NewTensor(wt.Shape, data)
	if err != nil {
		return nil, fmt.Errorf("invalid tensor %s: %v", wt.Name, err)
	}
	return t, nil
}

// Params rebuilds RBM parameters from the checkpoint weights
func (c *Checkpoint) Params() (*rbm.Params, error) {
	byName := make(map[string]WeightTensor, len(c.Weights))
	for _, w := range c.Weights {
		byName[w.Name] = w
	}

	p := &rbm.Params{}
	for name, dst := range map[string]**tensor.Tensor{
		WeightsName:     &p.Weights,
		VisibleBiasName: &p.Visible,
		HiddenBiasName:  &p.Hidden,
	} {
		w, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("checkpoint has no %s tensor", name)
		}
		t, err := w.Tensor()
		if err != nil {
			return nil, err
		}
		*dst = t
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadWeightsIntoParams overwrites p with the checkpoint weights. Shapes must
// match.
func (c *Checkpoint) LoadWeightsIntoParams(p *rbm.Params) error {
	loaded, err := c.Params()
	if err != nil {
		return err
	}
	if !tensor.SameShape(loaded.Weights, p.Weights) {
		return fmt.Errorf("checkpoint weights have shape %v, model has %v", loaded.Weights.Shape, p.Weights.Shape)
	}
	if err := p.Weights.CopyFrom(loaded.Weights); err != nil {
		return err
	}
	if err := p.Visible.CopyFrom(loaded.Visible); err != nil {
		return err
	}
	return p.Hidden.CopyFrom(loaded.Hidden)
}
