package checkpoints

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers. The layout is
//
//	message Checkpoint {
//	  repeated Tensor weights = 1;
//	  TrainingState training_state = 2;
//	  bytes optimizer_state_json = 3;
//	  Metadata metadata = 4;
//	  Tensor model_sample = 5;
//	}
//	message Tensor { string name = 1; repeated int64 shape = 2; repeated double data = 3; string type = 4; }
//	message TrainingState {
//	  int64 epoch = 1; int64 step = 2; double learning_rate = 3;
//	  double best_reconstruction_error = 4; int64 seed = 5;
//	  int64 chain_length = 6; bool persistent = 7;
//	}
//	message Metadata {
//	  string version = 1; string framework = 2; int64 created_at_unix_nano = 3;
//	  string description = 4; repeated string tags = 5;
//	}
const (
	fieldWeights        protowire.Number = 1
	fieldTrainingState  protowire.Number = 2
	fieldOptimizerState protowire.Number = 3
	fieldMetadata       protowire.Number = 4
	fieldModelSample    protowire.Number = 5
)

func marshalCheckpoint(c *Checkpoint) ([]byte, error) {
	var b []byte
	for _, w := range c.Weights {
		b = protowire.AppendTag(b, fieldWeights, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTensor(w))
	}
	b = protowire.AppendTag(b, fieldTrainingState, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalTrainingState(c.TrainingState))
	if c.OptimizerState != nil {
		raw, err := json.Marshal(c.OptimizerState)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldOptimizerState, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	b = protowire.AppendTag(b, fieldMetadata, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalMetadata(c.Metadata))
	if c.ModelSample != nil {
		b = protowire.AppendTag(b, fieldModelSample, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTensor(*c.ModelSample))
	}
	return b, nil
}

func unmarshalCheckpoint(b []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case fieldWeights:
			w, err := unmarshalTensor(v)
			if err != nil {
				return err
			}
			c.Weights = append(c.Weights, w)
		case fieldTrainingState:
			s, err := unmarshalTrainingState(v)
			if err != nil {
				return err
			}
			c.TrainingState = s
		case fieldOptimizerState:
			c.OptimizerState = &OptimizerState{}
			if err := json.Unmarshal(v, c.OptimizerState); err != nil {
				return fmt.Errorf("optimizer state: %v", err)
			}
		case fieldMetadata:
			m, err := unmarshalMetadata(v)
			if err != nil {
				return err
			}
			c.Metadata = m
		case fieldModelSample:
			w, err := unmarshalTensor(v)
			if err != nil {
				return err
			}
			c.ModelSample = &w
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func marshalTensor(w WeightTensor) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, w.Name)

	var shape []byte
	for _, d := range w.Shape {
		shape = protowire.AppendVarint(shape, uint64(d))
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)

	data := make([]byte, 0, 8*len(w.Data))
	for _, x := range w.Data {
		data = protowire.AppendFixed64(data, math.Float64bits(x))
	}
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, data)

	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, w.Type)
	return b
}

func unmarshalTensor(b []byte) (WeightTensor, error) {
	var w WeightTensor
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			w.Name = string(v)
		case 2:
			if typ == protowire.VarintType {
				w.Shape = append(w.Shape, int(x))
				return nil
			}
			for len(v) > 0 {
				d, n := protowire.ConsumeVarint(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				w.Shape = append(w.Shape, int(d))
				v = v[n:]
			}
		case 3:
			if typ == protowire.Fixed64Type {
				w.Data = append(w.Data, math.Float64frombits(x))
				return nil
			}
			if len(v)%8 != 0 {
				return fmt.Errorf("tensor %s: packed data length %d is not a multiple of 8", w.Name, len(v))
			}
			w.Data = make([]float64, 0, len(v)/8)
			for len(v) > 0 {
				bits, n := protowire.ConsumeFixed64(v)
				if n < 0 {
					return protowire.ParseError(n)
				}
				w.Data = append(w.Data, math.Float64frombits(bits))
				v = v[n:]
			}
		case 4:
			w.Type = string(v)
		}
		return nil
	})
	return w, err
}

func marshalTrainingState(s TrainingState) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(s.Epoch))
	b = appendVarintField(b, 2, uint64(s.Step))
	b = appendDoubleField(b, 3, s.LearningRate)
	b = appendDoubleField(b, 4, s.BestReconstructionError)
	b = appendVarintField(b, 5, uint64(s.Seed))
	b = appendVarintField(b, 6, uint64(s.ChainLength))
	b = appendVarintField(b, 7, protowire.EncodeBool(s.Persistent))
	return b
}

func unmarshalTrainingState(b []byte) (TrainingState, error) {
	var s TrainingState
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			s.Epoch = int(int64(x))
		case 2:
			s.Step = int(int64(x))
		case 3:
			s.LearningRate = math.Float64frombits(x)
		case 4:
			s.BestReconstructionError = math.Float64frombits(x)
		case 5:
			s.Seed = int64(x)
		case 6:
			s.ChainLength = int(int64(x))
		case 7:
			s.Persistent = protowire.DecodeBool(x)
		}
		return nil
	})
	return s, err
}

func marshalMetadata(m CheckpointMetadata) []byte {
	var b []byte
	b = appendStringField(b, 1, m.Version)
	b = appendStringField(b, 2, m.Framework)
	if !m.CreatedAt.IsZero() {
		b = appendVarintField(b, 3, uint64(m.CreatedAt.UnixNano()))
	}
	b = appendStringField(b, 4, m.Description)
	for _, tag := range m.Tags {
		b = appendStringField(b, 5, tag)
	}
	return b
}

func unmarshalMetadata(b []byte) (CheckpointMetadata, error) {
	var m CheckpointMetadata
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			m.Version = string(v)
		case 2:
			m.Framework = string(v)
		case 3:
			m.CreatedAt = time.Unix(0, int64(x)).UTC()
		case 4:
			m.Description = string(v)
		case 5:
			m.Tags = append(m.Tags, string(v))
		}
		return nil
	})
	return m, err
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// walkFields calls fn for every field in b. Length-delimited values are
// passed as v; varint and fixed values as x. Unknown wire types are skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ == protowire.VarintType || typ == protowire.Fixed64Type || typ == protowire.BytesType {
			if err := fn(num, typ, v, x); err != nil {
				return err
			}
		}
	}
	return nil
}
