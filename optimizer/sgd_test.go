package optimizer

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tsawler/go-boltzmann/random"
	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

func testParams(t *testing.T) *rbm.Params {
	t.Helper()
	p, err := rbm.NewParams(4, 2, random.NewKey(1), 0.5)
	if err != nil {
		t.Fatalf("Failed to create parameters: %v", err)
	}
	p.Visible.Data[1] = 0.25
	p.Hidden.Data[0] = -0.5
	return p
}

func onesLike(t *testing.T, p *rbm.Params) *rbm.Gradients {
	t.Helper()
	ga, _ := tensor.Ones(p.NumVisible())
	gb, _ := tensor.Ones(p.NumHidden())
	gw, _ := tensor.Ones(p.NumVisible(), p.NumHidden())
	return &rbm.Gradients{Visible: ga, Hidden: gb, Weights: gw}
}

// TestDefaultSGDConfig tests the default SGD configuration
func TestDefaultSGDConfig(t *testing.T) {
	config := DefaultSGDConfig()
	if config.LearningRate != 0.01 {
		t.Errorf("Expected LearningRate 0.01, got %f", config.LearningRate)
	}

	if _, err := NewSGDOptimizer(SGDConfig{LearningRate: -1}); err == nil {
		t.Error("Expected error for negative learning rate")
	}
}

// TestSGDStepIsAscent tests that a step adds exactly lr*g
func TestSGDStepIsAscent(t *testing.T) {
	sgd, err := NewSGDOptimizer(SGDConfig{LearningRate: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	p := testParams(t)
	before := p.Clone()

	if err := sgd.Step(p, onesLike(t, p)); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	for i, w := range p.Weights.Data {
		if w != before.Weights.Data[i]+0.5 {
			t.Errorf("W[%d] = %v, expected %v", i, w, before.Weights.Data[i]+0.5)
		}
	}
	if p.Visible.Data[1] != 0.75 || p.Hidden.Data[0] != 0 {
		t.Errorf("Unexpected biases a=%v b=%v", p.Visible.Data, p.Hidden.Data)
	}
	if sgd.GetStepCount() != 1 {
		t.Errorf("Expected step count 1, got %d", sgd.GetStepCount())
	}
}

// TestSGDShapeMismatchLeavesParams tests that a rejected step mutates nothing
func TestSGDShapeMismatchLeavesParams(t *testing.T) {
	sgd, _ := NewSGDOptimizer(DefaultSGDConfig())
	p := testParams(t)
	before := p.Clone()

	g := onesLike(t, p)
	g.Hidden, _ = tensor.Ones(3)
	if err := sgd.Step(p, g); err == nil {
		t.Fatal("Expected error for mismatched hidden gradient")
	}
	if !p.Equal(before) {
		t.Error("Parameters changed after a rejected step")
	}
	if sgd.GetStepCount() != 0 {
		t.Errorf("Expected step count 0, got %d", sgd.GetStepCount())
	}
}

// TestZeroGradientStepLeavesParams chains the estimator into an update with
// a data batch equal to the model sample.
func TestZeroGradientStepLeavesParams(t *testing.T) {
	p := testParams(t)
	p.Weights.Data[0] = 1.5
	before := p.Clone()

	seed, _ := tensor.FromRows([][]float64{{1, 0, 1, 0}, {0, 1, 1, 1}})
	model, err := rbm.GibbsSample(seed, p, random.NewKey(5), 1)
	if err != nil {
		t.Fatal(err)
	}
	grads, err := rbm.Contrast(model, model.Clone(), p)
	if err != nil {
		t.Fatal(err)
	}

	sgd, _ := NewSGDOptimizer(SGDConfig{LearningRate: 0.1})
	if err := sgd.Step(p, grads); err != nil {
		t.Fatal(err)
	}
	if !p.Equal(before) {
		t.Error("Zero-gradient step changed the parameters")
	}
}

// TestSGDStateRoundTrip tests state save/restore through JSON
func TestSGDStateRoundTrip(t *testing.T) {
	sgd, _ := NewSGDOptimizer(SGDConfig{LearningRate: 0.05})
	p := testParams(t)
	for i := 0; i < 3; i++ {
		if err := sgd.Step(p, onesLike(t, p)); err != nil {
			t.Fatal(err)
		}
	}
	sgd.UpdateLearningRate(0.02)

	state, err := sgd.GetState()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	var decoded OptimizerState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	restored, _ := NewSGDOptimizer(DefaultSGDConfig())
	if err := restored.LoadState(&decoded); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if restored.GetLearningRate() != 0.02 || restored.GetStepCount() != 3 {
		t.Errorf("Restored lr=%v steps=%d, expected 0.02 and 3", restored.GetLearningRate(), restored.GetStepCount())
	}

	t.Run("Wrong type", func(t *testing.T) {
		if err := restored.LoadState(&OptimizerState{Type: "Adam"}); err == nil {
			t.Error("Expected error for mismatched state type")
		}
	})

	t.Run("Descent rejected", func(t *testing.T) {
		bad := &OptimizerState{Type: "SGD", Parameters: map[string]interface{}{"ascent": false}}
		if err := restored.LoadState(bad); err == nil {
			t.Error("Expected error for descent state")
		}
	})
}

// TestExtractParams tests the state map helpers
func TestExtractParams(t *testing.T) {
	params := map[string]interface{}{
		"learning_rate": float64(0.01),
		"step_count":    float64(12),
		"ascent":        true,
		"wrong":         "0.01",
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"float64_present", extractFloat64Param(params, "learning_rate", 1), 0.01},
		{"float64_wrong_type", extractFloat64Param(params, "wrong", 1), 1.0},
		{"uint64_from_float", extractUint64Param(params, "step_count", 0), uint64(12)},
		{"uint64_missing", extractUint64Param(params, "missing", 7), uint64(7)},
		{"bool_present", extractBoolParam(params, "ascent", false), true},
		{"bool_missing", extractBoolParam(params, "missing", false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.expected) {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

var _ Optimizer = (*SGDOptimizerState)(nil)
