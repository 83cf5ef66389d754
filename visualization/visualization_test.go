package visualization

import (
	"bytes"
	"image/png"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/tsawler/go-boltzmann/dataset"
	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
	"github.com/tsawler/go-boltzmann/training"
)

// TestSampleGrid tests tile placement and pixel values
func TestSampleGrid(t *testing.T) {
	samples, _ := tensor.FromRows([][]float64{
		{1, 0, 0, 1},
		{0, 1, 1, 0},
		{1, 1, 1, 1},
	})
	layout := GridLayout{Width: 2, Height: 2, Cols: 2, Scale: 1, Border: 1}

	img, err := SampleGrid(samples, layout)
	if err != nil {
		t.Fatalf("Failed to draw grid: %v", err)
	}
	// 2 columns and 2 rows of 2x2 tiles with 1 pixel borders
	if b := img.Bounds(); b.Dx() != 7 || b.Dy() != 7 {
		t.Fatalf("Expected 7x7 image, got %dx%d", b.Dx(), b.Dy())
	}

	tests := []struct {
		x, y     int
		expected uint8
	}{
		{0, 0, 128}, // border
		{1, 1, 255}, // sample 0, pixel (0,0)
		{2, 1, 0},   // sample 0, pixel (1,0)
		{4, 1, 0},   // sample 1, pixel (0,0)
		{5, 1, 255}, // sample 1, pixel (1,0)
		{1, 4, 255}, // sample 2
		{4, 4, 128}, // empty fourth tile stays gray
	}
	for _, tt := range tests {
		if got := img.GrayAt(tt.x, tt.y).Y; got != tt.expected {
			t.Errorf("Pixel (%d,%d): expected %d, got %d", tt.x, tt.y, tt.expected, got)
		}
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("Expected bounds %v, got %v", img.Bounds(), decoded.Bounds())
	}
}

// TestSampleGridErrors tests layouts that do not match the samples
func TestSampleGridErrors(t *testing.T) {
	samples, _ := tensor.Zeros(2, 6)
	if _, err := SampleGrid(samples, GridLayout{Width: 2, Height: 2, Cols: 1}); err == nil {
		t.Error("Expected error for tile size mismatch")
	}
	if _, err := SampleGrid(samples, GridLayout{Width: 3, Height: 2, Cols: 0}); err == nil {
		t.Error("Expected error for zero columns")
	}

	vector, _ := tensor.Vector(1, 0, 0, 1)
	img, err := SampleGrid(vector, GridLayout{Width: 2, Height: 2, Cols: 4, Scale: 3})
	if err != nil {
		t.Fatalf("Expected vector to draw as one tile, got %v", err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 6 {
		t.Errorf("Expected 6x6 image, got %dx%d", b.Dx(), b.Dy())
	}
}

// TestWeightFilters tests per-filter normalisation
func TestWeightFilters(t *testing.T) {
	p, _ := rbm.ZeroParams(4, 2)
	// hidden unit 0 gets weights 0..3, unit 1 stays constant
	for i := 0; i < 4; i++ {
		p.Weights.Data[i*2] = float64(i)
	}

	img, err := WeightFilters(p, GridLayout{Width: 2, Height: 2, Cols: 2, Scale: 1})
	if err != nil {
		t.Fatalf("Failed to draw filters: %v", err)
	}
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(1, 1).Y != 255 {
		t.Errorf("Expected filter 0 scaled to [0, 255], got %d and %d", img.GrayAt(0, 0).Y, img.GrayAt(1, 1).Y)
	}
	if img.GrayAt(2, 0).Y != 128 {
		t.Errorf("Expected constant filter drawn mid gray, got %d", img.GrayAt(2, 0).Y)
	}
}

func trainSmall(t *testing.T, epochs int, observers ...training.EpochObserver) *training.Trainer {
	t.Helper()
	rows := make([][]float64, 32)
	for i := range rows {
		rows[i] = make([]float64, 16)
		for j := range rows[i] {
			if (i+j)%3 == 0 {
				rows[i][j] = 1
			}
		}
	}
	ds, err := dataset.FromRows(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := training.DefaultConfig()
	cfg.NumEpochs = epochs
	cfg.BatchSize = 8
	cfg.NumHidden = 4
	tr, err := training.NewTrainer(ds, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	tr.SetOutput(io.Discard)
	for _, o := range observers {
		tr.AddObserver(o)
	}
	if _, err := tr.Train(); err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	return tr
}

// TestGridWriter tests PNG files are written per epoch
func TestGridWriter(t *testing.T) {
	dir := t.TempDir()
	gw := NewGridWriter(dir, GridLayout{Width: 4, Height: 4, Cols: 4, Scale: 2, Border: 1})
	gw.Every = 2
	gw.Filters = true
	gw.MaxRows = 4

	trainSmall(t, 4, gw)

	for _, epoch := range []int{2, 4} {
		for _, path := range []string{gw.SamplesPath(epoch), gw.FiltersPath(epoch)} {
			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("Expected %s to exist: %v", path, err)
			}
			if _, err := png.Decode(f); err != nil {
				t.Errorf("Invalid PNG %s: %v", path, err)
			}
			f.Close()
		}
	}
	if _, err := os.Stat(gw.SamplesPath(1)); !os.IsNotExist(err) {
		t.Error("Expected no samples for epoch 1")
	}

	f, _ := os.Open(gw.SamplesPath(2))
	defer f.Close()
	img, _ := png.Decode(f)
	// 4 tiles of 8x8 in one row with 1 pixel borders
	if b := img.Bounds(); b.Dx() != 37 || b.Dy() != 10 {
		t.Errorf("Expected 37x10 sample grid, got %dx%d", b.Dx(), b.Dy())
	}
}

// TestWriteCurves tests training curve rendering
func TestWriteCurves(t *testing.T) {
	tr := trainSmall(t, 3)

	var svg bytes.Buffer
	if err := WriteCurves(&svg, tr.History(), "svg", 400, 300, training.ReconstructionError, training.HiddenSaturation); err != nil {
		t.Fatalf("Failed to write SVG: %v", err)
	}
	if !strings.Contains(svg.String(), "<svg") {
		t.Error("Expected SVG output")
	}

	var pngBuf bytes.Buffer
	if err := WriteCurves(&pngBuf, tr.History(), "png", 200, 150); err != nil {
		t.Fatalf("Failed to write PNG: %v", err)
	}
	if _, err := png.Decode(&pngBuf); err != nil {
		t.Errorf("Invalid PNG curves: %v", err)
	}

	if err := WriteCurves(io.Discard, tr.History(), "bmp", 100, 100); err == nil {
		t.Error("Expected error for unsupported format")
	}

	var empty bytes.Buffer
	if err := WriteCurves(&empty, &training.History{}, "svg", 100, 100); err != nil {
		t.Errorf("Expected empty history to render, got %v", err)
	}
}
