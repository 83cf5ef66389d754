package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/tsawler/go-boltzmann/tensor"
	"github.com/tsawler/go-boltzmann/training"
)

// GridWriter is a training.EpochObserver that saves the epoch's model
// samples, and optionally the weight filters, as PNG files in Dir.
type GridWriter struct {
	Dir     string
	Layout  GridLayout
	Every   int  // write every Every epochs; 0 or 1 writes every epoch
	Filters bool // also write the weight filters
	MaxRows int  // limit on sample rows drawn; 0 draws all
}

// NewGridWriter creates a writer for dir that tiles samples with layout.
func NewGridWriter(dir string, layout GridLayout) *GridWriter {
	return &GridWriter{Dir: dir, Layout: layout, Every: 1}
}

// ObserveEpoch writes samples_<epoch>.png and filters_<epoch>.png
func (g *GridWriter) ObserveEpoch(s training.EpochSummary) error {
	epoch := s.Metrics.Epoch + 1
	if g.Every > 1 && epoch%g.Every != 0 {
		return nil
	}
	if err := os.MkdirAll(g.Dir, 0755); err != nil {
		return err
	}

	if s.ModelSample != nil {
		samples := s.ModelSample
		if g.MaxRows > 0 && samples.Rows() > g.MaxRows {
			var err error
			if samples, err = tensor.NewTensor([]int{g.MaxRows, samples.Cols()}, samples.Data[:g.MaxRows*samples.Cols()]); err != nil {
				return err
			}
		}
		img, err := SampleGrid(samples, g.Layout)
		if err != nil {
			return err
		}
		if err := savePNG(g.SamplesPath(epoch), img); err != nil {
			return err
		}
	}

	if g.Filters && s.Params != nil {
		img, err := WeightFilters(s.Params, g.Layout)
		if err != nil {
			return err
		}
		if err := savePNG(g.FiltersPath(epoch), img); err != nil {
			return err
		}
	}
	return nil
}

// SamplesPath is the file written for epoch (counted from 1).
func (g *GridWriter) SamplesPath(epoch int) string {
	return filepath.Join(g.Dir, fmt.Sprintf("samples_%04d.png", epoch))
}

// FiltersPath is the filter image written for epoch (counted from 1).
func (g *GridWriter) FiltersPath(epoch int) string {
	return filepath.Join(g.Dir, fmt.Sprintf("filters_%04d.png", epoch))
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %v", path, err)
	}
	return f.Close()
}
