// Package visualization renders RBM samples, weight filters and training
// curves as images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"gonum.org/v1/gonum/floats"

	"github.com/tsawler/go-boltzmann/rbm"
	"github.com/tsawler/go-boltzmann/tensor"
)

// GridLayout describes how rows of a batch are tiled into an image.
type GridLayout struct {
	Width, Height int // tile size in pixels; Width*Height must equal the row length
	Cols          int // tiles per image row
	Scale         int // each value becomes a Scale x Scale block
	Border        int // pixels between tiles
}

// MNISTLayout tiles 28x28 digits ten to a row.
func MNISTLayout() GridLayout {
	return GridLayout{Width: 28, Height: 28, Cols: 10, Scale: 2, Border: 1}
}

func (g GridLayout) validate(rowLen int) error {
	if g.Width <= 0 || g.Height <= 0 || g.Cols <= 0 {
		return fmt.Errorf("invalid grid layout %+v", g)
	}
	if g.Width*g.Height != rowLen {
		return fmt.Errorf("tile %dx%d does not match row length %d", g.Width, g.Height, rowLen)
	}
	return nil
}

// SampleGrid draws every row of samples, whose values lie in [0, 1], as a
// gray tile. 1 is white.
func SampleGrid(samples *tensor.Tensor, layout GridLayout) (*image.Gray, error) {
	if samples.Rank() == 1 {
		var err error
		if samples, err = samples.Reshape(1, samples.Shape[0]); err != nil {
			return nil, err
		}
	}
	if samples.Rank() != 2 {
		return nil, fmt.Errorf("samples must be a matrix, got shape %v", samples.Shape)
	}
	if err := layout.validate(samples.Cols()); err != nil {
		return nil, err
	}
	tiles := make([][]float64, samples.Rows())
	for i := range tiles {
		tiles[i] = samples.Row(i)
	}
	return drawTiles(tiles, layout), nil
}

// WeightFilters draws the incoming weights of each hidden unit as a tile,
// each rescaled to its own min and max.
func WeightFilters(p *rbm.Params, layout GridLayout) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	nv, nh := p.NumVisible(), p.NumHidden()
	if err := layout.validate(nv); err != nil {
		return nil, err
	}
	w := p.Weights.Matrix()
	tiles := make([][]float64, nh)
	for j := range tiles {
		col := make([]float64, nv)
		for i := range col {
			col[i] = w.At(i, j)
		}
		normalize(col)
		tiles[j] = col
	}
	return drawTiles(tiles, layout), nil
}

func normalize(x []float64) {
	lo, hi := floats.Min(x), floats.Max(x)
	if hi == lo {
		for i := range x {
			x[i] = 0.5
		}
		return
	}
	floats.AddConst(-lo, x)
	floats.Scale(1/(hi-lo), x)
}

func drawTiles(tiles [][]float64, g GridLayout) *image.Gray {
	scale := g.Scale
	if scale < 1 {
		scale = 1
	}
	cols := g.Cols
	if len(tiles) < cols {
		cols = len(tiles)
	}
	if cols == 0 {
		cols = 1
	}
	rows := (len(tiles) + cols - 1) / cols
	tw, th := g.Width*scale, g.Height*scale
	img := image.NewGray(image.Rect(0, 0,
		cols*tw+(cols+1)*g.Border,
		rows*th+(rows+1)*g.Border))
	// borders stay mid gray
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	for n, tile := range tiles {
		x0 := g.Border + (n%cols)*(tw+g.Border)
		y0 := g.Border + (n/cols)*(th+g.Border)
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				c := color.Gray{Y: gray(tile[y*g.Width+x])}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						img.SetGray(x0+x*scale+dx, y0+y*scale+dy, c)
					}
				}
			}
		}
	}
	return img
}

func gray(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// WritePNG encodes img as PNG
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
