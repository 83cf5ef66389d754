package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a dense, row-major float64 array. Rank 1 tensors hold vectors
// (biases, single configurations) and rank 2 tensors hold batches, one
// configuration per row.
type Tensor struct {
	Shape    []int
	Strides  []int
	Data     []float64
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elements=%d)", t.Shape, t.NumElems)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Rows returns the leading dimension of a matrix, or 1 for a vector.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 1 {
		return 1
	}
	return t.Shape[0]
}

// Cols returns the trailing dimension.
func (t *Tensor) Cols() int {
	return t.Shape[len(t.Shape)-1]
}

// Row returns a view of row i of a matrix. The slice aliases t.Data.
func (t *Tensor) Row(i int) []float64 {
	cols := t.Cols()
	return t.Data[i*cols : (i+1)*cols]
}

// Format renders the tensor values, eliding the middle of long dimensions.
func (t *Tensor) Format() string {
	const edge = 3
	var b strings.Builder
	rows, cols := t.Rows(), t.Cols()
	b.WriteString("[")
	for i := 0; i < rows; i++ {
		if rows > 2*edge+1 && i == edge {
			b.WriteString(" ...\n")
			i = rows - edge - 1
			continue
		}
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[")
		row := t.Data[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			if cols > 2*edge+1 && j == edge {
				b.WriteString(" ...")
				j = cols - edge - 1
				continue
			}
			fmt.Fprintf(&b, " %7.4f", row[j])
		}
		b.WriteString(" ]")
		if i < rows-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("]")
	return b.String()
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: at least one dimension is required")
	}
	if len(shape) > 2 {
		return fmt.Errorf("invalid shape %v: only vectors and matrices are supported", shape)
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
