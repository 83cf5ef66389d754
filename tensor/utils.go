package tensor

import (
	"fmt"
)

// Reshape returns a tensor with the same data but a different shape.
// The new shape must have the same total number of elements; a single -1
// dimension is inferred.
func (t *Tensor) Reshape(newShape ...int) (*Tensor, error) {
	shape := make([]int, len(newShape))
	copy(shape, newShape)

	newNumElems := 1
	negOneIdx := -1
	for i, dim := range shape {
		switch {
		case dim == -1:
			if negOneIdx >= 0 {
				return nil, fmt.Errorf("only one dimension can be -1")
			}
			negOneIdx = i
		case dim <= 0:
			return nil, fmt.Errorf("dimension %d has invalid size %d", i, dim)
		default:
			newNumElems *= dim
		}
	}

	if negOneIdx >= 0 {
		if t.NumElems%newNumElems != 0 {
			return nil, fmt.Errorf("cannot reshape tensor of size %d into shape with -1: size must be divisible by %d", t.NumElems, newNumElems)
		}
		shape[negOneIdx] = t.NumElems / newNumElems
		newNumElems = t.NumElems
	}

	if newNumElems != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of size %d into shape %v (size %d)", t.NumElems, shape, newNumElems)
	}

	// Share the same underlying data
	return NewTensor(shape, t.Data)
}

func (t *Tensor) Clone() *Tensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	strides := make([]int, len(t.Strides))
	copy(strides, t.Strides)
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return &Tensor{
		Shape:    shape,
		Strides:  strides,
		Data:     data,
		NumElems: t.NumElems,
	}
}

// CopyFrom overwrites t's values with src's. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if _, err := checkShapesCompatible(t.Shape, src.Shape); err != nil {
		return err
	}
	copy(t.Data, src.Data)
	return nil
}

// IsBinary reports whether every element is exactly 0 or 1.
func (t *Tensor) IsBinary() bool {
	for _, v := range t.Data {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}

// InUnitInterval reports whether every element lies in [0,1].
func (t *Tensor) InUnitInterval() bool {
	for _, v := range t.Data {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}
