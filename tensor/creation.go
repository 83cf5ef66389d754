package tensor

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// NewTensor wraps data in a tensor of the given shape. A nil data slice
// allocates zeroed storage; otherwise the slice is used without copying.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	if data == nil {
		data = make([]float64, numElems)
	}
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match tensor size %d", len(data), numElems)
	}

	s := make([]int, len(shape))
	copy(s, shape)

	return &Tensor{
		Shape:    s,
		Strides:  calculateStrides(s),
		Data:     data,
		NumElems: numElems,
	}, nil
}

func Zeros(shape ...int) (*Tensor, error) {
	return NewTensor(shape, nil)
}

func Ones(shape ...int) (*Tensor, error) {
	return Full(1, shape...)
}

// Full returns a tensor with every element set to value.
func Full(value float64, shape ...int) (*Tensor, error) {
	t, err := NewTensor(shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t, nil
}

// RandomNormal fills a tensor with draws from N(mean, std²) using rng.
func RandomNormal(rng *rand.Rand, mean, std float64, shape ...int) (*Tensor, error) {
	if rng == nil {
		return nil, fmt.Errorf("RandomNormal requires a random source")
	}
	t, err := NewTensor(shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()*std + mean
	}
	return t, nil
}

// FromRows stacks equal-length rows into a matrix. The rows are copied.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("FromRows requires at least one row")
	}
	cols := len(rows[0])
	t, err := Zeros(len(rows), cols)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has length %d, expected %d", i, len(row), cols)
		}
		copy(t.Data[i*cols:], row)
	}
	return t, nil
}

// Vector returns a rank 1 tensor holding a copy of values.
func Vector(values ...float64) (*Tensor, error) {
	data := make([]float64, len(values))
	copy(data, values)
	return NewTensor([]int{len(values)}, data)
}
