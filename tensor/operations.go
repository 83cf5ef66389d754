package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

func checkShapesCompatible(shape1, shape2 []int) ([]int, error) {
	if len(shape1) == 0 || len(shape2) == 0 {
		return nil, fmt.Errorf("cannot operate on empty tensors")
	}

	if len(shape1) != len(shape2) {
		return nil, fmt.Errorf("tensor shapes must have same number of dimensions: %v vs %v", shape1, shape2)
	}

	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return nil, fmt.Errorf("tensor shapes must match: %v vs %v", shape1, shape2)
		}
	}

	return shape1, nil
}

// SameShape reports whether two tensors have identical shapes.
func SameShape(t1, t2 *Tensor) bool {
	_, err := checkShapesCompatible(t1.Shape, t2.Shape)
	return err == nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape...)
	if err != nil {
		return nil, err
	}
	floats.AddTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape...)
	if err != nil {
		return nil, err
	}
	floats.SubTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape...)
	if err != nil {
		return nil, err
	}
	floats.MulTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

// Scale returns alpha*t.
func Scale(alpha float64, t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape...)
	if err != nil {
		return nil, err
	}
	floats.ScaleTo(result.Data, alpha, t.Data)
	return result, nil
}

// ScaleInPlace multiplies every element of t by alpha.
func ScaleInPlace(alpha float64, t *Tensor) {
	floats.Scale(alpha, t.Data)
}

// Axpy performs y <- alpha*x + y in place.
func Axpy(alpha float64, x, y *Tensor) error {
	if _, err := checkShapesCompatible(x.Shape, y.Shape); err != nil {
		return err
	}
	floats.AddScaled(y.Data, alpha, x.Data)
	return nil
}

// Sigmoid applies the logistic function elementwise.
func Sigmoid(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape...)
	if err != nil {
		return nil, err
	}
	SigmoidInPlace(result.Data, t.Data)
	return result, nil
}

// SigmoidInPlace writes sigmoid(src) into dst. dst and src may alias.
func SigmoidInPlace(dst, src []float64) {
	for i, x := range src {
		dst[i] = sigmoid(x)
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Softplus returns log(1+exp(x)) without overflowing for large x.
func Softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 {
	return floats.Sum(t.Data)
}

// Mean returns the mean of all elements.
func Mean(t *Tensor) float64 {
	return floats.Sum(t.Data) / float64(t.NumElems)
}

// MaxAbsDiff returns the largest elementwise |t1-t2|.
func MaxAbsDiff(t1, t2 *Tensor) (float64, error) {
	if _, err := checkShapesCompatible(t1.Shape, t2.Shape); err != nil {
		return 0, err
	}
	var max float64
	for i, v := range t1.Data {
		if d := math.Abs(v - t2.Data[i]); d > max {
			max = d
		}
	}
	return max, nil
}

// Equal reports whether two tensors have the same shape and identical values.
func Equal(t1, t2 *Tensor) bool {
	if !SameShape(t1, t2) {
		return false
	}
	return floats.Equal(t1.Data, t2.Data)
}
