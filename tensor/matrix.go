package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix returns a gonum view sharing t's storage. Vectors are viewed as a
// single row.
func (t *Tensor) Matrix() *mat.Dense {
	return mat.NewDense(t.Rows(), t.Cols(), t.Data)
}

func checkMatrix(name string, t *Tensor) error {
	if t.Rank() != 2 {
		return fmt.Errorf("%s requires a 2 dimensional tensor, got shape %v", name, t.Shape)
	}
	return nil
}

// MatMul returns t1·t2 for matrices of shape (m,k) and (k,n).
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkMatrix("matmul", t1); err != nil {
		return nil, err
	}
	if err := checkMatrix("matmul", t2); err != nil {
		return nil, err
	}

	rows1, cols1 := t1.Shape[0], t1.Shape[1]
	rows2, cols2 := t2.Shape[0], t2.Shape[1]
	if cols1 != rows2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", rows1, cols1, rows2, cols2)
	}

	result, err := Zeros(rows1, cols2)
	if err != nil {
		return nil, err
	}
	result.Matrix().Mul(t1.Matrix(), t2.Matrix())
	return result, nil
}

// MatMulTransB returns t1·t2ᵀ for matrices of shape (m,k) and (n,k).
func MatMulTransB(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkMatrix("matmul", t1); err != nil {
		return nil, err
	}
	if err := checkMatrix("matmul", t2); err != nil {
		return nil, err
	}
	if t1.Shape[1] != t2.Shape[1] {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)ᵀ",
			t1.Shape[0], t1.Shape[1], t2.Shape[0], t2.Shape[1])
	}

	result, err := Zeros(t1.Shape[0], t2.Shape[0])
	if err != nil {
		return nil, err
	}
	result.Matrix().Mul(t1.Matrix(), t2.Matrix().T())
	return result, nil
}

// MatMulTransA returns t1ᵀ·t2 for matrices of shape (k,m) and (k,n).
func MatMulTransA(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkMatrix("matmul", t1); err != nil {
		return nil, err
	}
	if err := checkMatrix("matmul", t2); err != nil {
		return nil, err
	}
	if t1.Shape[0] != t2.Shape[0] {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d)ᵀ x (%d, %d)",
			t1.Shape[0], t1.Shape[1], t2.Shape[0], t2.Shape[1])
	}

	result, err := Zeros(t1.Shape[1], t2.Shape[1])
	if err != nil {
		return nil, err
	}
	result.Matrix().Mul(t1.Matrix().T(), t2.Matrix())
	return result, nil
}

// AddRowVector adds vector v to every row of matrix m in place.
func AddRowVector(m, v *Tensor) error {
	if err := checkMatrix("AddRowVector", m); err != nil {
		return err
	}
	if v.Rank() != 1 || v.Shape[0] != m.Shape[1] {
		return fmt.Errorf("cannot broadcast vector of shape %v over rows of %v", v.Shape, m.Shape)
	}
	cols := m.Shape[1]
	for i := 0; i < m.Shape[0]; i++ {
		row := m.Data[i*cols : (i+1)*cols]
		for j, b := range v.Data {
			row[j] += b
		}
	}
	return nil
}

// MeanRows returns the column-wise mean of a matrix as a vector, i.e. the
// average over the batch dimension.
func MeanRows(m *Tensor) (*Tensor, error) {
	if err := checkMatrix("MeanRows", m); err != nil {
		return nil, err
	}
	rows, cols := m.Shape[0], m.Shape[1]
	result, err := Zeros(cols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < rows; i++ {
		row := m.Data[i*cols : (i+1)*cols]
		for j, v := range row {
			result.Data[j] += v
		}
	}
	inv := 1 / float64(rows)
	for j := range result.Data {
		result.Data[j] *= inv
	}
	return result, nil
}

// Transpose returns a copy of matrix t with rows and columns swapped.
func Transpose(t *Tensor) (*Tensor, error) {
	if err := checkMatrix("transpose", t); err != nil {
		return nil, err
	}
	result, err := Zeros(t.Shape[1], t.Shape[0])
	if err != nil {
		return nil, err
	}
	result.Matrix().Copy(t.Matrix().T())
	return result, nil
}

// GatherRows copies the given rows of m into a new matrix.
func GatherRows(m *Tensor, index []int) (*Tensor, error) {
	if err := checkMatrix("GatherRows", m); err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("GatherRows requires at least one index")
	}
	rows, cols := m.Shape[0], m.Shape[1]
	result, err := Zeros(len(index), cols)
	if err != nil {
		return nil, err
	}
	for i, ix := range index {
		if ix < 0 || ix >= rows {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", ix, rows)
		}
		copy(result.Data[i*cols:(i+1)*cols], m.Data[ix*cols:(ix+1)*cols])
	}
	return result, nil
}
