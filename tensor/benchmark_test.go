package tensor

import (
	"fmt"
	"testing"

	"github.com/tsawler/go-boltzmann/random"
)

func formatShape(shape []int) string {
	return fmt.Sprint(shape)
}

func benchTensor(b *testing.B, seed int64, rows, cols int) *Tensor {
	t, err := RandomNormal(random.NewKey(seed).Rand(), 0, 1, rows, cols)
	if err != nil {
		b.Fatal(err)
	}
	return t
}

func BenchmarkZeros(b *testing.B) {
	shapes := [][]int{
		{100},
		{100, 100},
		{100, 784},
	}

	for _, shape := range shapes {
		b.Run(formatShape(shape), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := Zeros(shape...); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark the products used by the RBM conditionals and gradient
func BenchmarkMatMul(b *testing.B) {
	v := benchTensor(b, 1, 100, 784)
	w := benchTensor(b, 2, 784, 256)
	h := benchTensor(b, 3, 100, 256)

	b.Run("VW", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := MatMul(v, w); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("HWt", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := MatMulTransB(h, w); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("VtH", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := MatMulTransA(v, h); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkSigmoid(b *testing.B) {
	x := benchTensor(b, 4, 100, 256)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SigmoidInPlace(x.Data, x.Data)
	}
}
