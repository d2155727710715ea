package cpu

import (
	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/mat"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
// The product itself runs through gonum's BLAS-backed mat.Dense.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		exceptions.Panicf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		exceptions.Panicf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	result := newResult("matmul", tensor.Shape{m, n})
	matmulFloat64(result.Data(), a.Data(), b.Data(), m, k, n)
	return result
}

// matmulFloat64 computes C = A @ B over row-major slices.
// The slices are wrapped (not copied) by mat.Dense.
func matmulFloat64(c, a, b []float64, m, k, n int) {
	dst := mat.NewDense(m, n, c)
	dst.Mul(mat.NewDense(m, k, a), mat.NewDense(k, n, b))
}
