package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/ffnet-ml/ffnet/internal/parallel"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// batchMatMulGrain is the minimum number of multiply-adds per goroutine.
const batchMatMulGrain = 1 << 15

// BatchMatMul performs batched matrix multiplication.
//
// [B, M, K] @ [B, K, N] -> [B, M, N]
//
// Each batch is an independent gonum product over a sub-slice of the inputs;
// batches are spread over goroutines once there is enough work.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 3 || len(bShape) != 3 {
		exceptions.Panicf("batchmatmul: expected 3D tensors, got %dD and %dD", len(aShape), len(bShape))
	}

	batch, m, k := aShape[0], aShape[1], aShape[2]
	if bShape[0] != batch {
		exceptions.Panicf("batchmatmul: batch size mismatch %d vs %d", batch, bShape[0])
	}
	if bShape[1] != k {
		exceptions.Panicf("batchmatmul: shape mismatch [%d,%d,%d] @ [%d,%d,%d]",
			batch, m, k, bShape[0], bShape[1], bShape[2])
	}
	n := bShape[2]

	result := newResult("batchmatmul", tensor.Shape{batch, m, n})
	cData, aData, bData := result.Data(), a.Data(), b.Data()
	parallel.For(batch, func(i int) {
		matmulFloat64(
			cData[i*m*n:(i+1)*m*n],
			aData[i*m*k:(i+1)*m*k],
			bData[i*k*n:(i+1)*k*n],
			m, k, n,
		)
	}, cpu.parallel.WithGrain(m*k*n, batchMatMulGrain))

	return result
}
