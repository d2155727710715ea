// Package cpu implements the CPU backend, with matrix products delegated to gonum.
package cpu

import (
	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/floats"

	"github.com/ffnet-ml/ffnet/internal/parallel"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	parallel parallel.Config
}

var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a new CPU backend. Batched products are spread over all CPUs.
func New() *CPUBackend {
	return &CPUBackend{parallel: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with the given parallelism.
// parallel.Sequential() keeps every operation in the calling goroutine.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{parallel: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// newResult allocates an output tensor, panicking with an error on invalid shapes.
func newResult(op string, shape tensor.Shape) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape)
	if err != nil {
		exceptions.Panicf("%s: failed to create result tensor: %v", op, err)
	}
	return result
}

// binaryOp applies an element-wise operation with NumPy-style broadcasting.
// Same-shape operands take the vectorized gonum path.
func binaryOp(op string, a, b *tensor.RawTensor, vectorized func(dst, s, t []float64) []float64, scalar func(x, y float64) float64) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	result := newResult(op, outShape)
	if !needsBroadcast {
		vectorized(result.Data(), a.Data(), b.Data())
		return result
	}

	applyWithBroadcast(result, a, b, scalar)
	return result
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("add", a, b, floats.AddTo, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("sub", a, b, floats.SubTo, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("mul", a, b, floats.MulTo, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("div", a, b, floats.DivTo, func(x, y float64) float64 { return x / y })
}
