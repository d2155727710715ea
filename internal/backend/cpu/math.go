package cpu

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// unaryOp applies fn element-wise into a new tensor.
func unaryOp(op string, x *tensor.RawTensor, fn func(float64) float64) *tensor.RawTensor {
	result := newResult(op, x.Shape())
	dst := result.Data()
	for i, v := range x.Data() {
		dst[i] = fn(v)
	}
	return result
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := newResult("addscalar", x.Shape())
	dst := result.Data()
	copy(dst, x.Data())
	floats.AddConst(scalar, dst)
	return result
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := newResult("mulscalar", x.Shape())
	floats.ScaleTo(result.Data(), scalar, x.Data())
	return result
}

// Maximum computes max(x, scalar) element-wise.
func (cpu *CPUBackend) Maximum(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return unaryOp("maximum", x, func(v float64) float64 { return math.Max(v, scalar) })
}

// GreaterScalar returns 1 where x > scalar and 0 elsewhere.
func (cpu *CPUBackend) GreaterScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return unaryOp("greater", x, func(v float64) float64 {
		if v > scalar {
			return 1
		}
		return 0
	})
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp("log", x, math.Log)
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp("sqrt", x, math.Sqrt)
}

// Abs computes |x| element-wise.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp("abs", x, math.Abs)
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp("tanh", x, math.Tanh)
}
