package cpu

import (
	"math"

	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/floats"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Sum returns the sum of all elements as a scalar tensor (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult("sum", tensor.Shape{})
	result.Data()[0] = floats.Sum(x.Data())
	return result
}

// reduceLayout splits shape around dim into (outer, size, inner) and builds the output shape.
func reduceLayout(op string, shape tensor.Shape, dim int, keepDim bool) (outer, size, inner int, outShape tensor.Shape) {
	dim, err := shape.NormalizeDim(dim)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	size = shape[dim]

	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, len(shape)-1)
		for i := range shape {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}
	return outer, size, inner, outShape
}

// reduceDim folds values along dim with fn, starting from the first element.
func reduceDim(op string, x *tensor.RawTensor, dim int, keepDim bool, fn func(acc, v float64, j int) float64, first func(v float64) float64) *tensor.RawTensor {
	outer, size, inner, outShape := reduceLayout(op, x.Shape(), dim, keepDim)
	result := newResult(op, outShape)

	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*size*inner + i
			acc := first(src[base])
			for j := 1; j < size; j++ {
				acc = fn(acc, src[base+j*inner], j)
			}
			dst[o*inner+i] = acc
		}
	}
	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	y := backend.SumDim(x, -1, true)   // [2, 3, 4] -> [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // [2, 3, 4] -> [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return reduceDim("sumdim", x, dim, keepDim,
		func(acc, v float64, _ int) float64 { return acc + v },
		func(v float64) float64 { return v })
}

// MaxDim returns the maximum along the specified dimension.
func (cpu *CPUBackend) MaxDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return reduceDim("maxdim", x, dim, keepDim,
		func(acc, v float64, _ int) float64 { return math.Max(acc, v) },
		func(v float64) float64 { return v })
}

// Argmax returns the index of the maximum value along dim (dimension removed).
// Ties resolve to the first index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	outer, size, inner, outShape := reduceLayout("argmax", x.Shape(), dim, false)
	result := newResult("argmax", outShape)

	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*size*inner + i
			best, bestIdx := src[base], 0
			for j := 1; j < size; j++ {
				if v := src[base+j*inner]; v > best {
					best, bestIdx = v, j
				}
			}
			dst[o*inner+i] = float64(bestIdx)
		}
	}
	return result
}
