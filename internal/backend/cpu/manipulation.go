package cpu

import (
	"github.com/gomlx/exceptions"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Reshape returns a copy of t with a new shape of the same element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != t.NumElements() {
		exceptions.Panicf("reshape: cannot reshape %v (%d elements) into %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements())
	}
	result := newResult("reshape", newShape)
	copy(result.Data(), t.Data())
	return result
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		exceptions.Panicf("transpose: expected 2D tensor, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	result := newResult("transpose", tensor.Shape{cols, rows})
	src, dst := t.Data(), result.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
//
// Example:
//
//	a: [2, 3], b: [2, 5] -> Cat([a, b], 1): [2, 8]
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		exceptions.Panicf("cat: no tensors given")
	}
	first := tensors[0].Shape()
	dim, err := first.NormalizeDim(dim)
	if err != nil {
		exceptions.Panicf("cat: %v", err)
	}

	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		shape := t.Shape()
		if len(shape) != len(first) {
			exceptions.Panicf("cat: rank mismatch %v vs %v", first, shape)
		}
		for i := range shape {
			if i != dim && shape[i] != first[i] {
				exceptions.Panicf("cat: shape mismatch %v vs %v on axis %d", first, shape, i)
			}
		}
		outShape[dim] += shape[dim]
	}

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= first[i]
	}
	for i := dim + 1; i < len(first); i++ {
		inner *= first[i]
	}

	result := newResult("cat", outShape)
	dst := result.Data()
	pos := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			chunk := t.Shape()[dim] * inner
			copy(dst[pos:pos+chunk], t.Data()[o*chunk:(o+1)*chunk])
			pos += chunk
		}
	}
	return result
}
