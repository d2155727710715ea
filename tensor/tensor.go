// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a float64 tensor whose operations run on backend B.
//
// Example:
//
//	backend := cpu.New()
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x.T())
type Tensor[B Backend] = tensor.Tensor[B]

// New wraps raw into a Tensor on backend b.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return tensor.New(raw, b)
}

// FromSlice creates a tensor holding data (not copied) with the given shape.
func FromSlice[B Backend](data []float64, shape Shape, b B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Zeros(shape, b)
}

// ZerosLike creates a zero tensor shaped like t.
func ZerosLike[B Backend](t *Tensor[B]) *Tensor[B] {
	return tensor.ZerosLike(t)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Ones(shape, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float64, b B) *Tensor[B] {
	return tensor.Full(shape, value, b)
}

// Uniform draws values from U(low, high). A nil rng uses the global source.
func Uniform[B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Uniform(shape, low, high, rng, b)
}

// Randn draws values from N(mean, std). A nil rng uses the global source.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	x := tensor.Randn(tensor.Shape{2, 3}, 0, 1, rng, backend)
func Randn[B Backend](shape Shape, mean, std float64, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Randn(shape, mean, std, rng, b)
}

// OneHot converts integer class labels ([N] or [N, 1]) into an [N, classes]
// one-hot tensor.
func OneHot[B Backend](labels *Tensor[B], classes int) *Tensor[B] {
	return tensor.OneHot(labels, classes)
}

// Cat concatenates tensors along dim.
func Cat[B Backend](tensors []*Tensor[B], dim int) *Tensor[B] {
	return tensor.Cat(tensors, dim)
}
