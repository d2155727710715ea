// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// RawTensor is the low-level tensor representation: contiguous row-major
// float64 data, a shape and its strides.
//
// Most users should use the high-level Tensor[B] type instead. Checkpoints
// (state dicts) are maps of RawTensor keyed by parameter name.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3})
//	data := raw.Data()
//	clone := raw.Clone()
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled RawTensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	return tensor.NewRaw(shape)
}

// NewRawFrom wraps data (without copying) into a RawTensor.
func NewRawFrom(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.NewRawFrom(data, shape)
}
