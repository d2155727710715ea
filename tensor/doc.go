// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides float64 tensors for the ffnet framework.
//
// # Overview
//
// Tensors are the fundamental data structure in ffnet. This package provides:
//   - Tensor[B], a row-major float64 tensor bound to a compute backend
//   - NumPy-style broadcasting for elementwise operations
//   - Batched matrix products ([B,M,K] @ [B,K,N])
//
// # Basic Usage
//
//	import (
//	    "github.com/ffnet-ml/ffnet/tensor"
//	    "github.com/ffnet-ml/ffnet/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones(tensor.Shape{2, 3}, backend)
//
//	    z := x.Add(y)
//	    w := z.MatMul(y.T())
//	}
//
// # Broadcasting
//
// Elementwise operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros(tensor.Shape{3, 1}, backend)  // (3, 1)
//	b := tensor.Ones(tensor.Shape{3, 4}, backend)   // (3, 4)
//	c := a.Add(b)                                   // (3, 4)
//
// # Errors
//
// Shape violations inside tensor operations panic with an error value.
// The nn package recovers them and returns them as errors from the layer
// that caused them.
package tensor
