// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - float64 storage
//   - NumPy-compatible broadcasting
//   - 2-D and batched matrix products through gonum's mat.Dense
//
// # Basic Usage
//
//	import (
//	    "github.com/ffnet-ml/ffnet/backend/cpu"
//	    "github.com/ffnet-ml/ffnet/nn"
//	    "github.com/ffnet-ml/ffnet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones(tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//
//	    layer := nn.NewLinear(3, 1, backend)
//	}
//
// # Thread Safety
//
// The CPU backend holds no mutable state and is safe for concurrent use.
// Each operation allocates its result.
package cpu
