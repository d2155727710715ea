// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/ffnet-ml/ffnet/internal/tensor"

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: Pure Go, with gonum for matrix products
//
// Example:
//
//	import (
//	    "github.com/ffnet-ml/ffnet/tensor"
//	    "github.com/ffnet-ml/ffnet/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
type Backend = tensor.Backend

// BroadcastShapes returns the shape two operands broadcast to, and whether
// broadcasting was needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
