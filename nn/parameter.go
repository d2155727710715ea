// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/tensor"
)

// ParamID is the stable identity of a Parameter, used by optimizers to key
// their running statistics.
type ParamID = nn.ParamID

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//
//	w := weight.Tensor()
//	// After a backward pass:
//	grad := weight.Grad()
//
// Methods:
//
//	ID() ParamID
//	    Returns the parameter identity, fixed at creation.
//
//	Tensor() *tensor.Tensor[B]
//	    Returns the parameter tensor. Optimizers update it in place.
//
//	Grad() *tensor.Tensor[B]
//	    Returns the gradient of the last backward pass (nil after an update).
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with a new ParamID.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Optimizer updates one parameter from its gradient.
type Optimizer[B tensor.Backend] = nn.Optimizer[B]

// ParamRef locates a parameter (ID and shape) when optimizer state is
// restored by name.
type ParamRef = nn.ParamRef

// OptimizerState is implemented by optimizers whose state can be saved in a
// checkpoint.
type OptimizerState = nn.OptimizerState
