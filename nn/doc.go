// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides feed-forward network building blocks with explicit
// forward and backward passes.
//
// # Overview
//
// This package contains:
//   - Layers: Linear
//   - Activations: ReLU, Sigmoid, Tanh, Softmax
//   - Loss functions: MSELoss, BCELoss, CrossEntropyLoss, KLStandardNormal
//   - Network: a chain of layers with a loss and a shared optimizer
//   - Checkpoint: saving and restoring weights and optimizer state
//
// Every unit implements its own backward rule; there is no autodiff graph.
//
// # Basic Usage
//
//	import (
//	    "github.com/ffnet-ml/ffnet/backend/cpu"
//	    "github.com/ffnet-ml/ffnet/nn"
//	    "github.com/ffnet-ml/ffnet/optim"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    net := nn.NewNetwork("mlp",
//	        nn.NewLinear(4, 16, backend),
//	        nn.NewReLU[*cpu.Backend](),
//	        nn.NewLinear(16, 3, backend),
//	        nn.NewSoftmax[*cpu.Backend](),
//	    )
//	    net.SetLoss(nn.NewCrossEntropyLoss[*cpu.Backend](true, false))
//	    net.SetOptimizer(optim.NewAdam(optim.AdamConfig{LR: 0.01}, backend), false)
//
//	    loss, err := net.TrainStep(x, labels)
//	}
//
// # Softmax and Cross-Entropy
//
// When the last layer is Softmax and the loss is CrossEntropyLoss with
// fromLogits set, the loss is computed on the logits and the backward pass
// starts below the Softmax with (softmax - onehot)/N. The Softmax Jacobian is
// never built.
//
// # Parameter Management
//
// Every Parameter gets a stable ParamID when it is created. Optimizers key
// their per-parameter state by it, so one optimizer can serve all layers:
//
//	for _, p := range net.Parameters() {
//	    fmt.Println(p.ID(), p.Name(), p.Shape())
//	}
package nn
