// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD and Momentum (with an optional Nesterov look-ahead)
//   - RMSProp, Adagrad and Adadelta
//   - Adam (optionally Nesterov) and AdaMax
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
//	    net := nn.NewNetwork("regressor", nn.NewLinear(10, 1, backend))
//	    net.SetLoss(nn.NewMSELoss[*cpu.Backend]())
//
//	    optimizer := optim.NewAdam(optim.AdamConfig{LR: 0.001}, backend)
//	    net.SetOptimizer(optimizer, false)
//
//	    for epoch := 0; epoch < epochs; epoch++ {
//	        loss, err := net.TrainStep(x, y)
//	    }
//	}
//
// # Per-parameter State
//
// Optimizers keep their running statistics per parameter, keyed by
// nn.ParamID and created on the first update. A single optimizer is shared by
// every layer of a network. State is saved in checkpoints and restored onto
// the parameters of a rebuilt network.
//
// # Defaults
//
// Zero config fields select the defaults: SGD lr 0.01, Momentum lr 0.005,
// RMSProp lr 0.001, Adagrad lr 0.01, Adam and AdaMax lr 0.002 with betas
// (0.9, 0.999). Decay terms default to 0.9.
package optim
