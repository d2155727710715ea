// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/ffnet-ml/ffnet/internal/optim"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer[B tensor.Backend] = optim.Optimizer[B]

// Names lists the optimizer names accepted by New.
var Names = optim.Names

// New creates an optimizer by name. A zero lr selects its default.
//
// Example:
//
//	opt, err := optim.New("adam", 0.01, backend)
func New[B tensor.Backend](name string, lr float64, backend B) (Optimizer[B], error) {
	return optim.New(name, lr, backend)
}

// SGD (Stochastic Gradient Descent)

// SGD represents plain gradient descent.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(optim.SGDConfig{LR: 0.01}, backend)
//	net.SetOptimizer(optimizer, false)
func NewSGD[B tensor.Backend](config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(config, backend)
}

// Momentum represents SGD with a velocity term, optionally Nesterov.
type Momentum[B tensor.Backend] = optim.Momentum[B]

// MomentumConfig contains configuration for Momentum.
type MomentumConfig = optim.MomentumConfig

// NewMomentum creates a new Momentum optimizer.
func NewMomentum[B tensor.Backend](config MomentumConfig, backend B) *Momentum[B] {
	return optim.NewMomentum(config, backend)
}

// Adaptive learning rates

// RMSProp scales steps by a running average of squared gradients.
type RMSProp[B tensor.Backend] = optim.RMSProp[B]

// RMSPropConfig contains configuration for RMSProp.
type RMSPropConfig = optim.RMSPropConfig

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp[B tensor.Backend](config RMSPropConfig, backend B) *RMSProp[B] {
	return optim.NewRMSProp(config, backend)
}

// Adagrad scales steps by the sum of all squared gradients.
type Adagrad[B tensor.Backend] = optim.Adagrad[B]

// AdagradConfig contains configuration for Adagrad.
type AdagradConfig = optim.AdagradConfig

// NewAdagrad creates a new Adagrad optimizer.
func NewAdagrad[B tensor.Backend](config AdagradConfig, backend B) *Adagrad[B] {
	return optim.NewAdagrad(config, backend)
}

// Adadelta needs no learning rate.
type Adadelta[B tensor.Backend] = optim.Adadelta[B]

// AdadeltaConfig contains configuration for Adadelta.
type AdadeltaConfig = optim.AdadeltaConfig

// NewAdadelta creates a new Adadelta optimizer.
func NewAdadelta[B tensor.Backend](config AdadeltaConfig, backend B) *Adadelta[B] {
	return optim.NewAdadelta(config, backend)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer := optim.NewAdam(
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	    },
//	    backend,
//	)
func NewAdam[B tensor.Backend](config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(config, backend)
}

// AdaMax is Adam with an infinity-norm second moment.
type AdaMax[B tensor.Backend] = optim.AdaMax[B]

// AdaMaxConfig contains configuration for AdaMax.
type AdaMaxConfig = optim.AdaMaxConfig

// NewAdaMax creates a new AdaMax optimizer.
func NewAdaMax[B tensor.Backend](config AdaMaxConfig, backend B) *AdaMax[B] {
	return optim.NewAdaMax(config, backend)
}
