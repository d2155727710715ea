// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/tensor"
)

// Errors returned by units and networks. Test with errors.Is.
var (
	ErrNoCachedInput = nn.ErrNoCachedInput
	ErrNoGradient    = nn.ErrNoGradient
	ErrLossForward   = nn.ErrLossForward
	ErrNoOptimizer   = nn.ErrNoOptimizer
	ErrNoLoss        = nn.ErrNoLoss
)

// Function is a differentiable unit: Forward caches its input while
// training, Backward maps the upstream gradient to the input gradient.
type Function[B tensor.Backend] = nn.Function[B]

// Adaptive is a Function with trainable parameters and an optimizer.
type Adaptive[B tensor.Backend] = nn.Adaptive[B]

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// LinearOption configures NewLinear.
type LinearOption = nn.LinearOption

// NewLinear creates a new linear layer, Xavier-uniform initialized by default.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend, nn.WithInitializer(nn.HeNormal))
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, opts ...LinearOption) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend, opts...)
}

// WithName sets the layer name used in logs and errors.
func WithName(name string) LinearOption { return nn.WithName(name) }

// WithInitializer selects the weight initializer by name.
func WithInitializer(mode string) LinearOption { return nn.WithInitializer(mode) }

// WithRand draws the initial weights from rng.
func WithRand(rng *rand.Rand) LinearOption { return nn.WithRand(rng) }

// Initializer names.
const (
	XavierUniform = nn.XavierUniform
	XavierNormal  = nn.XavierNormal
	HeUniform     = nn.HeUniform
	HeNormal      = nn.HeNormal
	LecunUniform  = nn.LecunUniform
	UniformInit   = nn.UniformInit
	NormalInit    = nn.NormalInit
)

// Initialize creates a [fanOut, fanIn] weight tensor with the named initializer.
func Initialize[B tensor.Backend](fanOut, fanIn int, mode string, rng *rand.Rand, backend B) (*tensor.Tensor[B], error) {
	return nn.Initialize(fanOut, fanIn, mode, rng, backend)
}

// Activations

// Activation is an activation unit of one ActivationKind.
type Activation[B tensor.Backend] = nn.Activation[B]

// ActivationKind selects the activation function.
type ActivationKind = nn.ActivationKind

// Activation kinds.
const (
	ReLU    = nn.ReLU
	Sigmoid = nn.Sigmoid
	Tanh    = nn.Tanh
	Softmax = nn.Softmax
)

// ParseActivation returns the kind named "relu", "sigmoid", "tanh" or "softmax".
func ParseActivation(name string) (ActivationKind, error) {
	return nn.ParseActivation(name)
}

// NewActivation creates an activation unit of the given kind.
func NewActivation[B tensor.Backend](kind ActivationKind) *Activation[B] {
	return nn.NewActivation[B](kind)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *Activation[B] { return nn.NewReLU[B]() }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Activation[B] { return nn.NewSigmoid[B]() }

// NewTanh creates a Tanh activation.
func NewTanh[B tensor.Backend]() *Activation[B] { return nn.NewTanh[B]() }

// NewSoftmax creates a row-wise Softmax activation.
func NewSoftmax[B tensor.Backend]() *Activation[B] { return nn.NewSoftmax[B]() }

// Loss functions

// Loss is a two-input unit: Compute returns the scalar loss and Gradient its
// derivative with respect to the prediction.
type Loss[B tensor.Backend] = nn.Loss[B]

// MSELoss is the mean squared error.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a mean squared error loss.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] { return nn.NewMSELoss[B]() }

// BCELoss is the binary cross-entropy.
type BCELoss[B tensor.Backend] = nn.BCELoss[B]

// NewBCELoss creates a binary cross-entropy loss over logits or probabilities.
func NewBCELoss[B tensor.Backend](fromLogits bool) *BCELoss[B] { return nn.NewBCELoss[B](fromLogits) }

// CrossEntropyLoss is the categorical cross-entropy.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates a categorical cross-entropy loss. oneHot tells
// whether targets are one-hot rows or integer class labels.
func NewCrossEntropyLoss[B tensor.Backend](fromLogits, oneHot bool) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss[B](fromLogits, oneHot)
}

// KLStandardNormal is the KL divergence of N(mu, exp(logVar)) from N(0, 1).
type KLStandardNormal[B tensor.Backend] = nn.KLStandardNormal[B]

// NewKLStandardNormal creates the KL divergence loss.
func NewKLStandardNormal[B tensor.Backend]() *KLStandardNormal[B] { return nn.NewKLStandardNormal[B]() }

// Networks

// Network is a chain of layers with a loss and a default optimizer.
type Network[B tensor.Backend] = nn.Network[B]

// NewNetwork creates a network from layers, applied in order.
func NewNetwork[B tensor.Backend](name string, layers ...Function[B]) *Network[B] {
	return nn.NewNetwork(name, layers...)
}

// Checkpoint is a saved training state: weights, optimizer state and
// training metadata.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// SaveCheckpoint writes net (and its optimizer state) to path.
func SaveCheckpoint[B tensor.Backend](path string, net *Network[B], epoch int, loss float64) error {
	return nn.SaveCheckpoint(path, net, epoch, loss)
}

// LoadCheckpoint restores a checkpoint into a network of the same architecture.
func LoadCheckpoint[B tensor.Backend](path string, net *Network[B]) (*Checkpoint[B], error) {
	return nn.LoadCheckpoint(path, net)
}
