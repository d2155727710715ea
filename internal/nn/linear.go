package nn

import (
	"fmt"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch, in] or [batch, time, in]
//   - W is the weight matrix with shape [out, in]
//   - b is the bias vector with shape [out], broadcast over leading axes
//   - y has the input's leading axes and out as last axis
//
// Weights are initialized with the configured initializer (xavier_uniform by
// default). Biases start at zero.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
//	layer.SetOptimizer(optim.NewSGD(optim.SGDConfig{LR: 0.01}, backend), false)
//
//	out, _ := layer.Forward(x)    // [32, 128]
//	dx, _ := layer.Backward(dEdO) // [32, 784]
//	_ = layer.UpdateParameters()
type Linear[B tensor.Backend] struct {
	unit[B]
	adaptive[B]
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out, in]
	bias        *Parameter[B] // [out]
	backend     B
}

type linearOptions struct {
	name        string
	initializer string
	rng         *rand.Rand
}

// LinearOption configures NewLinear.
type LinearOption func(*linearOptions)

// WithName sets the layer name used in logs and errors.
func WithName(name string) LinearOption {
	return func(o *linearOptions) { o.name = name }
}

// WithInitializer selects the weight initializer by name (see Initialize).
func WithInitializer(mode string) LinearOption {
	return func(o *linearOptions) { o.initializer = mode }
}

// WithRand draws initial weights from rng, making construction reproducible.
func WithRand(rng *rand.Rand) LinearOption {
	return func(o *linearOptions) { o.rng = rng }
}

// NewLinear creates a new Linear layer.
//
// It panics if the initializer name is unknown or the sizes are not positive.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, opts ...LinearOption) *Linear[B] {
	o := linearOptions{
		name:        fmt.Sprintf("linear(%d->%d)", inFeatures, outFeatures),
		initializer: XavierUniform,
	}
	for _, opt := range opts {
		opt(&o)
	}

	w, err := Initialize(outFeatures, inFeatures, o.initializer, o.rng, backend)
	if err != nil {
		exceptions.Panicf("NewLinear: %v", err)
	}

	return &Linear[B]{
		unit:        newUnit[B](o.name),
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", w),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}, backend)),
		backend:     backend,
	}
}

// Forward caches input in training mode and computes x @ W.T + b.
func (l *Linear[B]) Forward(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	out, err := l.Call(input)
	if err != nil {
		return nil, err
	}
	l.remember(input)
	return out, nil
}

// Call computes x @ W.T + b without caching.
func (l *Linear[B]) Call(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	if err := l.checkInput(input.Shape()); err != nil {
		return nil, err
	}
	return compute(l.name, func() *tensor.Tensor[B] {
		shape := input.Shape()
		rows := shape.NumElements() / l.inFeatures
		x2 := input.Reshape(rows, l.inFeatures)
		out := x2.MatMul(l.weight.Tensor().T()).Add(l.bias.Tensor())
		outShape := shape.Clone()
		outShape[len(outShape)-1] = l.outFeatures
		return out.Reshape(outShape...)
	})
}

// Backward caches dW = Σ dEdOᵀ·x and db = Σ dEdO over all leading axes in
// the parameters, and returns dEdO · W shaped like the cached input.
func (l *Linear[B]) Backward(dEdO *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	x, err := l.cachedInput()
	if err != nil {
		return nil, err
	}
	shape := x.Shape()
	rows := shape.NumElements() / l.inFeatures
	outShape := shape.Clone()
	outShape[len(outShape)-1] = l.outFeatures
	if !dEdO.Shape().Equal(outShape) {
		return nil, errors.Errorf("%s: upstream gradient shape %v does not match output shape %v",
			l.name, dEdO.Shape(), outShape)
	}

	var dW, db *tensor.Tensor[B]
	dX, err := compute(l.name+" backward", func() *tensor.Tensor[B] {
		g2 := dEdO.Reshape(rows, l.outFeatures)
		x2 := x.Reshape(rows, l.inFeatures)
		dW = g2.T().MatMul(x2)
		db = g2.SumDim(0, false)
		return g2.MatMul(l.weight.Tensor()).Reshape(shape...)
	})
	if err != nil {
		return nil, err
	}
	l.weight.SetGrad(dW)
	l.bias.SetGrad(db)
	return dX, nil
}

// UpdateParameters applies the attached optimizer to W and b.
func (l *Linear[B]) UpdateParameters() error {
	return l.update(l.name, l.Parameters())
}

// SetOptimizer attaches opt unless one is attached already and force is false.
func (l *Linear[B]) SetOptimizer(opt Optimizer[B], force bool) bool {
	return l.setOptimizer(l.name, opt, force)
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns the raw weight and bias tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict copies weight and bias values into the existing parameters,
// so parameter identity (and optimizer state) is preserved.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	expected := map[string]*Parameter[B]{"weight": l.weight, "bias": l.bias}
	for key, param := range expected {
		raw, ok := stateDict[key]
		if !ok {
			return errors.Errorf("%s: missing %s in state dict", l.name, key)
		}
		if !raw.Shape().Equal(param.Shape()) {
			return errors.Errorf("%s: %s shape mismatch: expected %v, got %v",
				l.name, key, param.Shape(), raw.Shape())
		}
	}
	for key, param := range expected {
		copy(param.Tensor().Data(), stateDict[key].Data())
	}
	return nil
}

func (l *Linear[B]) checkInput(shape tensor.Shape) error {
	if r := len(shape); r != 2 && r != 3 {
		return errors.Errorf("%s: expected input [batch, in] or [batch, time, in], got %v", l.name, shape)
	}
	if shape[len(shape)-1] != l.inFeatures {
		return errors.Errorf("%s: expected %d input features, got shape %v", l.name, l.inFeatures, shape)
	}
	return nil
}
