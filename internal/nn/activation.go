package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// ActivationKind enumerates the supported activation functions.
type ActivationKind int

const (
	// ReLU applies max(x, 0).
	ReLU ActivationKind = iota
	// Sigmoid applies 1 / (1 + exp(-x)).
	Sigmoid
	// Tanh applies the hyperbolic tangent.
	Tanh
	// Softmax normalizes the last axis into a probability distribution.
	Softmax
)

var activationNames = map[ActivationKind]string{
	ReLU:    "relu",
	Sigmoid: "sigmoid",
	Tanh:    "tanh",
	Softmax: "softmax",
}

// String returns the lower-case activation name.
func (k ActivationKind) String() string {
	if name, ok := activationNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActivationKind(%d)", int(k))
}

// ParseActivation maps a name such as "relu" to its ActivationKind.
func ParseActivation(name string) (ActivationKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, n := range activationNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, errors.Errorf("unknown activation %q", name)
}

// Activation is a stateless activation unit selected by kind.
//
// Backward multiplies the upstream gradient elementwise by Deriv for every
// kind except Softmax, whose Jacobian is dense and is applied per batch row
// with a batched matrix product.
//
// Example:
//
//	relu := nn.NewActivation[*cpu.CPUBackend](nn.ReLU)
//	out, err := relu.Forward(x)
type Activation[B tensor.Backend] struct {
	unit[B]
	kind ActivationKind
}

// NewActivation creates an activation unit of the given kind.
func NewActivation[B tensor.Backend](kind ActivationKind) *Activation[B] {
	return &Activation[B]{unit: newUnit[B](kind.String()), kind: kind}
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *Activation[B] { return NewActivation[B](ReLU) }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Activation[B] { return NewActivation[B](Sigmoid) }

// NewTanh creates a Tanh activation.
func NewTanh[B tensor.Backend]() *Activation[B] { return NewActivation[B](Tanh) }

// NewSoftmax creates a Softmax activation over the last axis.
func NewSoftmax[B tensor.Backend]() *Activation[B] { return NewActivation[B](Softmax) }

// Kind returns the activation kind.
func (a *Activation[B]) Kind() ActivationKind {
	return a.kind
}

// Forward caches input in training mode and applies the activation.
func (a *Activation[B]) Forward(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	out, err := a.Call(input)
	if err != nil {
		return nil, err
	}
	a.remember(input)
	return out, nil
}

// Call applies the activation without caching.
func (a *Activation[B]) Call(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return compute(a.name, func() *tensor.Tensor[B] { return activate(a.kind, input) })
}

// Deriv returns the derivative of the activation at x.
//
// For the elementwise kinds the result has the shape of x. For Softmax,
// x must be [batch, n] and the result is [batch, n, n] holding the Jacobian
// diag(y) - y yᵀ of every row.
func (a *Activation[B]) Deriv(x *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return compute(a.name+" deriv", func() *tensor.Tensor[B] { return derivative(a.kind, x) })
}

// Backward returns dEdO ⊙ Deriv(x), or the Jacobian product for Softmax.
func (a *Activation[B]) Backward(dEdO *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	x, err := a.cachedInput()
	if err != nil {
		return nil, err
	}
	if !dEdO.Shape().Equal(x.Shape()) {
		return nil, errors.Errorf("%s: upstream gradient shape %v does not match output shape %v",
			a.name, dEdO.Shape(), x.Shape())
	}
	if a.kind == Softmax {
		return compute(a.name+" backward", func() *tensor.Tensor[B] { return softmaxBackward(x, dEdO) })
	}
	return compute(a.name+" backward", func() *tensor.Tensor[B] {
		return dEdO.Mul(derivative(a.kind, x))
	})
}

func activate[B tensor.Backend](kind ActivationKind, x *tensor.Tensor[B]) *tensor.Tensor[B] {
	switch kind {
	case ReLU:
		return x.Maximum(0)
	case Sigmoid:
		return sigmoid(x)
	case Tanh:
		return x.Tanh()
	case Softmax:
		return softmax(x)
	}
	panic(errors.Errorf("unknown activation kind %d", int(kind)))
}

func derivative[B tensor.Backend](kind ActivationKind, x *tensor.Tensor[B]) *tensor.Tensor[B] {
	switch kind {
	case ReLU:
		// Strict x > 0: the derivative at 0 is 0.
		return x.GreaterScalar(0)
	case Sigmoid:
		y := sigmoid(x)
		return y.Mul(y.MulScalar(-1).AddScalar(1))
	case Tanh:
		y := x.Tanh()
		return y.Mul(y).MulScalar(-1).AddScalar(1)
	case Softmax:
		return softmaxJacobian(softmax(x))
	}
	panic(errors.Errorf("unknown activation kind %d", int(kind)))
}

// sigmoid computes 1/(1+exp(-x)) in the form that never overflows:
// exp(-|x|) feeds both branches.
func sigmoid[B tensor.Backend](x *tensor.Tensor[B]) *tensor.Tensor[B] {
	out := tensor.ZerosLike(x)
	dst := out.Data()
	for i, v := range x.Data() {
		dst[i] = stableSigmoid(v)
	}
	return out
}

// softmax normalizes the last axis. The row max is subtracted first.
func softmax[B tensor.Backend](x *tensor.Tensor[B]) *tensor.Tensor[B] {
	shifted := x.Sub(x.MaxDim(-1, true))
	e := shifted.Exp()
	return e.Div(e.SumDim(-1, true))
}

// softmaxJacobian builds diag(y_b) - y_b y_bᵀ for every row of y [batch, n].
func softmaxJacobian[B tensor.Backend](y *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := y.Shape()
	if len(shape) != 2 {
		panic(errors.Errorf("softmax jacobian: expected [batch, n], got %v", shape))
	}
	batch, n := shape[0], shape[1]
	jac := tensor.Zeros(tensor.Shape{batch, n, n}, y.Backend())
	src, dst := y.Data(), jac.Data()
	for b := 0; b < batch; b++ {
		row := src[b*n : (b+1)*n]
		block := dst[b*n*n : (b+1)*n*n]
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				block[i*n+j] = -row[i] * row[j]
			}
			block[i*n+i] += row[i]
		}
	}
	return jac
}

// softmaxBackward reshapes dEdO to [batch, 1, n], multiplies it by each row's
// Jacobian and reshapes the result back to [batch, n].
func softmaxBackward[B tensor.Backend](x, dEdO *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(errors.Errorf("softmax backward: expected [batch, n] input, got %v", shape))
	}
	batch, n := shape[0], shape[1]
	jac := softmaxJacobian(softmax(x))
	return dEdO.Reshape(batch, 1, n).BatchMatMul(jac).Reshape(batch, n)
}
