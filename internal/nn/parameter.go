package nn

import (
	"sync/atomic"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// ParamID is a stable, process-unique handle of a Parameter.
//
// Optimizers key their per-parameter state by ParamID, so state follows the
// parameter and never the address of whatever tensor currently backs it.
type ParamID uint64

var nextParamID atomic.Uint64

// Parameter represents a trainable tensor owned by an adaptive unit.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil until Backward runs
type Parameter[B tensor.Backend] struct {
	id     ParamID
	name   string            // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[B] // The parameter tensor, updated in place
	grad   *tensor.Tensor[B] // Gradient cached by the last Backward
}

// NewParameter creates a new trainable parameter with a fresh ID.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{
		id:     ParamID(nextParamID.Add(1)),
		name:   name,
		tensor: t,
	}
}

// ID returns the parameter's stable identity.
func (p *Parameter[B]) ID() ParamID {
	return p.id
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient so that a second update without a fresh
// backward pass is detected.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
