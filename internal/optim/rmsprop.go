package optim

import (
	"math"

	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// RMSProp scales the step by a running average of squared gradients.
//
// Update rule:
//
//	E[g²] = beta * E[g²] + (1-beta) * grad²
//	param = param - lr * grad / sqrt(E[g²] + eps)
type RMSProp[B tensor.Backend] struct {
	lr      float64
	beta    float64
	state   *slots // mean_square
	backend B
}

// RMSPropConfig holds configuration for RMSProp.
type RMSPropConfig struct {
	LR   float64 // Learning rate (default: 0.001)
	Beta float64 // Decay of the squared-gradient average (default: 0.9)
}

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp[B tensor.Backend](config RMSPropConfig, backend B) *RMSProp[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta == 0 {
		config.Beta = 0.9
	}
	return &RMSProp[B]{lr: config.LR, beta: config.Beta, state: newSlots("mean_square"), backend: backend}
}

// Name returns "rmsprop".
func (r *RMSProp[B]) Name() string { return "rmsprop" }

// LR returns the learning rate.
func (r *RMSProp[B]) LR() float64 { return r.lr }

// Len returns the number of parameters with state.
func (r *RMSProp[B]) Len() int { return r.state.len() }

// Update applies one RMSProp step to param in place.
func (r *RMSProp[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes("rmsprop", param, grad); err != nil {
		return err
	}
	sq := r.state.get(param.ID(), grad.Shape())[0]
	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		sq[i] = r.beta*sq[i] + (1-r.beta)*g[i]*g[i]
		p[i] -= r.lr * g[i] / math.Sqrt(sq[i]+defaultEps)
	}
	return nil
}

// MeanSquare returns a copy of the running squared-gradient average of param.
func (r *RMSProp[B]) MeanSquare(param *nn.Parameter[B]) (*tensor.Tensor[B], bool) {
	return slotTensor(r.state, param.ID(), 0, r.backend)
}

// StateDict exports the running averages under the names in keys.
func (r *RMSProp[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return r.state.stateDict(keys)
}

// LoadStateDict restores running averages saved by StateDict.
func (r *RMSProp[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return r.state.loadStateDict(params, stateDict)
}

// Adagrad scales the step by the cumulative sum of squared gradients, so the
// effective step of every parameter shrinks monotonically.
//
// Update rule:
//
//	G = G + grad²
//	param = param - lr * grad / sqrt(G + eps)
type Adagrad[B tensor.Backend] struct {
	lr      float64
	state   *slots // accumulator
	backend B
}

// AdagradConfig holds configuration for Adagrad.
type AdagradConfig struct {
	LR float64 // Learning rate (default: 0.01)
}

// NewAdagrad creates a new Adagrad optimizer.
func NewAdagrad[B tensor.Backend](config AdagradConfig, backend B) *Adagrad[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &Adagrad[B]{lr: config.LR, state: newSlots("accumulator"), backend: backend}
}

// Name returns "adagrad".
func (a *Adagrad[B]) Name() string { return "adagrad" }

// LR returns the learning rate.
func (a *Adagrad[B]) LR() float64 { return a.lr }

// Len returns the number of parameters with state.
func (a *Adagrad[B]) Len() int { return a.state.len() }

// Update applies one Adagrad step to param in place.
func (a *Adagrad[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes("adagrad", param, grad); err != nil {
		return err
	}
	acc := a.state.get(param.ID(), grad.Shape())[0]
	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		acc[i] += g[i] * g[i]
		p[i] -= a.lr * g[i] / math.Sqrt(acc[i]+defaultEps)
	}
	return nil
}

// Accumulator returns a copy of the squared-gradient sum of param.
func (a *Adagrad[B]) Accumulator(param *nn.Parameter[B]) (*tensor.Tensor[B], bool) {
	return slotTensor(a.state, param.ID(), 0, a.backend)
}

// StateDict exports the accumulators under the names in keys.
func (a *Adagrad[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return a.state.stateDict(keys)
}

// LoadStateDict restores accumulators saved by StateDict.
func (a *Adagrad[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return a.state.loadStateDict(params, stateDict)
}

// Adadelta adapts the step from running averages of squared gradients and
// squared updates. It has no learning rate.
//
// Update rule:
//
//	E[g²]  = beta * E[g²] + (1-beta) * grad²
//	Δw     = -sqrt(E[Δw²] + eps) * grad / sqrt(E[g²] + eps)
//	E[Δw²] = beta * E[Δw²] + (1-beta) * Δw²
//	param  = param + Δw
//
// eps is fixed at 1e-6.
type Adadelta[B tensor.Backend] struct {
	beta    float64
	state   *slots // grad_sq, delta_sq
	backend B
}

// AdadeltaConfig holds configuration for Adadelta.
type AdadeltaConfig struct {
	Beta float64 // Decay of both running averages (default: 0.9)
}

// NewAdadelta creates a new Adadelta optimizer.
func NewAdadelta[B tensor.Backend](config AdadeltaConfig, backend B) *Adadelta[B] {
	if config.Beta == 0 {
		config.Beta = 0.9
	}
	return &Adadelta[B]{beta: config.Beta, state: newSlots("grad_sq", "delta_sq"), backend: backend}
}

// Name returns "adadelta".
func (a *Adadelta[B]) Name() string { return "adadelta" }

// LR returns 1: Adadelta updates are applied unscaled.
func (a *Adadelta[B]) LR() float64 { return 1 }

// Len returns the number of parameters with state.
func (a *Adadelta[B]) Len() int { return a.state.len() }

// Update applies one Adadelta step to param in place.
func (a *Adadelta[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes("adadelta", param, grad); err != nil {
		return err
	}
	bufs := a.state.get(param.ID(), grad.Shape())
	gradSq, deltaSq := bufs[0], bufs[1]
	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		gradSq[i] = a.beta*gradSq[i] + (1-a.beta)*g[i]*g[i]
		delta := -math.Sqrt(deltaSq[i]+adadeltaEps) * g[i] / math.Sqrt(gradSq[i]+adadeltaEps)
		deltaSq[i] = a.beta*deltaSq[i] + (1-a.beta)*delta*delta
		p[i] += delta
	}
	return nil
}

// Accumulators returns copies of E[g²] and E[Δw²] for param.
func (a *Adadelta[B]) Accumulators(param *nn.Parameter[B]) (gradSq, deltaSq *tensor.Tensor[B], ok bool) {
	if gradSq, ok = slotTensor(a.state, param.ID(), 0, a.backend); !ok {
		return nil, nil, false
	}
	deltaSq, ok = slotTensor(a.state, param.ID(), 1, a.backend)
	return gradSq, deltaSq, ok
}

// StateDict exports both averages under the names in keys.
func (a *Adadelta[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return a.state.stateDict(keys)
}

// LoadStateDict restores averages saved by StateDict.
func (a *Adadelta[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return a.state.loadStateDict(params, stateDict)
}
