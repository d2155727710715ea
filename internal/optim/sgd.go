package optim

import (
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// SGD implements plain Stochastic Gradient Descent.
//
// Update rule:
//
//	param = param - lr * grad
//
// SGD keeps no per-parameter state.
type SGD[B tensor.Backend] struct {
	lr      float64
	backend B
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	LR float64 // Learning rate (default: 0.01)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{lr: config.LR, backend: backend}
}

// Name returns "sgd".
func (s *SGD[B]) Name() string { return "sgd" }

// LR returns the learning rate.
func (s *SGD[B]) LR() float64 { return s.lr }

// Len returns 0: SGD is stateless.
func (s *SGD[B]) Len() int { return 0 }

// Update applies param -= lr * grad in place.
func (s *SGD[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes("sgd", param, grad); err != nil {
		return err
	}
	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		p[i] -= s.lr * g[i]
	}
	return nil
}

// StateDict returns an empty map.
func (s *SGD[B]) StateDict(map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (s *SGD[B]) LoadStateDict(map[string]nn.ParamRef, map[string]*tensor.RawTensor) error {
	return nil
}

// Momentum implements SGD with momentum.
//
// Update rule:
//
//	v = beta * v + lr * grad
//	param = param - v                      // classic
//	param = param - (beta * v + lr * grad) // Nesterov (Dozat's approximation)
type Momentum[B tensor.Backend] struct {
	lr       float64
	beta     float64
	nesterov bool
	state    *slots // velocity
	backend  B
}

// MomentumConfig holds configuration for Momentum.
type MomentumConfig struct {
	LR       float64 // Learning rate (default: 0.005)
	Beta     float64 // Velocity decay (default: 0.9)
	Nesterov bool    // Use the Nesterov look-ahead update
}

// NewMomentum creates a new Momentum optimizer.
func NewMomentum[B tensor.Backend](config MomentumConfig, backend B) *Momentum[B] {
	if config.LR == 0 {
		config.LR = 0.005
	}
	if config.Beta == 0 {
		config.Beta = 0.9
	}
	return &Momentum[B]{
		lr:       config.LR,
		beta:     config.Beta,
		nesterov: config.Nesterov,
		state:    newSlots("velocity"),
		backend:  backend,
	}
}

// Name returns "momentum" or "nesterov".
func (m *Momentum[B]) Name() string {
	if m.nesterov {
		return "nesterov"
	}
	return "momentum"
}

// LR returns the learning rate.
func (m *Momentum[B]) LR() float64 { return m.lr }

// Len returns the number of parameters with a velocity.
func (m *Momentum[B]) Len() int { return m.state.len() }

// Update applies one momentum step to param in place.
func (m *Momentum[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes(m.Name(), param, grad); err != nil {
		return err
	}
	v := m.state.get(param.ID(), grad.Shape())[0]
	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		v[i] = m.beta*v[i] + m.lr*g[i]
		if m.nesterov {
			p[i] -= m.beta*v[i] + m.lr*g[i]
		} else {
			p[i] -= v[i]
		}
	}
	return nil
}

// Velocity returns a copy of the velocity of param.
func (m *Momentum[B]) Velocity(param *nn.Parameter[B]) (*tensor.Tensor[B], bool) {
	return slotTensor(m.state, param.ID(), 0, m.backend)
}

// StateDict exports the velocities under the names in keys.
func (m *Momentum[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return m.state.stateDict(keys)
}

// LoadStateDict restores velocities saved by StateDict.
func (m *Momentum[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return m.state.loadStateDict(params, stateDict)
}
