package optim

import (
	"math"

	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule, with a step counter t per parameter:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// With Nesterov set, m_hat in the last line is replaced by the look-ahead
// blend beta1 * m_hat + (1-beta1) * gradient / (1 - beta1^t).
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam(optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	}, backend)
type Adam[B tensor.Backend] struct {
	lr       float64
	beta1    float64
	beta2    float64
	nesterov bool
	state    *slots // m, v and per-parameter step
	backend  B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR       float64    // Learning rate (default: 0.002)
	Betas    [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Nesterov bool       // Use the Nesterov-corrected first moment
}

// NewAdam creates a new Adam optimizer.
func NewAdam[B tensor.Backend](config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.002
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	return &Adam[B]{
		lr:       config.LR,
		beta1:    config.Betas[0],
		beta2:    config.Betas[1],
		nesterov: config.Nesterov,
		state:    newSlots("m", "v"),
		backend:  backend,
	}
}

// Name returns "adam" or "nadam".
func (a *Adam[B]) Name() string {
	if a.nesterov {
		return "nadam"
	}
	return "adam"
}

// LR returns the learning rate.
func (a *Adam[B]) LR() float64 { return a.lr }

// Len returns the number of parameters with state.
func (a *Adam[B]) Len() int { return a.state.len() }

// Update applies one Adam step to param in place.
func (a *Adam[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes(a.Name(), param, grad); err != nil {
		return err
	}
	bufs := a.state.get(param.ID(), grad.Shape())
	m, v := bufs[0], bufs[1]
	t := float64(a.state.step(param.ID()))

	biasCorrection1 := 1 - math.Pow(a.beta1, t)
	biasCorrection2 := 1 - math.Pow(a.beta2, t)

	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
		v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]

		mHat := m[i] / biasCorrection1
		vHat := v[i] / biasCorrection2
		if a.nesterov {
			mHat = a.beta1*mHat + (1-a.beta1)*g[i]/biasCorrection1
		}
		p[i] -= a.lr * mHat / (math.Sqrt(vHat) + defaultEps)
	}
	return nil
}

// Moments returns copies of the raw moments m and v of param and its step count.
func (a *Adam[B]) Moments(param *nn.Parameter[B]) (m, v *tensor.Tensor[B], step int, ok bool) {
	if m, ok = slotTensor(a.state, param.ID(), 0, a.backend); !ok {
		return nil, nil, 0, false
	}
	v, _ = slotTensor(a.state, param.ID(), 1, a.backend)
	return m, v, a.state.steps[param.ID()], true
}

// StateDict exports moments and step counters under the names in keys.
func (a *Adam[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return a.state.stateDict(keys)
}

// LoadStateDict restores moments and step counters saved by StateDict.
func (a *Adam[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return a.state.loadStateDict(params, stateDict)
}

// AdaMax is the infinity-norm variant of Adam.
//
// Update rule:
//
//	m = beta1 * m + (1-beta1) * grad
//	u = max(beta2 * u, |grad|)
//	param = param - lr / (1 - beta1^t) * m / (u + eps)
type AdaMax[B tensor.Backend] struct {
	lr      float64
	beta1   float64
	beta2   float64
	state   *slots // m, u and per-parameter step
	backend B
}

// AdaMaxConfig holds configuration for AdaMax.
type AdaMaxConfig struct {
	LR    float64    // Learning rate (default: 0.002)
	Betas [2]float64 // Moment decays (default: [0.9, 0.999])
}

// NewAdaMax creates a new AdaMax optimizer.
func NewAdaMax[B tensor.Backend](config AdaMaxConfig, backend B) *AdaMax[B] {
	if config.LR == 0 {
		config.LR = 0.002
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	return &AdaMax[B]{
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		state:   newSlots("m", "u"),
		backend: backend,
	}
}

// Name returns "adamax".
func (a *AdaMax[B]) Name() string { return "adamax" }

// LR returns the learning rate.
func (a *AdaMax[B]) LR() float64 { return a.lr }

// Len returns the number of parameters with state.
func (a *AdaMax[B]) Len() int { return a.state.len() }

// Update applies one AdaMax step to param in place.
func (a *AdaMax[B]) Update(param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if err := checkShapes("adamax", param, grad); err != nil {
		return err
	}
	bufs := a.state.get(param.ID(), grad.Shape())
	m, u := bufs[0], bufs[1]
	t := float64(a.state.step(param.ID()))
	stepSize := a.lr / (1 - math.Pow(a.beta1, t))

	p, g := param.Tensor().Data(), grad.Data()
	for i := range p {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
		u[i] = math.Max(a.beta2*u[i], math.Abs(g[i]))
		p[i] -= stepSize * m[i] / (u[i] + defaultEps)
	}
	return nil
}

// StateDict exports moments and step counters under the names in keys.
func (a *AdaMax[B]) StateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	return a.state.stateDict(keys)
}

// LoadStateDict restores moments and step counters saved by StateDict.
func (a *AdaMax[B]) LoadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	return a.state.loadStateDict(params, stateDict)
}
