package nn

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Optimizer applies one update rule to parameters, mutating them in place.
//
// Implementations keep per-parameter state keyed by Parameter.ID, so a single
// optimizer may be shared by every adaptive unit of a network.
type Optimizer[B tensor.Backend] interface {
	// Name returns the optimizer name (e.g. "adam").
	Name() string

	// Update applies grad to param.Tensor() in place.
	Update(param *Parameter[B], grad *tensor.Tensor[B]) error
}

// OptimizerState is implemented by optimizers whose running statistics can be
// saved with a checkpoint.
//
// State is exported under stable names (e.g. "0.weight") because ParamIDs are
// only meaningful inside one process.
type OptimizerState interface {
	// StateDict returns the state of every parameter named in keys.
	StateDict(keys map[ParamID]string) map[string]*tensor.RawTensor

	// LoadStateDict restores state saved by StateDict, mapping names back to
	// parameters. Every slot must be shaped like its parameter.
	LoadStateDict(params map[string]ParamRef, stateDict map[string]*tensor.RawTensor) error

	// LR returns the learning rate.
	LR() float64
}

// ParamRef locates a parameter when state is restored by name.
type ParamRef struct {
	ID    ParamID
	Shape tensor.Shape
}

// Adaptive is a Function with trainable parameters and an attached Optimizer.
type Adaptive[B tensor.Backend] interface {
	Function[B]

	// UpdateParameters feeds every parameter and its cached gradient to the
	// optimizer, then clears the gradients.
	UpdateParameters() error

	// Optimizer returns the attached optimizer, or nil.
	Optimizer() Optimizer[B]

	// SetOptimizer attaches opt when none is attached or force is set.
	// It reports whether opt was attached; a refusal is logged, not an error.
	SetOptimizer(opt Optimizer[B], force bool) bool
}

// adaptive holds the optimizer assignment shared by adaptive units.
type adaptive[B tensor.Backend] struct {
	optimizer Optimizer[B]
}

// Optimizer returns the attached optimizer.
func (a *adaptive[B]) Optimizer() Optimizer[B] {
	return a.optimizer
}

func (a *adaptive[B]) setOptimizer(owner string, opt Optimizer[B], force bool) bool {
	if a.optimizer != nil && !force {
		klog.Warningf("%s: optimizer %q already attached, ignoring %q (use force to override)",
			owner, a.optimizer.Name(), optimizerName(opt))
		return false
	}
	a.optimizer = opt
	return true
}

// update runs the optimizer over params. Every parameter must carry a gradient
// shaped like itself; otherwise nothing is updated. An error raised by the
// optimizer itself after these checks leaves the parameters before it updated
// with their gradients cleared, so a retry fails with ErrNoGradient.
func (a *adaptive[B]) update(owner string, params []*Parameter[B]) error {
	if a.optimizer == nil {
		return errors.Wrapf(ErrNoOptimizer, "%s", owner)
	}
	for _, p := range params {
		if p.Grad() == nil {
			return errors.Wrapf(ErrNoGradient, "%s: parameter %q", owner, p.Name())
		}
		if !p.Grad().Shape().Equal(p.Shape()) {
			return errors.Errorf("%s: gradient shape %v does not match parameter %q shape %v",
				owner, p.Grad().Shape(), p.Name(), p.Shape())
		}
	}
	for _, p := range params {
		if err := a.optimizer.Update(p, p.Grad()); err != nil {
			return errors.Wrapf(err, "%s: updating %q", owner, p.Name())
		}
		p.ZeroGrad()
	}
	return nil
}

func optimizerName[B tensor.Backend](opt Optimizer[B]) string {
	if opt == nil {
		return "<nil>"
	}
	return opt.Name()
}
