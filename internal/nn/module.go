// Package nn implements the differentiable units of a feed-forward network.
//
// Every unit follows an explicit forward/backward protocol instead of a
// recorded autodiff graph:
//   - Forward caches the input while the unit is in training mode, then calls Call
//   - Call is the pure computation, used directly on inference paths
//   - Backward maps the gradient w.r.t. the output to the gradient w.r.t. the input
//
// Adaptive units (Linear) own Parameters and an attached Optimizer.
// Loss units seed backpropagation from a (prediction, target) pair.
// Network chains units and drives complete training steps.
package nn

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

var (
	// ErrNoCachedInput is returned by Backward when no training-mode Forward preceded it.
	ErrNoCachedInput = errors.New("no cached input")

	// ErrNoGradient is returned by UpdateParameters when Backward has not produced gradients.
	ErrNoGradient = errors.New("no gradient available")

	// ErrLossForward is returned by the single-input methods of loss units.
	ErrLossForward = errors.New("not supported for loss units")

	// ErrNoOptimizer is returned when an adaptive unit is updated without an optimizer.
	ErrNoOptimizer = errors.New("no optimizer attached")

	// ErrNoLoss is returned when a Network is asked for a loss it was never given.
	ErrNoLoss = errors.New("no loss attached")
)

// Function is the contract of every differentiable unit.
//
// Units are composed sequentially: one tensor in, one tensor out.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Function[B tensor.Backend] interface {
	// Name identifies the unit in logs and errors.
	Name() string

	// Training reports whether Forward caches its input.
	Training() bool

	// SetTraining switches the unit between training and inference mode.
	// Leaving training mode drops any cached input.
	SetTraining(training bool)

	// Forward caches input (in training mode) and returns Call(input).
	// The cached tensor is held by reference; callers must not mutate it
	// before the matching Backward.
	Forward(input *tensor.Tensor[B]) (*tensor.Tensor[B], error)

	// Call computes the output without any caching side effect.
	Call(input *tensor.Tensor[B]) (*tensor.Tensor[B], error)

	// Backward takes dE/dOutput and returns dE/dInput, using the input
	// cached by the last training-mode Forward.
	Backward(dEdO *tensor.Tensor[B]) (*tensor.Tensor[B], error)

	// Parameters returns the trainable parameters (empty for stateless units).
	Parameters() []*Parameter[B]
}

// unit carries the state shared by all differentiable units.
type unit[B tensor.Backend] struct {
	name     string
	training bool
	cached   *tensor.Tensor[B]
}

func newUnit[B tensor.Backend](name string) unit[B] {
	return unit[B]{name: name, training: true}
}

// Name returns the unit name.
func (u *unit[B]) Name() string {
	return u.name
}

// Training reports whether the unit is in training mode.
func (u *unit[B]) Training() bool {
	return u.training
}

// SetTraining sets the training mode; inference mode drops the cached input.
func (u *unit[B]) SetTraining(training bool) {
	u.training = training
	if !training {
		u.cached = nil
	}
}

// Parameters returns nil; adaptive units override it.
func (u *unit[B]) Parameters() []*Parameter[B] {
	return nil
}

func (u *unit[B]) remember(input *tensor.Tensor[B]) {
	if u.training {
		u.cached = input
	}
}

func (u *unit[B]) cachedInput() (*tensor.Tensor[B], error) {
	if u.cached == nil {
		return nil, errors.Wrapf(ErrNoCachedInput, "%s: backward requires a training-mode forward", u.name)
	}
	return u.cached, nil
}

// compute runs fn and turns a backend panic (shape or dimension violation)
// into an error tagged with op.
func compute[B tensor.Backend](op string, fn func() *tensor.Tensor[B]) (out *tensor.Tensor[B], err error) {
	err = exceptions.TryCatch[error](func() { out = fn() })
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return out, nil
}

// computeValue is compute for scalar results.
func computeValue(op string, fn func() float64) (value float64, err error) {
	err = exceptions.TryCatch[error](func() { value = fn() })
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return value, nil
}
