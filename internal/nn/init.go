package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Initializer names accepted by Initialize and WithInitializer.
const (
	XavierUniform = "xavier_uniform"
	XavierNormal  = "xavier_normal"
	HeUniform     = "he_uniform"
	HeNormal      = "he_normal"
	LecunUniform  = "lecun_uniform"
	UniformInit   = "uniform"
	NormalInit    = "normal"
)

// Initialize returns a [fanOut, fanIn] weight tensor drawn according to mode.
//
// Bounds and deviations:
//   - xavier_uniform: U(-sqrt(6/(in+out)), sqrt(6/(in+out)))
//   - xavier_normal:  N(0, sqrt(2/(in+out)))
//   - he_uniform:     U(-sqrt(6/in), sqrt(6/in))
//   - he_normal:      N(0, sqrt(2/in))
//   - lecun_uniform:  U(-sqrt(3/in), sqrt(3/in))
//   - uniform:        U(-0.05, 0.05)
//   - normal:         N(0, 0.05)
//
// A nil rng draws from the global math/rand source.
func Initialize[B tensor.Backend](fanOut, fanIn int, mode string, rng *rand.Rand, backend B) (*tensor.Tensor[B], error) {
	if fanOut <= 0 || fanIn <= 0 {
		return nil, errors.Errorf("initialize: invalid fan sizes out=%d in=%d", fanOut, fanIn)
	}
	shape := tensor.Shape{fanOut, fanIn}
	in, out := float64(fanIn), float64(fanOut)

	switch mode {
	case XavierUniform, "":
		bound := math.Sqrt(6.0 / (in + out))
		return tensor.Uniform(shape, -bound, bound, rng, backend), nil
	case XavierNormal:
		return tensor.Randn(shape, 0, math.Sqrt(2.0/(in+out)), rng, backend), nil
	case HeUniform:
		bound := math.Sqrt(6.0 / in)
		return tensor.Uniform(shape, -bound, bound, rng, backend), nil
	case HeNormal:
		return tensor.Randn(shape, 0, math.Sqrt(2.0/in), rng, backend), nil
	case LecunUniform:
		bound := math.Sqrt(3.0 / in)
		return tensor.Uniform(shape, -bound, bound, rng, backend), nil
	case UniformInit:
		return tensor.Uniform(shape, -0.05, 0.05, rng, backend), nil
	case NormalInit:
		return tensor.Randn(shape, 0, 0.05, rng, backend), nil
	}
	return nil, errors.Errorf("initialize: unknown initializer %q", mode)
}
