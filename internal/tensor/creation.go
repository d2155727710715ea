package tensor

import (
	"math/rand"

	"github.com/gomlx/exceptions"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{3, 4}, backend)
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	raw, err := NewRaw(shape)
	if err != nil {
		exceptions.Panicf("zeros: %v", err)
	}
	return New(raw, b)
}

// ZerosLike creates a zero tensor with the shape and backend of t.
func ZerosLike[B Backend](t *Tensor[B]) *Tensor[B] {
	return Zeros(t.Shape(), t.Backend())
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(Shape{3, 3}, 3.14, backend)
func Full[B Backend](shape Shape, value float64, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Uniform creates a tensor with values drawn from U(low, high).
// A nil rng uses the math/rand global source.
func Uniform[B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = low + (high-low)*float64Of(rng)
	}
	return t
}

// Randn creates a tensor with values drawn from N(mean, std²).
// A nil rng uses the math/rand global source.
func Randn[B Backend](shape Shape, mean, std float64, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = mean + std*normOf(rng)
	}
	return t
}

// OneHot converts class indices into a one-hot matrix [N, classes].
// Labels may have shape [N] or [N, 1]; values are truncated to int.
func OneHot[B Backend](labels *Tensor[B], classes int) *Tensor[B] {
	n := labels.NumElements()
	out := Zeros(Shape{n, classes}, labels.Backend())
	data := out.Data()
	for i, v := range labels.Data() {
		c := int(v)
		if c < 0 || c >= classes {
			exceptions.Panicf("one-hot: label %v at row %d out of range [0, %d)", v, i, classes)
		}
		data[i*classes+c] = 1
	}
	return out
}

//nolint:gosec // Using math/rand for initialization and shuffling (not security-critical)
func float64Of(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}

//nolint:gosec // Using math/rand for initialization and shuffling (not security-critical)
func normOf(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.NormFloat64()
	}
	return rng.NormFloat64()
}
