package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, 6.0, x.At(1, 2))
	assert.Equal(t, 2.0, x.At(0, 1))

	x.Set(42, 1, 0)
	assert.Equal(t, 42.0, x.Data()[3])

	_, err = tensor.FromSlice([]float64{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)
}

func TestTensorAtOutOfBounds(t *testing.T) {
	x := tensor.Zeros(tensor.Shape{2, 2}, cpu.New())
	err := exceptions.TryCatch[error](func() { x.At(2, 0) })
	assert.Error(t, err)
}

func TestReshapeInfer(t *testing.T) {
	x := tensor.Ones(tensor.Shape{2, 3, 4}, cpu.New())

	y := x.Reshape(-1, 4)
	assert.Equal(t, tensor.Shape{6, 4}, y.Shape())

	err := exceptions.TryCatch[error](func() { x.Reshape(5, -1) })
	assert.Error(t, err)
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	full := tensor.Full(tensor.Shape{2, 2}, 3.5, backend)
	for _, v := range full.Data() {
		assert.Equal(t, 3.5, v)
	}

	rng := rand.New(rand.NewSource(1))
	u := tensor.Uniform(tensor.Shape{100}, -0.5, 0.5, rng, backend)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.Less(t, v, 0.5)
	}

	z := tensor.ZerosLike(u)
	assert.Equal(t, u.Shape(), z.Shape())
	assert.Equal(t, 0.0, z.Sum().Item())
}

func TestOneHot(t *testing.T) {
	backend := cpu.New()
	labels, err := tensor.FromSlice([]float64{2, 0, 1}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	oh := tensor.OneHot(labels, 3)
	assert.Equal(t, tensor.Shape{3, 3}, oh.Shape())
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0, 0, 1, 0}, oh.Data())

	bad, err := tensor.FromSlice([]float64{3}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	assert.Error(t, exceptions.TryCatch[error](func() { tensor.OneHot(bad, 3) }))
}

func TestCatTensors(t *testing.T) {
	backend := cpu.New()
	a, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float64{5, 6}, tensor.Shape{2, 1}, backend)

	c := tensor.Cat([]*tensor.Tensor[*cpu.CPUBackend]{a, b}, -1)
	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, []float64{1, 2, 5, 3, 4, 6}, c.Data())
}
