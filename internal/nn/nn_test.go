package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

type backendT = *cpu.CPUBackend

// Helper to check if values are approximately equal.
func floatEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func fromSlice(t *testing.T, data []float64, shape ...int) *tensor.Tensor[backendT] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return x
}

// numericGradient returns d/dx Σ(f(x) ⊙ weights) by central differences.
func numericGradient(x []float64, weights []float64, f func([]float64) []float64) []float64 {
	scalar := func(v []float64) float64 {
		out := f(v)
		var s float64
		for i := range out {
			s += out[i] * weights[i]
		}
		return s
	}
	return fd.Gradient(nil, scalar, x, &fd.Settings{Formula: fd.Central, Step: 1e-6})
}

// TestParameter tests Parameter creation and methods.
func TestParameter(t *testing.T) {
	data := fromSlice(t, []float64{1, 2, 3}, 3)
	param := nn.NewParameter("test_param", data)

	if param.Name() != "test_param" {
		t.Errorf("Name() = %s, want test_param", param.Name())
	}
	if param.Tensor() != data {
		t.Error("Tensor() should return the original tensor")
	}
	if param.Grad() != nil {
		t.Error("Grad() should initially be nil")
	}

	grad := fromSlice(t, []float64{0.1, 0.2, 0.3}, 3)
	param.SetGrad(grad)
	if param.Grad() != grad {
		t.Error("SetGrad() should set the gradient")
	}

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad() should clear the gradient")
	}

	other := nn.NewParameter("other", data)
	assert.NotEqual(t, param.ID(), other.ID(), "every parameter gets its own ID")
}

// TestLinear_Creation tests Linear layer initialization.
func TestLinear_Creation(t *testing.T) {
	layer := nn.NewLinear(10, 5, cpu.New())

	assert.Equal(t, 10, layer.InFeatures())
	assert.Equal(t, 5, layer.OutFeatures())
	assert.Equal(t, tensor.Shape{5, 10}, layer.Weight().Shape())
	assert.Equal(t, tensor.Shape{5}, layer.Bias().Shape())
	for i, v := range layer.Bias().Tensor().Data() {
		if v != 0 {
			t.Errorf("Bias[%d] = %f, want 0", i, v)
		}
	}

	bound := math.Sqrt(6.0 / 15.0)
	for _, v := range layer.Weight().Tensor().Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
	assert.Len(t, layer.Parameters(), 2)
}

func TestLinear_Initializers(t *testing.T) {
	backend := cpu.New()
	for _, mode := range []string{nn.XavierUniform, nn.XavierNormal, nn.HeUniform, nn.HeNormal,
		nn.LecunUniform, nn.UniformInit, nn.NormalInit} {
		w, err := nn.Initialize(4, 3, mode, rand.New(rand.NewSource(7)), backend)
		require.NoError(t, err, mode)
		assert.Equal(t, tensor.Shape{4, 3}, w.Shape())
	}
	_, err := nn.Initialize(4, 3, "orthogonal", nil, backend)
	assert.Error(t, err)

	// Same seed, same weights.
	a := nn.NewLinear(3, 2, backend, nn.WithRand(rand.New(rand.NewSource(1))))
	b := nn.NewLinear(3, 2, backend, nn.WithRand(rand.New(rand.NewSource(1))))
	assert.Equal(t, a.Weight().Tensor().Data(), b.Weight().Tensor().Data())
}

// TestLinear_Forward tests Linear layer forward pass.
func TestLinear_Forward(t *testing.T) {
	layer := nn.NewLinear(2, 2, cpu.New())

	// Weight: [[1, 2], [3, 4]] (out=2, in=2), bias: [0.5, 1.0]
	copy(layer.Weight().Tensor().Data(), []float64{1, 2, 3, 4})
	copy(layer.Bias().Tensor().Data(), []float64{0.5, 1.0})

	output, err := layer.Forward(fromSlice(t, []float64{1, 1}, 1, 2))
	require.NoError(t, err)

	// x @ W.T = [1, 1] @ [[1, 3], [2, 4]] = [3, 7]; + b = [3.5, 8.0]
	expected := []float64{3.5, 8.0}
	for i, exp := range expected {
		if !floatEqual(output.Data()[i], exp, 1e-12) {
			t.Errorf("Output[%d] = %f, want %f", i, output.Data()[i], exp)
		}
	}
}

func TestLinear_BackwardHandComputed(t *testing.T) {
	layer := nn.NewLinear(2, 2, cpu.New())
	copy(layer.Weight().Tensor().Data(), []float64{1, 2, 3, 4})

	x := fromSlice(t, []float64{1, 2, 3, 4}, 2, 2)
	_, err := layer.Forward(x)
	require.NoError(t, err)

	dx, err := layer.Backward(fromSlice(t, []float64{1, 0, 0, 1}, 2, 2))
	require.NoError(t, err)

	// dX = dEdO @ W = [[1, 2], [3, 4]]
	assert.Equal(t, []float64{1, 2, 3, 4}, dx.Data())
	// dW = dEdOᵀ @ x = [[1, 2], [3, 4]]
	assert.Equal(t, []float64{1, 2, 3, 4}, layer.Weight().Grad().Data())
	// db = column sums of dEdO
	assert.Equal(t, []float64{1, 1}, layer.Bias().Grad().Data())
}

// TestLinear_GradientCheck compares Backward against finite differences for
// the input, the weights and the bias, on a rank-3 input.
func TestLinear_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	backend := cpu.New()
	layer := nn.NewLinear(3, 2, backend, nn.WithRand(rng))
	copy(layer.Bias().Tensor().Data(), []float64{0.1, -0.2})

	x := tensor.Randn(tensor.Shape{2, 2, 3}, 0, 1, rng, backend)
	upstream := tensor.Randn(tensor.Shape{2, 2, 2}, 0, 1, rng, backend)

	_, err := layer.Forward(x)
	require.NoError(t, err)
	dx, err := layer.Backward(upstream)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), dx.Shape())

	run := func() []float64 {
		out, err := layer.Call(x)
		require.NoError(t, err)
		return out.Data()
	}

	checks := []struct {
		name     string
		values   []float64
		analytic []float64
	}{
		{"input", x.Data(), dx.Data()},
		{"weight", layer.Weight().Tensor().Data(), layer.Weight().Grad().Data()},
		{"bias", layer.Bias().Tensor().Data(), layer.Bias().Grad().Data()},
	}
	for _, c := range checks {
		original := append([]float64(nil), c.values...)
		numeric := numericGradient(original, upstream.Data(), func(v []float64) []float64 {
			copy(c.values, v)
			return run()
		})
		copy(c.values, original)
		assert.InDeltaSlice(t, numeric, c.analytic, 1e-6, c.name)
	}
}

func TestLinear_Errors(t *testing.T) {
	layer := nn.NewLinear(3, 2, cpu.New())

	_, err := layer.Backward(fromSlice(t, []float64{1, 1}, 1, 2))
	assert.ErrorIs(t, err, nn.ErrNoCachedInput)

	_, err = layer.Forward(fromSlice(t, []float64{1, 2}, 1, 2))
	assert.Error(t, err, "wrong feature count")

	err = layer.UpdateParameters()
	assert.ErrorIs(t, err, nn.ErrNoOptimizer)

	layer.SetOptimizer(&recordingOptimizer{name: "rec"}, false)
	err = layer.UpdateParameters()
	assert.ErrorIs(t, err, nn.ErrNoGradient)
}

func TestLinear_BackwardRequiresOutputShape(t *testing.T) {
	layer := nn.NewLinear(2, 3, cpu.New())
	out, err := layer.Forward(fromSlice(t, []float64{1, 2, 3, 4}, 2, 2))
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 3}, out.Shape())

	// Same element count, transposed layout.
	_, err = layer.Backward(fromSlice(t, []float64{1, 2, 3, 4, 5, 6}, 3, 2))
	assert.Error(t, err)
	assert.Nil(t, layer.Weight().Grad())

	_, err = layer.Backward(fromSlice(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3))
	assert.NoError(t, err)

	relu := nn.NewReLU[backendT]()
	_, err = relu.Forward(out)
	require.NoError(t, err)
	_, err = relu.Backward(fromSlice(t, []float64{1, 1, 1}, 1, 3))
	assert.Error(t, err, "broadcastable but mis-shaped gradient")
}

func TestLinear_RejectedForwardKeepsCache(t *testing.T) {
	layer := nn.NewLinear(2, 1, cpu.New())
	copy(layer.Weight().Tensor().Data(), []float64{0.5, -1})
	x := fromSlice(t, []float64{1, 2}, 1, 2)
	dEdO := fromSlice(t, []float64{1}, 1, 1)

	_, err := layer.Forward(x)
	require.NoError(t, err)
	_, err = layer.Forward(fromSlice(t, []float64{1, 2, 3}, 1, 3))
	require.Error(t, err)

	_, err = layer.Backward(dEdO)
	require.NoError(t, err)
	// dW = dEdOᵀ·x with the accepted input.
	assert.Equal(t, []float64{1, 2}, layer.Weight().Grad().Data())
}

func TestLinear_FailedUpdateLeavesParametersUntouched(t *testing.T) {
	layer := nn.NewLinear(2, 1, cpu.New())
	opt := &recordingOptimizer{name: "rec"}
	layer.SetOptimizer(opt, false)

	_, err := layer.Forward(fromSlice(t, []float64{1, 2}, 1, 2))
	require.NoError(t, err)
	_, err = layer.Backward(fromSlice(t, []float64{1}, 1, 1))
	require.NoError(t, err)
	layer.Bias().SetGrad(fromSlice(t, []float64{1, 1}, 2))

	assert.Error(t, layer.UpdateParameters())
	assert.Empty(t, opt.calls)
	assert.NotNil(t, layer.Weight().Grad())
	assert.NotNil(t, layer.Bias().Grad())
}

func TestLinear_UpdateClearsGradients(t *testing.T) {
	layer := nn.NewLinear(2, 1, cpu.New())
	opt := &recordingOptimizer{name: "rec"}
	layer.SetOptimizer(opt, false)

	_, err := layer.Forward(fromSlice(t, []float64{1, 2}, 1, 2))
	require.NoError(t, err)
	_, err = layer.Backward(fromSlice(t, []float64{1}, 1, 1))
	require.NoError(t, err)

	require.NoError(t, layer.UpdateParameters())
	assert.Equal(t, []nn.ParamID{layer.Weight().ID(), layer.Bias().ID()}, opt.calls)

	// A second update without a fresh backward must be rejected.
	assert.ErrorIs(t, layer.UpdateParameters(), nn.ErrNoGradient)
	assert.Len(t, opt.calls, 2)
}

func TestSetOptimizerRespectsExisting(t *testing.T) {
	layer := nn.NewLinear(2, 1, cpu.New())
	first := &recordingOptimizer{name: "first"}
	second := &recordingOptimizer{name: "second"}

	assert.True(t, layer.SetOptimizer(first, false))
	assert.False(t, layer.SetOptimizer(second, false))
	assert.Same(t, first, layer.Optimizer())

	assert.True(t, layer.SetOptimizer(second, true))
	assert.Same(t, second, layer.Optimizer())
}

func TestTrainingModeDropsCache(t *testing.T) {
	relu := nn.NewReLU[backendT]()
	x := fromSlice(t, []float64{1, -1}, 1, 2)

	_, err := relu.Forward(x)
	require.NoError(t, err)
	relu.SetTraining(false)
	assert.False(t, relu.Training())

	_, err = relu.Backward(fromSlice(t, []float64{1, 1}, 1, 2))
	assert.ErrorIs(t, err, nn.ErrNoCachedInput)

	// Forward in inference mode does not cache either.
	_, err = relu.Forward(x)
	require.NoError(t, err)
	_, err = relu.Backward(fromSlice(t, []float64{1, 1}, 1, 2))
	assert.ErrorIs(t, err, nn.ErrNoCachedInput)
}

// recordingOptimizer records the parameters it is asked to update.
type recordingOptimizer struct {
	name  string
	calls []nn.ParamID
}

func (r *recordingOptimizer) Name() string { return r.name }

func (r *recordingOptimizer) Update(p *nn.Parameter[backendT], _ *tensor.Tensor[backendT]) error {
	r.calls = append(r.calls, p.ID())
	return nil
}
