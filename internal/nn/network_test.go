package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/optim"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// handNetwork builds Dense(2→3) → ReLU → Dense(3→1) with fixed weights:
//
//	W1 = [[0.1, 0.2], [-0.3, 0.4], [0.5, -0.6]], b1 = 0
//	W2 = [[0.3, -0.2, 0.1]],                     b2 = 0
func handNetwork() (*nn.Network[backendT], *nn.Linear[backendT], *nn.Linear[backendT]) {
	backend := cpu.New()
	l1 := nn.NewLinear(2, 3, backend, nn.WithName("hidden"))
	l2 := nn.NewLinear(3, 1, backend, nn.WithName("out"))
	copy(l1.Weight().Tensor().Data(), []float64{0.1, 0.2, -0.3, 0.4, 0.5, -0.6})
	copy(l2.Weight().Tensor().Data(), []float64{0.3, -0.2, 0.1})
	net := nn.NewNetwork("hand", l1, nn.NewReLU[backendT](), l2)
	net.SetLoss(nn.NewMSELoss[backendT]())
	return net, l1, l2
}

// TestNetwork_EndToEndSGDStep trains one step on x=[1, 2], t=[0].
//
// Forward:  h = [0.5, 0.5, -0.7], relu = [0.5, 0.5, 0], y = 0.05, loss = 0.0025
// Backward: dy = 0.1, dW2 = [0.05, 0.05, 0], db2 = 0.1
//
//	dh = [0.03, -0.02, 0] (masked), dW1 = dh ⊗ x, db1 = dh
func TestNetwork_EndToEndSGDStep(t *testing.T) {
	net, l1, l2 := handNetwork()
	net.SetOptimizer(optim.NewSGD(optim.SGDConfig{LR: 0.1}, cpu.New()), false)

	x := fromSlice(t, []float64{1, 2}, 1, 2)
	target := fromSlice(t, []float64{0}, 1, 1)

	pred, err := net.Forward(x)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, pred.Item(), 1e-12)

	loss, err := net.ComputeLoss(pred, target)
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, loss, 1e-12)

	_, err = net.Backward(pred, target)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.05, 0.05, 0}, l2.Weight().Grad().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.1}, l2.Bias().Grad().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.03, 0.06, -0.02, -0.04, 0, 0}, l1.Weight().Grad().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.03, -0.02, 0}, l1.Bias().Grad().Data(), 1e-12)

	require.NoError(t, net.UpdateParameters())
	assert.InDeltaSlice(t, []float64{0.295, -0.205, 0.1}, l2.Weight().Tensor().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.01}, l2.Bias().Tensor().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.097, 0.194, -0.298, 0.404, 0.5, -0.6}, l1.Weight().Tensor().Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.003, 0.002, 0}, l1.Bias().Tensor().Data(), 1e-12)
}

func TestNetwork_TrainStepMatchesManualStep(t *testing.T) {
	net, _, l2 := handNetwork()
	net.SetOptimizer(optim.NewSGD(optim.SGDConfig{LR: 0.1}, cpu.New()), false)

	loss, err := net.TrainStep(fromSlice(t, []float64{1, 2}, 1, 2), fromSlice(t, []float64{0}, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, loss, 1e-12)
	assert.InDelta(t, 0.295, l2.Weight().Tensor().At(0, 0), 1e-12)
}

// TestNetwork_FusedSoftmaxCrossEntropy checks that the fused path equals
// (softmax - onehot)/N and agrees with chaining the dense Jacobian through
// the probability-space cross-entropy gradient.
func TestNetwork_FusedSoftmaxCrossEntropy(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	backend := cpu.New()
	logits := tensor.Randn(tensor.Shape{4, 3}, 0, 1.5, rng, backend)
	labels := fromSlice(t, []float64{2, 0, 1, 2}, 4)

	softmax := nn.NewSoftmax[backendT]()
	net := nn.NewNetwork[backendT]("fused", softmax)
	net.SetLoss(nn.NewCrossEntropyLoss[backendT](true, false))

	probs, err := net.Forward(logits)
	require.NoError(t, err)
	fused, err := net.Backward(probs, labels)
	require.NoError(t, err)

	oneHot := tensor.OneHot(labels, 3)
	for i := range fused.Data() {
		want := (probs.Data()[i] - oneHot.Data()[i]) / 4
		assert.InDelta(t, want, fused.Data()[i], 1e-12)
	}

	// Generic chain: probability-space gradient, then the Softmax Jacobian.
	probCE := nn.NewCrossEntropyLoss[backendT](false, false)
	dProbs, err := probCE.Gradient(probs, labels)
	require.NoError(t, err)
	chained, err := softmax.Backward(dProbs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, chained.Data(), fused.Data(), 1e-9)

	// The loss is evaluated on the cached logits.
	loss, err := net.ComputeLoss(probs, labels)
	require.NoError(t, err)
	direct, err := nn.NewCrossEntropyLoss[backendT](true, false).Compute(logits, labels)
	require.NoError(t, err)
	assert.InDelta(t, direct, loss, 1e-12)

	// Without a cache the same value comes from the probabilities.
	net.SetTraining(false)
	inference, err := net.ComputeLoss(probs, labels)
	require.NoError(t, err)
	assert.InDelta(t, direct, inference, 1e-9)
}

// TestNetwork_FusedLossScoresGivenPrediction checks that the fused loss uses
// the cached logits only for the output of the last Forward.
func TestNetwork_FusedLossScoresGivenPrediction(t *testing.T) {
	net := nn.NewNetwork[backendT]("fused", nn.NewSoftmax[backendT]())
	net.SetLoss(nn.NewCrossEntropyLoss[backendT](true, false))
	labels := fromSlice(t, []float64{0, 1}, 2)
	ce := nn.NewCrossEntropyLoss[backendT](true, false)

	x1 := fromSlice(t, []float64{10, 0, 0, 10}, 2, 2)
	x2 := fromSlice(t, []float64{0, 10, 10, 0}, 2, 2)
	_, err := net.Forward(x1)
	require.NoError(t, err)
	pred2, err := net.Predict(x2)
	require.NoError(t, err)

	loss, err := net.ComputeLoss(pred2, labels)
	require.NoError(t, err)
	want, err := ce.Compute(x2, labels)
	require.NoError(t, err)
	assert.InDelta(t, 10.000045, want, 1e-5)
	assert.InDelta(t, want, loss, 1e-6)

	pred1, err := net.Forward(x1)
	require.NoError(t, err)
	loss, err = net.ComputeLoss(pred1, labels)
	require.NoError(t, err)
	want, err = ce.Compute(x1, labels)
	require.NoError(t, err)
	assert.InDelta(t, want, loss, 1e-12)
}

// TestNetwork_FusedSkipsSoftmaxBackward builds Linear → Softmax and checks the
// Linear gradients equal those of Linear alone trained on logits.
func TestNetwork_FusedSkipsSoftmaxBackward(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(2))
	x := tensor.Randn(tensor.Shape{5, 4}, 0, 1, rng, backend)
	labels := fromSlice(t, []float64{0, 1, 2, 1, 0}, 5)

	withSoftmax := nn.NewLinear(4, 3, backend, nn.WithRand(rand.New(rand.NewSource(8))))
	logitsOnly := nn.NewLinear(4, 3, backend, nn.WithRand(rand.New(rand.NewSource(8))))

	a := nn.NewNetwork("a", withSoftmax, nn.NewSoftmax[backendT]())
	a.SetLoss(nn.NewCrossEntropyLoss[backendT](true, false))
	b := nn.NewNetwork[backendT]("b", logitsOnly)
	b.SetLoss(nn.NewCrossEntropyLoss[backendT](true, false))

	for _, net := range []*nn.Network[backendT]{a, b} {
		pred, err := net.Forward(x)
		require.NoError(t, err)
		_, err = net.Backward(pred, labels)
		require.NoError(t, err)
	}
	assert.InDeltaSlice(t, logitsOnly.Weight().Grad().Data(), withSoftmax.Weight().Grad().Data(), 1e-12)
}

func TestNetwork_SetOptimizerBroadcast(t *testing.T) {
	backend := cpu.New()
	custom := optim.NewAdam(optim.AdamConfig{}, backend)
	l1 := nn.NewLinear(2, 2, backend)
	l1.SetOptimizer(custom, false)
	l2 := nn.NewLinear(2, 2, backend)

	net := nn.NewNetwork("net", l1, nn.NewReLU[backendT](), l2)
	shared := optim.NewSGD(optim.SGDConfig{}, backend)

	assert.Equal(t, 1, net.SetOptimizer(shared, false))
	assert.Same(t, custom, l1.Optimizer())
	assert.Same(t, shared, l2.Optimizer())

	// Units added later receive the default.
	l3 := nn.NewLinear(2, 1, backend)
	net.Add(l3)
	assert.Same(t, shared, l3.Optimizer())

	assert.Equal(t, 3, net.SetOptimizer(shared, true))
	assert.Same(t, shared, l1.Optimizer())
}

func TestNetwork_Errors(t *testing.T) {
	net, _, _ := handNetwork()
	x := fromSlice(t, []float64{1, 2}, 1, 2)
	target := fromSlice(t, []float64{0}, 1, 1)

	// Predict does not cache, so Backward has nothing to work with.
	pred, err := net.Predict(x)
	require.NoError(t, err)
	_, err = net.Backward(pred, target)
	assert.ErrorIs(t, err, nn.ErrNoCachedInput)

	// Mis-wired input surfaces at forward time.
	_, err = net.Forward(fromSlice(t, []float64{1, 2, 3}, 1, 3))
	assert.Error(t, err)

	_, err = net.TrainStep(x, target)
	assert.ErrorIs(t, err, nn.ErrNoOptimizer)

	empty := nn.NewNetwork[backendT]("empty")
	_, err = empty.ComputeLoss(pred, target)
	assert.ErrorIs(t, err, nn.ErrNoLoss)
}

func TestNetwork_StateDict(t *testing.T) {
	net, l1, _ := handNetwork()
	assert.Equal(t, 13, net.NumParameters())

	sd := net.StateDict()
	assert.ElementsMatch(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, keys(sd))

	other, o1, _ := handNetwork()
	copy(o1.Weight().Tensor().Data(), []float64{9, 9, 9, 9, 9, 9})
	idBefore := o1.Weight().ID()
	require.NoError(t, other.LoadStateDict(sd))
	assert.Equal(t, l1.Weight().Tensor().Data(), o1.Weight().Tensor().Data())
	assert.Equal(t, idBefore, o1.Weight().ID())

	keysByID := net.ParamKeys()
	assert.Equal(t, "0.weight", keysByID[l1.Weight().ID()])
	assert.Equal(t, nn.ParamRef{ID: l1.Bias().ID(), Shape: tensor.Shape{3}}, net.ParamRefs()["0.bias"])

	delete(sd, "2.bias")
	assert.Error(t, other.LoadStateDict(sd))
}

func TestNetwork_Walk(t *testing.T) {
	net, _, _ := handNetwork()
	var names []string
	var counts []int
	require.NoError(t, net.Walk(func(i int, layer nn.Function[backendT], params []*nn.Parameter[backendT]) error {
		names = append(names, layer.Name())
		counts = append(counts, len(params))
		return nil
	}))
	assert.Equal(t, []string{"hidden", "relu", "out"}, names)
	assert.Equal(t, []int{2, 0, 2}, counts)
}

// TestNetwork_LearnsXOR is a small convergence smoke test.
func TestNetwork_LearnsXOR(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(42))
	net := nn.NewNetwork("xor",
		nn.NewLinear(2, 8, backend, nn.WithRand(rng)),
		nn.NewTanh[backendT](),
		nn.NewLinear(8, 1, backend, nn.WithRand(rng)),
	)
	net.SetLoss(nn.NewBCELoss[backendT](true))
	net.SetOptimizer(optim.NewAdam(optim.AdamConfig{LR: 0.05}, backend), false)

	x := fromSlice(t, []float64{0, 0, 0, 1, 1, 0, 1, 1}, 4, 2)
	y := fromSlice(t, []float64{0, 1, 1, 0}, 4, 1)

	first, err := net.TrainStep(x, y)
	require.NoError(t, err)
	var last float64
	for i := 0; i < 500; i++ {
		last, err = net.TrainStep(x, y)
		require.NoError(t, err)
	}
	assert.Less(t, last, first/4)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
