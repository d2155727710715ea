package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Loss is a terminal unit: it compares a prediction with a target and seeds
// backpropagation with the gradient of the loss w.r.t. the prediction.
//
// The single-input Forward, Call and Backward inherited from Function are
// meaningless for a loss and always fail with ErrLossForward.
//
// Example:
//
//	mse := nn.NewMSELoss[*cpu.CPUBackend]()
//	loss, _ := mse.Compute(pred, target)
//	dEdY, _ := mse.Gradient(pred, target)
type Loss[B tensor.Backend] interface {
	Function[B]

	// Compute returns the batch-mean loss.
	Compute(prediction, target *tensor.Tensor[B]) (float64, error)

	// Gradient returns dLoss/dPrediction, shaped like prediction.
	Gradient(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error)
}

// lossUnit rejects the single-input protocol.
type lossUnit[B tensor.Backend] struct {
	unit[B]
}

func newLossUnit[B tensor.Backend](name string) lossUnit[B] {
	return lossUnit[B]{unit: newUnit[B](name)}
}

// Forward always fails: a loss needs a prediction and a target.
func (l *lossUnit[B]) Forward(*tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return nil, errors.Wrapf(ErrLossForward, "%s.Forward", l.name)
}

// Call always fails: a loss needs a prediction and a target.
func (l *lossUnit[B]) Call(*tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return nil, errors.Wrapf(ErrLossForward, "%s.Call", l.name)
}

// Backward always fails: use Gradient(prediction, target).
func (l *lossUnit[B]) Backward(*tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return nil, errors.Wrapf(ErrLossForward, "%s.Backward", l.name)
}

// alignTarget returns target shaped like prediction. A target whose shape
// differs from the prediction only by axes of size 1 ([N] vs [N,1]) is
// reshaped; any other mismatch is an error.
func alignTarget[B tensor.Backend](op string, prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	if prediction.Shape().Equal(target.Shape()) {
		return target, nil
	}
	if !squeezed(prediction.Shape()).Equal(squeezed(target.Shape())) {
		return nil, errors.Errorf("%s: prediction shape %v does not match target shape %v",
			op, prediction.Shape(), target.Shape())
	}
	return target.Reshape(prediction.Shape()...), nil
}

// squeezed drops the size-1 axes of shape.
func squeezed(shape tensor.Shape) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for _, d := range shape {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((y - t)²) over all elements.
// Gradient = 2(y - t) / numel, which is 2(y - t)/N for the usual [N, 1] output.
type MSELoss[B tensor.Backend] struct {
	lossUnit[B]
}

// NewMSELoss creates a new MSE loss.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] {
	return &MSELoss[B]{lossUnit: newLossUnit[B]("mse")}
}

// Compute returns mean((y - t)²).
func (m *MSELoss[B]) Compute(prediction, target *tensor.Tensor[B]) (float64, error) {
	t, err := alignTarget("mse", prediction, target)
	if err != nil {
		return 0, err
	}
	return computeValue("mse", func() float64 {
		diff := prediction.Sub(t)
		return diff.Mul(diff).Mean()
	})
}

// Gradient returns 2(y - t)/numel.
func (m *MSELoss[B]) Gradient(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	t, err := alignTarget("mse", prediction, target)
	if err != nil {
		return nil, err
	}
	return compute("mse gradient", func() *tensor.Tensor[B] {
		return prediction.Sub(t).MulScalar(2.0 / float64(prediction.NumElements()))
	})
}

// BCELoss computes binary cross-entropy.
//
// With fromLogits the prediction holds raw scores z, and the loss uses the
// overflow-free form max(z, 0) - z·t + log(1 + exp(-|z|)) with gradient
// (σ(z) - t)/numel. Otherwise the prediction holds probabilities, clipped to
// [1e-7, 1-1e-7].
type BCELoss[B tensor.Backend] struct {
	lossUnit[B]
	fromLogits bool
}

// NewBCELoss creates a binary cross-entropy loss.
func NewBCELoss[B tensor.Backend](fromLogits bool) *BCELoss[B] {
	return &BCELoss[B]{lossUnit: newLossUnit[B]("binary_crossentropy"), fromLogits: fromLogits}
}

// FromLogits reports whether predictions are raw scores.
func (l *BCELoss[B]) FromLogits() bool {
	return l.fromLogits
}

// Compute returns the mean binary cross-entropy.
func (l *BCELoss[B]) Compute(prediction, target *tensor.Tensor[B]) (float64, error) {
	t, err := alignTarget(l.name, prediction, target)
	if err != nil {
		return 0, err
	}
	ys, ts := prediction.Data(), t.Data()
	var total float64
	for i, y := range ys {
		if l.fromLogits {
			total += math.Max(y, 0) - y*ts[i] + math.Log1p(math.Exp(-math.Abs(y)))
			continue
		}
		p := clip(y)
		total -= ts[i]*math.Log(p) + (1-ts[i])*math.Log(1-p)
	}
	return total / float64(len(ys)), nil
}

// Gradient returns dLoss/dPrediction.
func (l *BCELoss[B]) Gradient(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	t, err := alignTarget(l.name, prediction, target)
	if err != nil {
		return nil, err
	}
	out := tensor.ZerosLike(prediction)
	ys, ts, dst := prediction.Data(), t.Data(), out.Data()
	n := float64(len(ys))
	for i, y := range ys {
		if l.fromLogits {
			dst[i] = (stableSigmoid(y) - ts[i]) / n
			continue
		}
		p := clip(y)
		dst[i] = (p - ts[i]) / (p * (1 - p)) / n
	}
	return out, nil
}

// KLStandardNormal is the KL divergence of N(mu, exp(logVar)) from N(0, 1),
// as used by variational models.
//
// Loss = -0.5 · Σ(1 + logVar - mu² - exp(logVar)) / N.
//
// The loss has two inputs. Compute and Gradient take them as
// (prediction=mu, target=logVar); Gradients returns the two halves separately.
type KLStandardNormal[B tensor.Backend] struct {
	lossUnit[B]
}

// NewKLStandardNormal creates the KL divergence loss.
func NewKLStandardNormal[B tensor.Backend]() *KLStandardNormal[B] {
	return &KLStandardNormal[B]{lossUnit: newLossUnit[B]("kl_divergence")}
}

// Compute returns the batch-mean KL divergence.
func (k *KLStandardNormal[B]) Compute(mu, logVar *tensor.Tensor[B]) (float64, error) {
	n, err := k.batch(mu, logVar)
	if err != nil {
		return 0, err
	}
	lv := logVar.Data()
	var total float64
	for i, m := range mu.Data() {
		total += 1 + lv[i] - m*m - math.Exp(lv[i])
	}
	return -0.5 * total / float64(n), nil
}

// Gradients returns (mu/N, 0.5·(exp(logVar) - 1)/N).
func (k *KLStandardNormal[B]) Gradients(mu, logVar *tensor.Tensor[B]) (dMu, dLogVar *tensor.Tensor[B], err error) {
	n, err := k.batch(mu, logVar)
	if err != nil {
		return nil, nil, err
	}
	scale := 1 / float64(n)
	dMu = mu.MulScalar(scale)
	dLogVar = logVar.Exp().AddScalar(-1).MulScalar(0.5 * scale)
	return dMu, dLogVar, nil
}

// Gradient returns both gradients concatenated along the last axis,
// [dMu | dLogVar], matching a layer that emits mu and logVar side by side.
func (k *KLStandardNormal[B]) Gradient(mu, logVar *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	dMu, dLogVar, err := k.Gradients(mu, logVar)
	if err != nil {
		return nil, err
	}
	return compute(k.name+" gradient", func() *tensor.Tensor[B] {
		return tensor.Cat([]*tensor.Tensor[B]{dMu, dLogVar}, -1)
	})
}

func (k *KLStandardNormal[B]) batch(mu, logVar *tensor.Tensor[B]) (int, error) {
	if !mu.Shape().Equal(logVar.Shape()) {
		return 0, errors.Errorf("%s: mu shape %v does not match logVar shape %v", k.name, mu.Shape(), logVar.Shape())
	}
	if len(mu.Shape()) == 0 {
		return 1, nil
	}
	return mu.Shape()[0], nil
}

const probEpsilon = 1e-7

func clip(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

// stableSigmoid evaluates 1/(1+exp(-x)) through exp(-|x|), which never overflows.
func stableSigmoid(x float64) float64 {
	e := math.Exp(-math.Abs(x))
	if x >= 0 {
		return 1 / (1 + e)
	}
	return e / (1 + e)
}
