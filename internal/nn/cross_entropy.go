package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// CrossEntropyLoss computes categorical cross-entropy for multi-class
// classification.
//
// Predictions are [batch, classes]. Targets are one-hot [batch, classes]
// when oneHot is set, otherwise class indices of shape [batch] or [batch, 1].
//
// With fromLogits the predictions are raw scores and the loss goes through
// LogSoftmax (log-sum-exp trick):
//
//	Loss = -Σ t · (z - logsumexp(z)) / N
//	∂L/∂z = (softmax(z) - t) / N
//
// Without it the predictions are probabilities:
//
//	Loss = -Σ t · log(y) / N
//	∂L/∂y = -t / y / N
//
// When a Network ends in a Softmax unit and uses this loss with fromLogits,
// the Softmax Jacobian is skipped and FusedGradient seeds the backward pass.
type CrossEntropyLoss[B tensor.Backend] struct {
	lossUnit[B]
	fromLogits bool
	oneHot     bool
}

// NewCrossEntropyLoss creates a categorical cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend](fromLogits, oneHot bool) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{
		lossUnit:   newLossUnit[B]("categorical_crossentropy"),
		fromLogits: fromLogits,
		oneHot:     oneHot,
	}
}

// FromLogits reports whether predictions are raw scores.
func (c *CrossEntropyLoss[B]) FromLogits() bool {
	return c.fromLogits
}

// OneHot reports whether targets are already one-hot encoded.
func (c *CrossEntropyLoss[B]) OneHot() bool {
	return c.oneHot
}

// Compute returns the batch-mean cross-entropy.
func (c *CrossEntropyLoss[B]) Compute(prediction, target *tensor.Tensor[B]) (float64, error) {
	t, err := c.targets(prediction, target)
	if err != nil {
		return 0, err
	}
	batch, classes := prediction.Shape()[0], prediction.Shape()[1]
	ys, ts := prediction.Data(), t.Data()

	var total float64
	for b := 0; b < batch; b++ {
		row := ys[b*classes : (b+1)*classes]
		trow := ts[b*classes : (b+1)*classes]
		if c.fromLogits {
			lse := logSumExp(row)
			for i, z := range row {
				total -= trow[i] * (z - lse)
			}
			continue
		}
		for i, p := range row {
			if trow[i] != 0 {
				total -= trow[i] * math.Log(clip(p))
			}
		}
	}
	return total / float64(batch), nil
}

// Gradient returns dLoss/dPrediction.
func (c *CrossEntropyLoss[B]) Gradient(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	t, err := c.targets(prediction, target)
	if err != nil {
		return nil, err
	}
	if c.fromLogits {
		probs, err := compute(c.name+" gradient", func() *tensor.Tensor[B] { return softmax(prediction) })
		if err != nil {
			return nil, err
		}
		return c.fused(probs, t), nil
	}

	n := float64(prediction.Shape()[0])
	out := tensor.ZerosLike(prediction)
	ys, ts, dst := prediction.Data(), t.Data(), out.Data()
	for i, p := range ys {
		dst[i] = -ts[i] / clip(p) / n
	}
	return out, nil
}

// FusedGradient returns (probs - onehot(target)) / N: the gradient w.r.t. the
// logits of Softmax followed by this loss, given the Softmax output.
func (c *CrossEntropyLoss[B]) FusedGradient(probs, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	t, err := c.targets(probs, target)
	if err != nil {
		return nil, err
	}
	return c.fused(probs, t), nil
}

func (c *CrossEntropyLoss[B]) fused(probs, oneHot *tensor.Tensor[B]) *tensor.Tensor[B] {
	return probs.Sub(oneHot).MulScalar(1 / float64(probs.Shape()[0]))
}

// targets validates prediction and returns the one-hot target.
func (c *CrossEntropyLoss[B]) targets(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	shape := prediction.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("%s: predictions must be [batch, classes], got %v", c.name, shape)
	}
	if c.oneHot {
		if !target.Shape().Equal(shape) {
			return nil, errors.Errorf("%s: one-hot target shape %v does not match prediction shape %v",
				c.name, target.Shape(), shape)
		}
		return target, nil
	}
	if target.NumElements() != shape[0] {
		return nil, errors.Errorf("%s: expected %d class indices, got target shape %v",
			c.name, shape[0], target.Shape())
	}
	return compute(c.name+" one-hot", func() *tensor.Tensor[B] { return tensor.OneHot(target, shape[1]) })
}

// logSumExp computes log(Σ exp(z)) as max(z) + log(Σ exp(z - max(z))).
func logSumExp(z []float64) float64 {
	maxVal := math.Inf(-1)
	for _, v := range z {
		maxVal = math.Max(maxVal, v)
	}
	var sum float64
	for _, v := range z {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}
