// Package metrics provides training metrics accumulated over an epoch.
//
// A metric is updated once per batch and closed once per epoch:
//
//	acc := metrics.NewAccuracy[*cpu.CPUBackend](false)
//	for x, y := range ds.Batches() {
//	    pred, _ := net.Predict(x)
//	    acc.Update(pred, y)
//	}
//	epochAcc := acc.Epoch() // also appended to acc.History()
package metrics

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Metric accumulates a per-sample score across batches.
type Metric[B tensor.Backend] interface {
	// Name returns a short identifier ("accuracy", "mse").
	Name() string

	// Update accumulates one batch and returns the batch value.
	Update(prediction, target *tensor.Tensor[B]) (float64, error)

	// Epoch returns the value accumulated since the last Epoch or Reset,
	// appends it to the history and resets the accumulator.
	Epoch() float64

	// History returns one value per completed epoch.
	History() []float64

	// Last returns the most recent epoch value, or NaN before the first epoch.
	Last() float64

	// Reset clears the accumulator, keeping the history.
	Reset()
}

// accumulator holds the running sum and history shared by every metric.
type accumulator struct {
	name    string
	sum     float64
	count   float64
	history []float64
}

func (a *accumulator) Name() string {
	return a.name
}

func (a *accumulator) add(sum, count float64) float64 {
	a.sum += sum
	a.count += count
	return sum / count
}

func (a *accumulator) Epoch() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	v := a.sum / a.count
	a.history = append(a.history, v)
	a.Reset()
	return v
}

func (a *accumulator) History() []float64 {
	return a.history
}

func (a *accumulator) Last() float64 {
	if len(a.history) == 0 {
		return math.NaN()
	}
	return a.history[len(a.history)-1]
}

func (a *accumulator) Reset() {
	a.sum, a.count = 0, 0
}

// Accuracy is the fraction of rows whose arg-max class matches the target.
//
// Targets are class indices ([N] or [N, 1]) unless oneHot is set, in which
// case they are [N, C] like the prediction.
type Accuracy[B tensor.Backend] struct {
	accumulator
	oneHot bool
}

// NewAccuracy creates a categorical accuracy metric.
func NewAccuracy[B tensor.Backend](oneHot bool) *Accuracy[B] {
	return &Accuracy[B]{accumulator: accumulator{name: "accuracy"}, oneHot: oneHot}
}

// Update implements Metric.
func (a *Accuracy[B]) Update(prediction, target *tensor.Tensor[B]) (float64, error) {
	shape := prediction.Shape()
	if len(shape) != 2 {
		return 0, errors.Errorf("accuracy: expected prediction [batch, classes], got %v", shape)
	}
	rows, classes := shape[0], shape[1]

	var labels []float64
	if a.oneHot {
		if !target.Shape().Equal(shape) {
			return 0, errors.Errorf("accuracy: one-hot target %v does not match prediction %v", target.Shape(), shape)
		}
		labels = argmaxRows(target.Data(), rows, classes)
	} else {
		if target.NumElements() != rows {
			return 0, errors.Errorf("accuracy: expected %d labels, got shape %v", rows, target.Shape())
		}
		labels = target.Data()
	}

	predicted := argmaxRows(prediction.Data(), rows, classes)
	correct := 0
	for i, p := range predicted {
		if p == labels[i] {
			correct++
		}
	}
	return a.add(float64(correct), float64(rows)), nil
}

// BinaryAccuracy is the fraction of elements whose rounded prediction equals
// the 0/1 target. With fromLogits, predictions are scores and the threshold is 0.
type BinaryAccuracy[B tensor.Backend] struct {
	accumulator
	fromLogits bool
}

// NewBinaryAccuracy creates a binary accuracy metric.
func NewBinaryAccuracy[B tensor.Backend](fromLogits bool) *BinaryAccuracy[B] {
	return &BinaryAccuracy[B]{accumulator: accumulator{name: "accuracy"}, fromLogits: fromLogits}
}

// Update implements Metric.
func (b *BinaryAccuracy[B]) Update(prediction, target *tensor.Tensor[B]) (float64, error) {
	if prediction.NumElements() != target.NumElements() {
		return 0, errors.Errorf("binary accuracy: prediction %v and target %v differ in size",
			prediction.Shape(), target.Shape())
	}
	threshold := 0.5
	if b.fromLogits {
		threshold = 0
	}
	t := target.Data()
	correct := 0
	for i, y := range prediction.Data() {
		class := 0.0
		if y > threshold {
			class = 1
		}
		if class == t[i] {
			correct++
		}
	}
	return b.add(float64(correct), float64(len(t))), nil
}

// MeanSquaredError averages the squared error over every element.
type MeanSquaredError[B tensor.Backend] struct {
	accumulator
}

// NewMeanSquaredError creates an MSE metric.
func NewMeanSquaredError[B tensor.Backend]() *MeanSquaredError[B] {
	return &MeanSquaredError[B]{accumulator: accumulator{name: "mse"}}
}

// Update implements Metric.
func (m *MeanSquaredError[B]) Update(prediction, target *tensor.Tensor[B]) (float64, error) {
	if prediction.NumElements() != target.NumElements() {
		return 0, errors.Errorf("mse: prediction %v and target %v differ in size",
			prediction.Shape(), target.Shape())
	}
	t := target.Data()
	var sum float64
	for i, y := range prediction.Data() {
		d := y - t[i]
		sum += d * d
	}
	return m.add(sum, float64(len(t))), nil
}

// argmaxRows returns the arg-max column of every row; ties go to the first.
func argmaxRows(data []float64, rows, cols int) []float64 {
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		best := 0
		for c := 1; c < cols; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[r] = float64(best)
	}
	return out
}

// ForTask returns the default metric for a task name: "regression",
// "binary" or "multiclass".
func ForTask[B tensor.Backend](task string, fromLogits bool) (Metric[B], error) {
	switch task {
	case "regression":
		return NewMeanSquaredError[B](), nil
	case "binary":
		return NewBinaryAccuracy[B](fromLogits), nil
	case "multiclass":
		return NewAccuracy[B](false), nil
	default:
		return nil, errors.Errorf("unknown task %q (want regression, binary or multiclass)", task)
	}
}
