package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

type backendT = *cpu.CPUBackend

func fromSlice(t *testing.T, data []float64, shape ...int) *tensor.Tensor[backendT] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return x
}

func TestAccuracy(t *testing.T) {
	acc := NewAccuracy[backendT](false)
	pred := fromSlice(t, []float64{
		0.1, 0.7, 0.2,
		0.8, 0.1, 0.1,
		0.3, 0.3, 0.4,
		0.5, 0.5, 0.0, // tie goes to class 0
	}, 4, 3)

	batch, err := acc.Update(pred, fromSlice(t, []float64{1, 0, 0, 0}, 4))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, batch, 1e-12)

	_, err = acc.Update(fromSlice(t, []float64{0, 1}, 1, 2), fromSlice(t, []float64{0, 1}, 2))
	require.Error(t, err, "one label per row")

	// The epoch value weights batches by their row count.
	_, err = acc.Update(fromSlice(t, []float64{0.9, 0.05, 0.05}, 1, 3), fromSlice(t, []float64{2}, 1))
	require.NoError(t, err)
	assert.InDelta(t, 3.0/5, acc.Epoch(), 1e-12)
	assert.Equal(t, []float64{0.6}, acc.History())
	assert.True(t, math.IsNaN(acc.Epoch()), "nothing accumulated since the last epoch")
	assert.Len(t, acc.History(), 1)
}

func TestAccuracyOneHot(t *testing.T) {
	acc := NewAccuracy[backendT](true)
	pred := fromSlice(t, []float64{0.2, 0.8, 0.6, 0.4}, 2, 2)

	v, err := acc.Update(pred, fromSlice(t, []float64{0, 1, 0, 1}, 2, 2))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-12)

	_, err = acc.Update(pred, fromSlice(t, []float64{0, 1}, 2))
	assert.Error(t, err)
}

func TestBinaryAccuracy(t *testing.T) {
	target := fromSlice(t, []float64{1, 0, 1, 0}, 4, 1)

	probs := NewBinaryAccuracy[backendT](false)
	v, err := probs.Update(fromSlice(t, []float64{0.9, 0.2, 0.4, 0.6}, 4, 1), target)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-12)

	logits := NewBinaryAccuracy[backendT](true)
	v, err = logits.Update(fromSlice(t, []float64{2.1, -0.3, 0.4, -5}, 4), target)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)
	assert.Equal(t, "accuracy", logits.Name())

	_, err = logits.Update(fromSlice(t, []float64{1}, 1), target)
	assert.Error(t, err)
}

func TestMeanSquaredError(t *testing.T) {
	mse := NewMeanSquaredError[backendT]()
	_, err := mse.Update(fromSlice(t, []float64{1, 2}, 2, 1), fromSlice(t, []float64{0, 2}, 2))
	require.NoError(t, err)
	_, err = mse.Update(fromSlice(t, []float64{3}, 1, 1), fromSlice(t, []float64{1}, 1))
	require.NoError(t, err)

	// (1 + 0 + 4) / 3
	assert.InDelta(t, 5.0/3, mse.Epoch(), 1e-12)
	assert.InDelta(t, 5.0/3, mse.Last(), 1e-12)

	mse.Reset()
	assert.True(t, math.IsNaN(mse.Epoch()))
}

func TestForTask(t *testing.T) {
	for task, name := range map[string]string{"regression": "mse", "binary": "accuracy", "multiclass": "accuracy"} {
		m, err := ForTask[backendT](task, true)
		require.NoError(t, err, task)
		assert.Equal(t, name, m.Name())
	}
	_, err := ForTask[backendT]("ranking", false)
	assert.Error(t, err)

	m, err := ForTask[backendT]("regression", false)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m.Last()))
}
