// Package train runs the epoch loop over a network: mini-batch training
// steps, validation, hooks, history and an optional final checkpoint.
package train

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/dataset"
	"github.com/ffnet-ml/ffnet/internal/metrics"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Config controls a Trainer.
type Config struct {
	Epochs         int    // Number of passes over the training set (default: 10)
	PrintEvery     int    // Log a summary every N epochs (default: 10, negative disables)
	CheckpointPath string // Save a checkpoint here after the last epoch (optional)

	// Metadata is stored with the checkpoint next to the final losses.
	Metadata map[string]any
}

// EpochSummary is the outcome of one epoch.
type EpochSummary struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64            // NaN without a validation set
	Metrics   map[string]float64 // validation metrics by name
	Duration  time.Duration
}

// History records every completed epoch.
type History struct {
	Epochs []EpochSummary
}

// TrainLoss returns the training loss of every epoch.
func (h *History) TrainLoss() []float64 {
	out := make([]float64, len(h.Epochs))
	for i, e := range h.Epochs {
		out[i] = e.TrainLoss
	}
	return out
}

// ValLoss returns the validation loss of every epoch.
func (h *History) ValLoss() []float64 {
	out := make([]float64, len(h.Epochs))
	for i, e := range h.Epochs {
		out[i] = e.ValLoss
	}
	return out
}

// Last returns the most recent epoch, or false if there is none.
func (h *History) Last() (EpochSummary, bool) {
	if len(h.Epochs) == 0 {
		return EpochSummary{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Evaluation is the result of Evaluate.
type Evaluation struct {
	Loss    float64
	Metrics map[string]float64
	Samples int
}

// Trainer drives a network through epochs of training.
type Trainer[B tensor.Backend] struct {
	net     *nn.Network[B]
	config  Config
	metrics []metrics.Metric[B]
	step    int64

	onStep  *priorityHooks[*hookWithName[OnStepFn[B]]]
	onEpoch *priorityHooks[*hookWithName[OnEpochFn[B]]]
}

// New creates a trainer. The network must have a loss and an optimizer.
func New[B tensor.Backend](net *nn.Network[B], config Config, ms ...metrics.Metric[B]) *Trainer[B] {
	if config.Epochs == 0 {
		config.Epochs = 10
	}
	if config.PrintEvery == 0 {
		config.PrintEvery = 10
	}
	return &Trainer[B]{
		net:     net,
		config:  config,
		metrics: ms,
		onStep:  newPriorityHooks[*hookWithName[OnStepFn[B]]](),
		onEpoch: newPriorityHooks[*hookWithName[OnEpochFn[B]]](),
	}
}

// Network returns the trained network.
func (t *Trainer[B]) Network() *nn.Network[B] {
	return t.net
}

// Config returns the effective configuration.
func (t *Trainer[B]) Config() Config {
	return t.config
}

// Step returns the number of training steps run so far.
func (t *Trainer[B]) Step() int64 {
	return t.step
}

// OnStep adds a hook run after every training step.
func (t *Trainer[B]) OnStep(name string, priority Priority, fn OnStepFn[B]) {
	t.onStep.add(priority, &hookWithName[OnStepFn[B]]{name: name, fn: fn})
}

// OnEpoch adds a hook run at the end of every epoch.
func (t *Trainer[B]) OnEpoch(name string, priority Priority, fn OnEpochFn[B]) {
	t.onEpoch.add(priority, &hookWithName[OnEpochFn[B]]{name: name, fn: fn})
}

// Fit trains on train for Config.Epochs epochs, evaluating on val (which may
// be nil) after each one. ctx is checked between batches; on cancellation the
// history so far is returned with the context error.
func (t *Trainer[B]) Fit(ctx context.Context, train, val *dataset.Dataset[B]) (*History, error) {
	if t.net.Loss() == nil {
		return nil, errors.Wrap(nn.ErrNoLoss, t.net.Name())
	}
	history := &History{}
	t.net.SetTraining(true)
	klog.V(1).Infof("%s: training on %d samples (%d batches/epoch) for %d epochs",
		t.net.Name(), train.Len(), train.NumBatches(), t.config.Epochs)

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		start := time.Now()
		trainLoss, err := t.runEpoch(ctx, epoch, train)
		if err != nil {
			return history, err
		}

		summary := EpochSummary{Epoch: epoch, TrainLoss: trainLoss, ValLoss: math.NaN()}
		if val != nil {
			eval, err := t.Evaluate(val)
			if err != nil {
				return history, errors.WithMessagef(err, "epoch %d: validation", epoch)
			}
			summary.ValLoss = eval.Loss
			summary.Metrics = eval.Metrics
		}
		summary.Duration = time.Since(start)
		history.Epochs = append(history.Epochs, summary)
		t.logEpoch(summary)

		err = t.onEpoch.each(func(hook *hookWithName[OnEpochFn[B]]) error {
			if err := hook.fn(t, summary); err != nil {
				return errors.WithMessagef(err, "OnEpoch(hook %q)", hook.name)
			}
			return nil
		})
		if errors.Is(err, ErrStop) {
			klog.V(1).Infof("%s: stopped after epoch %d", t.net.Name(), epoch)
			break
		}
		if err != nil {
			return history, err
		}
	}

	if t.config.CheckpointPath != "" {
		if err := t.checkpoint(history); err != nil {
			return history, err
		}
	}
	return history, nil
}

// runEpoch performs one pass and returns the sample-weighted mean batch loss.
func (t *Trainer[B]) runEpoch(ctx context.Context, epoch int, train *dataset.Dataset[B]) (float64, error) {
	var sum float64
	var samples int
	for x, y := range train.Batches() {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrapf(err, "epoch %d interrupted", epoch)
		}
		loss, err := t.net.TrainStep(x, y)
		if err != nil {
			return 0, errors.WithMessagef(err, "epoch %d, step %d", epoch, t.step)
		}
		rows := x.Shape()[0]
		sum += loss * float64(rows)
		samples += rows
		t.step++

		info := StepInfo{Epoch: epoch, Step: t.step, BatchSize: rows, Loss: loss}
		if klog.V(2).Enabled() {
			klog.Infof("%s: epoch %d step %d loss %.6f", t.net.Name(), epoch, t.step, loss)
		}
		err = t.onStep.each(func(hook *hookWithName[OnStepFn[B]]) error {
			if err := hook.fn(t, info); err != nil {
				return errors.WithMessagef(err, "OnStep(hook %q)", hook.name)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return sum / float64(samples), nil
}

// Evaluate computes the loss and metrics over ds in inference mode.
// Training mode is restored afterwards.
func (t *Trainer[B]) Evaluate(ds *dataset.Dataset[B]) (*Evaluation, error) {
	if t.net.Loss() == nil {
		return nil, errors.Wrap(nn.ErrNoLoss, t.net.Name())
	}
	t.net.SetTraining(false)
	defer t.net.SetTraining(true)

	for _, m := range t.metrics {
		m.Reset()
	}
	var sum float64
	var samples int
	for x, y := range ds.Batches() {
		pred, err := t.net.Predict(x)
		if err != nil {
			return nil, err
		}
		loss, err := t.net.ComputeLoss(pred, y)
		if err != nil {
			return nil, err
		}
		rows := x.Shape()[0]
		sum += loss * float64(rows)
		samples += rows
		for _, m := range t.metrics {
			if _, err := m.Update(pred, y); err != nil {
				return nil, errors.WithMessagef(err, "metric %s", m.Name())
			}
		}
	}

	eval := &Evaluation{Loss: sum / float64(samples), Samples: samples, Metrics: make(map[string]float64)}
	for _, m := range t.metrics {
		eval.Metrics[m.Name()] = m.Epoch()
	}
	return eval, nil
}

func (t *Trainer[B]) logEpoch(s EpochSummary) {
	every := t.config.PrintEvery
	if every < 0 || ((s.Epoch+1)%every != 0 && s.Epoch+1 != t.config.Epochs) {
		return
	}
	if math.IsNaN(s.ValLoss) {
		klog.Infof("%s: epoch %d/%d train_loss=%.6f (%s)", t.net.Name(), s.Epoch+1, t.config.Epochs, s.TrainLoss, s.Duration)
		return
	}
	klog.Infof("%s: epoch %d/%d train_loss=%.6f val_loss=%.6f %v (%s)",
		t.net.Name(), s.Epoch+1, t.config.Epochs, s.TrainLoss, s.ValLoss, s.Metrics, s.Duration)
}

func (t *Trainer[B]) checkpoint(history *History) error {
	last, ok := history.Last()
	if !ok {
		return nil
	}
	meta := map[string]any{
		"val_loss": nanToNil(last.ValLoss),
		"metrics":  last.Metrics,
	}
	for k, v := range t.config.Metadata {
		meta[k] = v
	}
	ckpt := &nn.Checkpoint[B]{
		Network:  t.net,
		Epoch:    last.Epoch,
		Step:     t.step,
		Loss:     last.TrainLoss,
		Metadata: meta,
	}
	if err := ckpt.Save(t.config.CheckpointPath); err != nil {
		return errors.WithMessage(err, "final checkpoint")
	}
	klog.Infof("%s: checkpoint saved to %s (run %s)", t.net.Name(), t.config.CheckpointPath, ckpt.RunID)
	return nil
}

// nanToNil keeps NaN out of the JSON checkpoint header.
func nanToNil(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
