package train

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// ErrStop can be returned by an OnEpoch hook to end training after the
// current epoch without reporting an error.
var ErrStop = errors.New("stop training")

// Priority for hooks, the lowest values are run first. Defaults to 0, but
// negative values are ok.
type Priority int

// OnStepFn is called after every TrainStep with the batch loss.
type OnStepFn[B tensor.Backend] func(t *Trainer[B], step StepInfo) error

// OnEpochFn is called at the end of every epoch, after validation.
type OnEpochFn[B tensor.Backend] func(t *Trainer[B], epoch EpochSummary) error

// StepInfo describes one completed training step.
type StepInfo struct {
	Epoch     int
	Step      int64 // global step, counted across Fit calls
	BatchSize int
	Loss      float64
}

type hookWithName[F any] struct {
	name string
	fn   F
}

// priorityHooks organizes hooks per priority.
type priorityHooks[H any] struct {
	hooks map[Priority][]H
}

func newPriorityHooks[H any]() *priorityHooks[H] {
	return &priorityHooks[H]{hooks: make(map[Priority][]H)}
}

func (h *priorityHooks[H]) add(priority Priority, hook H) {
	h.hooks[priority] = append(h.hooks[priority], hook)
}

// each calls fn for all hooks in priority order, stopping at the first error.
func (h *priorityHooks[H]) each(fn func(hook H) error) error {
	keys := make([]Priority, 0, len(h.hooks))
	for key := range h.hooks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		for _, hook := range h.hooks[key] {
			if err := fn(hook); err != nil {
				return err
			}
		}
	}
	return nil
}
