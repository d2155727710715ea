// Package optim implements the parameter update rules used to train networks.
//
// This package provides:
//   - SGD and Momentum (optionally Nesterov)
//   - RMSProp, Adagrad and Adadelta
//   - Adam (optionally Nesterov) and AdaMax
//
// Every optimizer keeps its running statistics per parameter, keyed by the
// parameter's stable nn.ParamID. State is created lazily on the first update
// of a parameter, zero-initialized and shaped like its gradient, so one
// optimizer instance can be shared by all layers of a network.
//
// Example usage:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001}, backend)
//	net.SetOptimizer(opt, false)
//
//	for _, batch := range batches {
//	    loss, err := net.TrainStep(batch.X, batch.Y)
//	}
//
// Optimizers are not safe for concurrent use; they are owned by the single
// training loop driving them.
package optim

import (
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Optimizer is implemented by every optimizer in this package.
type Optimizer[B tensor.Backend] interface {
	nn.Optimizer[B]
	nn.OptimizerState

	// Len returns the number of parameters that have state.
	Len() int
}

// Fixed epsilon terms.
const (
	defaultEps  = 1e-8
	adadeltaEps = 1e-6
)

// Names accepted by New.
var Names = []string{"sgd", "momentum", "nesterov", "rmsprop", "adagrad", "adadelta", "adam", "nadam", "adamax"}

// New creates an optimizer by name with the given learning rate.
// A zero lr selects the optimizer's default.
//
// "nesterov" is Momentum with Nesterov look-ahead; "nadam" is Adam with it.
func New[B tensor.Backend](name string, lr float64, backend B) (Optimizer[B], error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(SGDConfig{LR: lr}, backend), nil
	case "momentum":
		return NewMomentum(MomentumConfig{LR: lr}, backend), nil
	case "nesterov":
		return NewMomentum(MomentumConfig{LR: lr, Nesterov: true}, backend), nil
	case "rmsprop":
		return NewRMSProp(RMSPropConfig{LR: lr}, backend), nil
	case "adagrad":
		return NewAdagrad(AdagradConfig{LR: lr}, backend), nil
	case "adadelta":
		return NewAdadelta(AdadeltaConfig{}, backend), nil
	case "adam":
		return NewAdam(AdamConfig{LR: lr}, backend), nil
	case "nadam":
		return NewAdam(AdamConfig{LR: lr, Nesterov: true}, backend), nil
	case "adamax":
		return NewAdaMax(AdaMaxConfig{LR: lr}, backend), nil
	}
	return nil, errors.Errorf("unknown optimizer %q (known: %s)", name, strings.Join(Names, ", "))
}

// checkShapes rejects a gradient that is not shaped like its parameter.
func checkShapes[B tensor.Backend](opt string, param *nn.Parameter[B], grad *tensor.Tensor[B]) error {
	if grad == nil {
		return errors.Wrapf(nn.ErrNoGradient, "%s: parameter %q", opt, param.Name())
	}
	if !param.Shape().Equal(grad.Shape()) {
		return errors.Errorf("%s: gradient shape %v does not match parameter %q shape %v",
			opt, grad.Shape(), param.Name(), param.Shape())
	}
	return nil
}

// slots holds named per-parameter buffers, all shaped like the parameter,
// plus a per-parameter step counter.
type slots struct {
	names  []string
	bufs   map[nn.ParamID][][]float64
	shapes map[nn.ParamID]tensor.Shape
	steps  map[nn.ParamID]int
}

func newSlots(names ...string) *slots {
	return &slots{
		names:  names,
		bufs:   make(map[nn.ParamID][][]float64),
		shapes: make(map[nn.ParamID]tensor.Shape),
		steps:  make(map[nn.ParamID]int),
	}
}

// get returns the buffers of id, creating zeroed ones on first sight.
func (s *slots) get(id nn.ParamID, shape tensor.Shape) [][]float64 {
	if bufs, ok := s.bufs[id]; ok {
		return bufs
	}
	bufs := make([][]float64, len(s.names))
	for i := range bufs {
		bufs[i] = make([]float64, shape.NumElements())
	}
	s.bufs[id] = bufs
	s.shapes[id] = shape.Clone()
	return bufs
}

// step increments and returns the step counter of id.
func (s *slots) step(id nn.ParamID) int {
	s.steps[id]++
	return s.steps[id]
}

func (s *slots) len() int {
	return len(s.bufs)
}

// slotTensor returns a copy of buffer i of id as a tensor.
func slotTensor[B tensor.Backend](s *slots, id nn.ParamID, i int, backend B) (*tensor.Tensor[B], bool) {
	bufs, ok := s.bufs[id]
	if !ok {
		return nil, false
	}
	data := append([]float64(nil), bufs[i]...)
	t, err := tensor.FromSlice(data, s.shapes[id], backend)
	if err != nil {
		return nil, false
	}
	return t, true
}

// stateDict exports buffers as "<key>.<slot>" and steps as "<key>.step".
func (s *slots) stateDict(keys map[nn.ParamID]string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for id, bufs := range s.bufs {
		key, ok := keys[id]
		if !ok {
			continue
		}
		for i, name := range s.names {
			raw, err := tensor.NewRawFrom(append([]float64(nil), bufs[i]...), s.shapes[id].Clone())
			if err != nil {
				continue
			}
			out[key+"."+name] = raw
		}
		if step, ok := s.steps[id]; ok {
			raw, _ := tensor.NewRawFrom([]float64{float64(step)}, tensor.Shape{1})
			out[key+".step"] = raw
		}
	}
	return out
}

// loadStateDict restores buffers saved by stateDict. Entries for unknown keys
// are an error; parameters missing from stateDict keep no state. Nothing is
// restored unless every entry is valid.
func (s *slots) loadStateDict(params map[string]nn.ParamRef, stateDict map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	type entry struct {
		ref  nn.ParamRef
		slot int // -1 for the step counter
		raw  *tensor.RawTensor
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		dot := strings.LastIndex(name, ".")
		if dot < 0 {
			return errors.Errorf("malformed optimizer state key %q", name)
		}
		key, slot := name[:dot], name[dot+1:]
		ref, ok := params[key]
		if !ok {
			return errors.Errorf("optimizer state for unknown parameter %q", key)
		}
		raw := stateDict[name]
		if slot == "step" {
			if len(raw.Data()) != 1 {
				return errors.Errorf("optimizer step %q must hold one value, got shape %v", name, raw.Shape())
			}
			entries = append(entries, entry{ref: ref, slot: -1, raw: raw})
			continue
		}
		idx := slices.Index(s.names, slot)
		if idx < 0 {
			return errors.Errorf("unknown optimizer slot %q for parameter %q", slot, key)
		}
		if !raw.Shape().Equal(ref.Shape) {
			return errors.Errorf("optimizer slot %q shape mismatch: parameter is %v, got %v", name, ref.Shape, raw.Shape())
		}
		if shape, ok := s.shapes[ref.ID]; ok && !shape.Equal(ref.Shape) {
			return errors.Errorf("optimizer slot %q shape mismatch: existing state is %v, parameter is %v", name, shape, ref.Shape)
		}
		entries = append(entries, entry{ref: ref, slot: idx, raw: raw})
	}

	for _, e := range entries {
		if e.slot < 0 {
			s.steps[e.ref.ID] = int(e.raw.Data()[0])
			continue
		}
		copy(s.get(e.ref.ID, e.ref.Shape)[e.slot], e.raw.Data())
	}
	return nil
}
