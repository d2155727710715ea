package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Network chains differentiable units and drives training.
//
// Each unit's output becomes the next unit's input. The loss is attached
// separately and seeds the backward pass, which visits the units in reverse.
// Shapes between consecutive units are not validated at assembly time; a
// mis-wired network fails at the first Forward.
//
// Example:
//
//	net := nn.NewNetwork("mlp",
//	    nn.NewLinear(2, 3, backend),
//	    nn.NewReLU[*cpu.CPUBackend](),
//	    nn.NewLinear(3, 1, backend),
//	)
//	net.SetLoss(nn.NewMSELoss[*cpu.CPUBackend]())
//	net.SetOptimizer(optim.NewSGD(optim.SGDConfig{LR: 0.1}, backend), false)
//
//	loss, err := net.TrainStep(x, target)
//
// When the last unit is a Softmax and the loss is a CrossEntropyLoss with
// fromLogits, the pair is fused: the loss is evaluated on the Softmax input
// and backpropagation starts below the Softmax with (softmax - onehot)/N.
type Network[B tensor.Backend] struct {
	name      string
	layers    []Function[B]
	loss      Loss[B]
	optimizer Optimizer[B]

	// output of the last Forward; the fused loss reads the Softmax logits
	// only for this tensor.
	lastOutput *tensor.Tensor[B]
}

// StateDicter is implemented by units whose parameters can be saved and restored.
type StateDicter interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// NewNetwork creates a network from the given units.
func NewNetwork[B tensor.Backend](name string, layers ...Function[B]) *Network[B] {
	n := &Network[B]{name: name}
	for _, l := range layers {
		n.Add(l)
	}
	return n
}

// Name returns the network name.
func (n *Network[B]) Name() string {
	return n.name
}

// Add appends a unit. An adaptive unit without an optimizer receives the
// network default, if one is set.
func (n *Network[B]) Add(layer Function[B]) {
	n.layers = append(n.layers, layer)
	if a, ok := layer.(Adaptive[B]); ok && n.optimizer != nil {
		a.SetOptimizer(n.optimizer, false)
	}
}

// Len returns the number of units.
func (n *Network[B]) Len() int {
	return len(n.layers)
}

// Layer returns the unit at index.
func (n *Network[B]) Layer(index int) Function[B] {
	return n.layers[index]
}

// Layers returns the units in order.
func (n *Network[B]) Layers() []Function[B] {
	return n.layers
}

// SetLoss attaches the loss unit.
func (n *Network[B]) SetLoss(loss Loss[B]) {
	n.loss = loss
}

// Loss returns the attached loss unit, or nil.
func (n *Network[B]) Loss() Loss[B] {
	return n.loss
}

// Optimizer returns the network default optimizer, or nil.
func (n *Network[B]) Optimizer() Optimizer[B] {
	return n.optimizer
}

// SetOptimizer makes opt the network default and offers it to every adaptive
// unit. Without force, units that already have an optimizer keep it.
// It returns the number of units that accepted opt.
func (n *Network[B]) SetOptimizer(opt Optimizer[B], force bool) int {
	n.optimizer = opt
	accepted := 0
	for _, l := range n.layers {
		if a, ok := l.(Adaptive[B]); ok && a.SetOptimizer(opt, force) {
			accepted++
		}
	}
	klog.V(1).Infof("%s: optimizer %q attached to %d unit(s)", n.name, optimizerName(opt), accepted)
	return accepted
}

// SetTraining switches every unit between training and inference mode.
func (n *Network[B]) SetTraining(training bool) {
	n.lastOutput = nil
	for _, l := range n.layers {
		l.SetTraining(training)
	}
}

// Forward runs every unit's Forward, caching inputs in training mode.
func (n *Network[B]) Forward(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	n.lastOutput = nil
	out := input
	for i, l := range n.layers {
		var err error
		if out, err = l.Forward(out); err != nil {
			return nil, errors.Wrapf(err, "%s: forward layer %d (%s)", n.name, i, l.Name())
		}
	}
	n.lastOutput = out
	return out, nil
}

// Predict runs every unit's Call. Nothing is cached, so Backward may not follow.
func (n *Network[B]) Predict(input *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	out := input
	for i, l := range n.layers {
		var err error
		if out, err = l.Call(out); err != nil {
			return nil, errors.Wrapf(err, "%s: predict layer %d (%s)", n.name, i, l.Name())
		}
	}
	return out, nil
}

// ComputeLoss evaluates the attached loss on a network output.
//
// For a fused Softmax + CrossEntropy pair, the loss is taken from the logits
// cached by the Softmax unit when prediction is the output of the last
// training-mode Forward. Any other prediction (Predict output, inference
// mode) is scored with the same cross-entropy computed from probabilities.
func (n *Network[B]) ComputeLoss(prediction, target *tensor.Tensor[B]) (float64, error) {
	if n.loss == nil {
		return 0, errors.Wrap(ErrNoLoss, n.name)
	}
	if ce, softmax, ok := n.fused(); ok {
		var loss float64
		var err error
		if logits, cacheErr := softmax.cachedInput(); cacheErr == nil && prediction == n.lastOutput {
			loss, err = ce.Compute(logits, target)
		} else {
			loss, err = NewCrossEntropyLoss[B](false, ce.OneHot()).Compute(prediction, target)
		}
		if err != nil {
			return 0, errors.Wrapf(err, "%s: loss", n.name)
		}
		return loss, nil
	}
	loss, err := n.loss.Compute(prediction, target)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: loss", n.name)
	}
	return loss, nil
}

// Backward seeds the gradient from the loss and propagates it through the
// units in reverse order. It returns the gradient w.r.t. the network input.
// Adaptive units keep their parameter gradients for UpdateParameters.
func (n *Network[B]) Backward(prediction, target *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	if n.loss == nil {
		return nil, errors.Wrap(ErrNoLoss, n.name)
	}

	start := len(n.layers) - 1
	var grad *tensor.Tensor[B]
	var err error
	if ce, _, ok := n.fused(); ok {
		grad, err = ce.FusedGradient(prediction, target)
		start--
	} else {
		grad, err = n.loss.Gradient(prediction, target)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: loss gradient", n.name)
	}

	for i := start; i >= 0; i-- {
		l := n.layers[i]
		if grad, err = l.Backward(grad); err != nil {
			return nil, errors.Wrapf(err, "%s: backward layer %d (%s)", n.name, i, l.Name())
		}
	}
	return grad, nil
}

// UpdateParameters asks every adaptive unit to apply its optimizer.
func (n *Network[B]) UpdateParameters() error {
	for i, l := range n.layers {
		a, ok := l.(Adaptive[B])
		if !ok {
			continue
		}
		if err := a.UpdateParameters(); err != nil {
			return errors.Wrapf(err, "%s: update layer %d", n.name, i)
		}
	}
	return nil
}

// TrainStep runs forward, loss, backward and parameter update on one batch
// and returns the batch loss.
func (n *Network[B]) TrainStep(input, target *tensor.Tensor[B]) (float64, error) {
	prediction, err := n.Forward(input)
	if err != nil {
		return 0, err
	}
	loss, err := n.ComputeLoss(prediction, target)
	if err != nil {
		return 0, err
	}
	if _, err = n.Backward(prediction, target); err != nil {
		return 0, err
	}
	if err = n.UpdateParameters(); err != nil {
		return 0, err
	}
	return loss, nil
}

// Parameters returns all trainable parameters in layer order.
func (n *Network[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, l := range n.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// NumParameters returns the total number of trainable scalars.
func (n *Network[B]) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.Shape().NumElements()
	}
	return total
}

// Walk calls fn for every unit with its index and parameters, stopping at the
// first error.
func (n *Network[B]) Walk(fn func(index int, layer Function[B], params []*Parameter[B]) error) error {
	for i, l := range n.layers {
		if err := fn(i, l, l.Parameters()); err != nil {
			return err
		}
	}
	return nil
}

// ParamKeys maps every parameter ID to its state dict key ("<layer>.<name>").
func (n *Network[B]) ParamKeys() map[ParamID]string {
	keys := make(map[ParamID]string)
	for i, l := range n.layers {
		for _, p := range l.Parameters() {
			keys[p.ID()] = paramKey(i, p.Name())
		}
	}
	return keys
}

// ParamRefs maps every state dict key to its parameter ID and shape.
func (n *Network[B]) ParamRefs() map[string]ParamRef {
	refs := make(map[string]ParamRef)
	for i, l := range n.layers {
		for _, p := range l.Parameters() {
			refs[paramKey(i, p.Name())] = ParamRef{ID: p.ID(), Shape: p.Shape().Clone()}
		}
	}
	return refs
}

// StateDict returns the parameters of every unit, prefixed with the unit index
// (e.g. "0.weight", "0.bias", "2.weight").
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, l := range n.layers {
		s, ok := l.(StateDicter)
		if !ok {
			continue
		}
		for name, raw := range s.StateDict() {
			stateDict[paramKey(i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict copies values from stateDict into the existing parameters.
func (n *Network[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, l := range n.layers {
		s, ok := l.(StateDicter)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("%d.", i)
		layerDict := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if name, found := strings.CutPrefix(key, prefix); found {
				layerDict[name] = raw
			}
		}
		if err := s.LoadStateDict(layerDict); err != nil {
			return errors.Wrapf(err, "%s: failed to load layer %d", n.name, i)
		}
	}
	return nil
}

// fused reports whether the network ends in Softmax followed by a
// CrossEntropyLoss on logits.
func (n *Network[B]) fused() (*CrossEntropyLoss[B], *Activation[B], bool) {
	ce, ok := n.loss.(*CrossEntropyLoss[B])
	if !ok || !ce.FromLogits() || len(n.layers) == 0 {
		return nil, nil, false
	}
	act, ok := n.layers[len(n.layers)-1].(*Activation[B])
	if !ok || act.Kind() != Softmax {
		return nil, nil, false
	}
	return ce, act, true
}

func paramKey(layer int, name string) string {
	return fmt.Sprintf("%d.%s", layer, name)
}
