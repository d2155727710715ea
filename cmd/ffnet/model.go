package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/dataset"
	"github.com/ffnet-ml/ffnet/internal/metrics"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/optim"
	"github.com/ffnet-ml/ffnet/internal/scaler"
	"github.com/ffnet-ml/ffnet/internal/serialization"
)

type backendT = *cpu.CPUBackend

// modelMetaKey is the checkpoint metadata entry holding the modelSpec.
const modelMetaKey = "model"

// modelSpec is everything needed to rebuild a trained network and its input
// pipeline. It is stored in the checkpoint so `ffnet eval` needs no flags
// about the architecture.
type modelSpec struct {
	Task       string      `json:"task"`
	Target     string      `json:"target"`
	Features   []string    `json:"features"`
	Hidden     []int       `json:"hidden"`
	Activation string      `json:"activation"`
	Init       string      `json:"init"`
	Classes    int         `json:"classes,omitempty"`
	Optimizer  string      `json:"optimizer"`
	LR         float64     `json:"lr,omitempty"`
	Scaler     *scalerSpec `json:"scaler,omitempty"`
}

type scalerSpec struct {
	Name   string    `json:"name"`
	Offset []float64 `json:"offset"`
	Scale  []float64 `json:"scale"`
}

// outputs returns the width of the last Linear layer.
func (s *modelSpec) outputs() int {
	if s.Task == "multiclass" {
		return s.Classes
	}
	return 1
}

// build assembles the network, with loss and optimizer attached, and the
// metric reported for the task.
func (s *modelSpec) build(backend backendT, rng *rand.Rand) (*nn.Network[backendT], metrics.Metric[backendT], error) {
	kind, err := nn.ParseActivation(s.Activation)
	if err != nil {
		return nil, nil, err
	}
	if kind == nn.Softmax {
		return nil, nil, errors.New("softmax cannot be used as a hidden activation")
	}
	if len(s.Features) == 0 {
		return nil, nil, errors.New("model has no input features")
	}
	if s.outputs() <= 0 {
		return nil, nil, errors.Errorf("task %s needs a positive number of classes, got %d", s.Task, s.Classes)
	}
	if _, err := nn.Initialize(1, 1, s.Init, nil, backend); err != nil {
		return nil, nil, err
	}

	net := nn.NewNetwork[backendT](s.Task)
	in := len(s.Features)
	for i, width := range s.Hidden {
		if width <= 0 {
			return nil, nil, errors.Errorf("hidden layer %d has width %d", i, width)
		}
		net.Add(nn.NewLinear(in, width, backend,
			nn.WithName(fmt.Sprintf("hidden%d", i)), nn.WithInitializer(s.Init), nn.WithRand(rng)))
		net.Add(nn.NewActivation[backendT](kind))
		in = width
	}
	net.Add(nn.NewLinear(in, s.outputs(), backend,
		nn.WithName("output"), nn.WithInitializer(s.Init), nn.WithRand(rng)))

	fromLogits := true
	switch s.Task {
	case "regression":
		net.SetLoss(nn.NewMSELoss[backendT]())
	case "binary":
		net.SetLoss(nn.NewBCELoss[backendT](fromLogits))
	case "multiclass":
		// Softmax + CrossEntropy(fromLogits) takes the fused backward path.
		net.Add(nn.NewSoftmax[backendT]())
		net.SetLoss(nn.NewCrossEntropyLoss[backendT](fromLogits, false))
	default:
		return nil, nil, errors.Errorf("unknown task %q (want regression, binary or multiclass)", s.Task)
	}

	opt, err := optim.New(s.Optimizer, s.LR, backend)
	if err != nil {
		return nil, nil, err
	}
	net.SetOptimizer(opt, true)

	metric, err := metrics.ForTask[backendT](s.Task, fromLogits)
	if err != nil {
		return nil, nil, err
	}
	return net, metric, nil
}

// fitScaler adapts the named scaler on train and records its parameters in
// the spec. "none" or "" records nothing.
func (s *modelSpec) fitScaler(name string, train *dataset.Dataset[backendT]) error {
	if name == "" || name == "none" {
		return nil
	}
	sc, err := scaler.New[backendT](name)
	if err != nil {
		return err
	}
	if err := sc.Adapt(train.X()); err != nil {
		return err
	}
	offset, scale := sc.Params()
	s.Scaler = &scalerSpec{Name: sc.Name(), Offset: offset, Scale: scale}
	return nil
}

// scale applies the fitted scaler, if any, to ds.
func (s *modelSpec) scale(ds *dataset.Dataset[backendT]) (*dataset.Dataset[backendT], error) {
	if ds == nil || s.Scaler == nil {
		return ds, nil
	}
	sc, err := scaler.Restore[backendT](s.Scaler.Name, s.Scaler.Offset, s.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	x, err := sc.Transform(ds.X())
	if err != nil {
		return nil, err
	}
	return ds.WithFeatures(x)
}

// countClasses returns max(label)+1 after checking every label is a
// non-negative integer.
func countClasses(ds *dataset.Dataset[backendT]) (int, error) {
	maxLabel := -1
	for i, v := range ds.Y().Data() {
		if v < 0 || v != math.Trunc(v) {
			return 0, errors.Errorf("row %d: class label %g is not a non-negative integer", i, v)
		}
		maxLabel = max(maxLabel, int(v))
	}
	return maxLabel + 1, nil
}

// parseHidden parses "16,32" into layer widths. The empty string means no
// hidden layers.
func parseHidden(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	widths := make([]int, 0, len(parts))
	for _, part := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || w <= 0 {
			return nil, errors.Errorf("invalid hidden layer width %q", part)
		}
		widths = append(widths, w)
	}
	return widths, nil
}

// readModelSpec loads the modelSpec stored in a checkpoint header.
func readModelSpec(path string) (*modelSpec, serialization.Header, error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, serialization.Header{}, err
	}
	defer func() { _ = reader.Close() }()

	header := reader.Header()
	if header.CheckpointMeta == nil || header.CheckpointMeta.TrainingMeta[modelMetaKey] == nil {
		return nil, header, errors.Errorf("%s: checkpoint has no %q metadata; was it written by `ffnet train`?", path, modelMetaKey)
	}
	// The header was decoded into map[string]any, so go through JSON again
	// to get the typed struct back.
	raw, err := json.Marshal(header.CheckpointMeta.TrainingMeta[modelMetaKey])
	if err != nil {
		return nil, header, errors.Wrap(err, "encoding model metadata")
	}
	spec := &modelSpec{}
	if err := json.Unmarshal(raw, spec); err != nil {
		return nil, header, errors.Wrapf(err, "%s: invalid model metadata", path)
	}
	return spec, header, nil
}
