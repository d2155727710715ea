package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/nn"
)

// writeBlobsCSV writes n rows of two features around one center per class.
func writeBlobsCSV(t *testing.T, n, classes int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	var b strings.Builder
	b.WriteString("a,label,b\n")
	for i := 0; i < n; i++ {
		c := i % classes
		x := 4*float64(c) + rng.NormFloat64()*0.3
		y := -2*float64(c) + rng.NormFloat64()*0.3
		fmt.Fprintf(&b, "%.4f,%d,%.4f\n", x, c, y)
	}
	path := filepath.Join(t.TempDir(), "blobs.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestParseHidden(t *testing.T) {
	widths, err := parseHidden(" 32, 16 ")
	require.NoError(t, err)
	assert.Equal(t, []int{32, 16}, widths)

	widths, err = parseHidden("")
	require.NoError(t, err)
	assert.Empty(t, widths)

	for _, bad := range []string{"8,,4", "0", "x"} {
		_, err := parseHidden(bad)
		assert.Error(t, err, bad)
	}
}

func TestModelSpecBuild(t *testing.T) {
	backend := cpu.New()
	spec := &modelSpec{
		Task:       "multiclass",
		Features:   []string{"a", "b", "c"},
		Hidden:     []int{5, 4},
		Activation: "tanh",
		Init:       nn.HeNormal,
		Classes:    3,
		Optimizer:  "sgd",
	}
	net, metric, err := spec.build(backend, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	// hidden0, tanh, hidden1, tanh, output, softmax
	assert.Equal(t, 6, net.Len())
	assert.Equal(t, 3*5+5+5*4+4+4*3+3, net.NumParameters())
	assert.Equal(t, "accuracy", metric.Name())
	assert.Equal(t, "sgd", net.Optimizer().Name())

	spec.Task = "regression"
	net, metric, err = spec.build(backend, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, net.Len())
	assert.Equal(t, "mse", metric.Name())

	bad := []func(s *modelSpec){
		func(s *modelSpec) { s.Activation = "softmax" },
		func(s *modelSpec) { s.Task = "ranking" },
		func(s *modelSpec) { s.Init = "orthogonal" },
		func(s *modelSpec) { s.Optimizer = "lion" },
		func(s *modelSpec) { s.Features = nil },
		func(s *modelSpec) { s.Task, s.Classes = "multiclass", 0 },
	}
	for i, mutate := range bad {
		s := *spec
		mutate(&s)
		_, _, err := s.build(backend, nil)
		assert.Error(t, err, "case %d", i)
	}
}

func TestTrainAndEval(t *testing.T) {
	data := writeBlobsCSV(t, 90, 3)
	dir := t.TempDir()
	checkpoint := filepath.Join(dir, "blobs.ffnt")
	plotPath := filepath.Join(dir, "loss.png")

	var out bytes.Buffer
	err := trainCommand([]string{
		"-data", data, "-target", "label", "-task", "multiclass",
		"-hidden", "8", "-epochs", "40", "-batch", "16", "-lr", "0.05",
		"-checkpoint", checkpoint, "-plot", plotPath, "-print-every", "-1",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hidden0")
	assert.Contains(t, out.String(), "best val loss")
	assert.FileExists(t, checkpoint)
	assert.FileExists(t, plotPath)

	spec, header, err := readModelSpec(checkpoint)
	require.NoError(t, err)
	assert.Equal(t, "label", spec.Target)
	assert.Equal(t, []string{"a", "b"}, spec.Features)
	assert.Equal(t, 3, spec.Classes)
	require.NotNil(t, spec.Scaler)
	assert.Equal(t, "standard", spec.Scaler.Name)
	assert.Len(t, spec.Scaler.Offset, 2)
	assert.Equal(t, "multiclass", header.ModelName)

	out.Reset()
	require.NoError(t, evalCommand([]string{"-checkpoint", checkpoint, "-data", data}, &out))
	assert.Contains(t, out.String(), "accuracy")
	assert.Contains(t, out.String(), "90")
}

func TestCommandErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, trainCommand([]string{"-target", "y"}, &out), "missing -data")
	assert.Error(t, evalCommand([]string{"-data", "x.csv"}, &out), "missing -checkpoint")

	data := writeBlobsCSV(t, 20, 2)
	assert.Error(t, trainCommand([]string{"-data", data, "-target", "label", "-hidden", "a"}, &out))
	assert.Error(t, trainCommand([]string{"-data", data, "-target", "missing"}, &out))

	// A checkpoint not written by `ffnet train` has no model description.
	path := filepath.Join(t.TempDir(), "bare.ffnt")
	net := nn.NewNetwork("bare", nn.NewLinear(2, 1, cpu.New()))
	require.NoError(t, nn.SaveCheckpoint(path, net, 0, 0))
	assert.Error(t, evalCommand([]string{"-checkpoint", path, "-data", data}, &out))
}
