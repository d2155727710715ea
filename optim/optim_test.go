// Copyright 2026 The ffnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/backend/cpu"
	"github.com/ffnet-ml/ffnet/nn"
	"github.com/ffnet-ml/ffnet/optim"
	"github.com/ffnet-ml/ffnet/tensor"
)

func TestConstructors(t *testing.T) {
	backend := cpu.New()
	opts := []optim.Optimizer[*cpu.Backend]{
		optim.NewSGD(optim.SGDConfig{}, backend),
		optim.NewMomentum(optim.MomentumConfig{Nesterov: true}, backend),
		optim.NewRMSProp(optim.RMSPropConfig{}, backend),
		optim.NewAdagrad(optim.AdagradConfig{}, backend),
		optim.NewAdadelta(optim.AdadeltaConfig{}, backend),
		optim.NewAdam(optim.AdamConfig{}, backend),
		optim.NewAdaMax(optim.AdaMaxConfig{}, backend),
	}
	for _, opt := range opts {
		w, err := tensor.FromSlice([]float64{1, -1}, tensor.Shape{2}, backend)
		require.NoError(t, err)
		p := nn.NewParameter("w", w)
		grad, err := tensor.FromSlice([]float64{0.5, -0.5}, tensor.Shape{2}, backend)
		require.NoError(t, err)

		require.NoError(t, opt.Update(p, grad), opt.Name())
		assert.Less(t, p.Tensor().Data()[0], 1.0, opt.Name())
		assert.Greater(t, p.Tensor().Data()[1], -1.0, opt.Name())
	}
}

func TestNew(t *testing.T) {
	for _, name := range optim.Names {
		opt, err := optim.New(name, 0, cpu.New())
		require.NoError(t, err, name)
		assert.NotEmpty(t, opt.Name())
	}
	_, err := optim.New("lion", 0.1, cpu.New())
	assert.Error(t, err)
}
