package main

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ffnet-ml/ffnet/internal/train"
)

var (
	trainLossColor = color.RGBA{R: 0x70, G: 0x50, B: 0x90, A: 0xff}
	valLossColor   = color.RGBA{R: 0xe0, G: 0x80, B: 0x20, A: 0xff}
)

// plotLoss saves the per-epoch train (and validation, when present) loss
// curves to path. The image format follows the file extension.
func plotLoss(history *train.History, title, path string) error {
	if len(history.Epochs) == 0 {
		return errors.New("plot: no epochs to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	curves := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"train", history.TrainLoss(), trainLossColor},
		{"validation", history.ValLoss(), valLossColor},
	}
	for _, curve := range curves {
		xys := make(plotter.XYs, 0, len(curve.values))
		for i, v := range curve.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(i + 1), Y: v})
		}
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "plot: %s loss", curve.name)
		}
		line.Color = curve.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(curve.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "plot: saving %s", path)
	}
	return nil
}
