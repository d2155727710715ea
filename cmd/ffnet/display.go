package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/train"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 0, 0, 2)
)

// newPlainTable returns a table with a reversed header row and alternating
// faint rows. The first column is right-aligned.
func newPlainTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

func printTitle(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(title))
}

// printNetwork lists every layer with its parameter shapes and counts.
func printNetwork(w io.Writer, net *nn.Network[backendT]) {
	printTitle(w, "Network "+net.Name())
	table := newPlainTable("#", "layer", "parameters", "size")
	_ = net.Walk(func(index int, layer nn.Function[backendT], params []*nn.Parameter[backendT]) error {
		shapes := make([]string, 0, len(params))
		var size int
		for _, p := range params {
			shapes = append(shapes, fmt.Sprintf("%s%v", p.Name(), []int(p.Shape())))
			size += p.Shape().NumElements()
		}
		table.Row(fmt.Sprint(index), layer.Name(), strings.Join(shapes, " "), humanize.Comma(int64(size)))
		return nil
	})
	table.Row("", "total", "", humanize.Comma(int64(net.NumParameters())))
	_, _ = fmt.Fprintln(w, table.Render())
}

// printHistory shows the final epoch and the best validation loss.
func printHistory(w io.Writer, history *train.History, elapsed time.Duration) {
	last, ok := history.Last()
	if !ok {
		return
	}
	printTitle(w, "Training")
	table := newPlainTable("", "value")
	table.Row("epochs", fmt.Sprint(len(history.Epochs)))
	table.Row("time", elapsed.Round(time.Millisecond).String())
	table.Row("train loss", formatFloat(last.TrainLoss))
	if !math.IsNaN(last.ValLoss) {
		table.Row("val loss", formatFloat(last.ValLoss))
		best := slices.Min(history.ValLoss())
		bestEpoch := slices.Index(history.ValLoss(), best)
		table.Row("best val loss", fmt.Sprintf("%s (epoch %d)", formatFloat(best), bestEpoch+1))
	}
	for _, name := range sortedKeys(last.Metrics) {
		table.Row("val "+name, formatFloat(last.Metrics[name]))
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

// printEvaluation shows the loss and metrics of one evaluation pass.
func printEvaluation(w io.Writer, title string, eval *train.Evaluation) {
	printTitle(w, title)
	table := newPlainTable("", "value")
	table.Row("samples", humanize.Comma(int64(eval.Samples)))
	table.Row("loss", formatFloat(eval.Loss))
	for _, name := range sortedKeys(eval.Metrics) {
		table.Row(name, formatFloat(eval.Metrics[name]))
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.6g", v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// attachProgressBar shows a progress bar over all training steps, with the
// current epoch and batch loss as its description.
func attachProgressBar(w io.Writer, trainer *train.Trainer[backendT], totalSteps int) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(totalSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	trainer.OnStep("progressbar", train.Priority(100), func(_ *train.Trainer[backendT], step train.StepInfo) error {
		bar.Describe(fmt.Sprintf("epoch %d loss %s", step.Epoch+1, formatFloat(step.Loss)))
		return bar.Add(1)
	})
	return bar
}
