package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/dataset"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/optim"
	"github.com/ffnet-ml/ffnet/internal/train"
)

type trainFlags struct {
	data, target, task string
	hidden, activation string
	init, optimizer    string
	lr                 float64
	epochs, batch      int
	val                float64
	seed               int64
	scale              string
	checkpoint, plot   string
	printEvery         int
	progress           bool
}

func newTrainFlags() (*flag.FlagSet, *trainFlags) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	klog.InitFlags(fs)
	f := &trainFlags{}
	fs.StringVar(&f.data, "data", "", "CSV file with a header row. Required.")
	fs.StringVar(&f.target, "target", "", "Name of the target column; every other column is a feature. Required.")
	fs.StringVar(&f.task, "task", "regression", "Task: regression, binary (0/1 labels) or multiclass (labels 0..C-1).")
	fs.StringVar(&f.hidden, "hidden", "16", "Comma-separated hidden layer widths, e.g. \"32,16\". Empty for a linear model.")
	fs.StringVar(&f.activation, "activation", "relu", "Hidden activation: relu, sigmoid or tanh.")
	fs.StringVar(&f.init, "init", nn.XavierUniform, "Weight initializer.")
	fs.StringVar(&f.optimizer, "optimizer", "adam", "Optimizer: "+strings.Join(optim.Names, ", ")+".")
	fs.Float64Var(&f.lr, "lr", 0, "Learning rate. 0 uses the optimizer's default.")
	fs.IntVar(&f.epochs, "epochs", 50, "Number of epochs.")
	fs.IntVar(&f.batch, "batch", dataset.DefaultBatchSize, "Mini-batch size.")
	fs.Float64Var(&f.val, "val", 0.2, "Fraction of the rows held out for validation. 0 disables validation.")
	fs.Int64Var(&f.seed, "seed", 42, "Seed for weight initialization and shuffling.")
	fs.StringVar(&f.scale, "scale", "standard", "Feature scaling: minmax, standard or none.")
	fs.StringVar(&f.checkpoint, "checkpoint", "", "Save the trained model to this .ffnt file.")
	fs.StringVar(&f.plot, "plot", "", "Save the loss curves to this image file (png, svg or pdf).")
	fs.IntVar(&f.printEvery, "print-every", 10, "Log a summary every N epochs. Negative disables it.")
	fs.BoolVar(&f.progress, "progress", true, "Display a progress bar.")
	return fs, f
}

// trainCommand implements `ffnet train`.
func trainCommand(args []string, out io.Writer) error {
	fs, f := newTrainFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.data == "" || f.target == "" {
		return errors.New("train: -data and -target are required")
	}
	if fs.NArg() > 0 {
		return errors.Errorf("train: unexpected arguments %q", fs.Args())
	}
	hidden, err := parseHidden(f.hidden)
	if err != nil {
		return errors.WithMessage(err, "train: -hidden")
	}

	backend := cpu.New()
	ds, err := dataset.LoadCSV(f.data, f.target, backend,
		dataset.WithBatchSize(f.batch), dataset.WithShuffle(f.seed))
	if err != nil {
		return err
	}
	trainDS, valDS := ds, (*dataset.Dataset[backendT])(nil)
	if f.val > 0 {
		if trainDS, valDS, err = ds.Split(f.val); err != nil {
			return err
		}
	}

	spec := &modelSpec{
		Task:       f.task,
		Target:     ds.Target(),
		Features:   ds.FeatureNames(),
		Hidden:     hidden,
		Activation: f.activation,
		Init:       f.init,
		Optimizer:  f.optimizer,
		LR:         f.lr,
	}
	if f.task == "multiclass" {
		if spec.Classes, err = countClasses(ds); err != nil {
			return err
		}
	}
	if err := spec.fitScaler(f.scale, trainDS); err != nil {
		return err
	}
	if trainDS, err = spec.scale(trainDS); err != nil {
		return err
	}
	if valDS, err = spec.scale(valDS); err != nil {
		return err
	}

	net, metric, err := spec.build(backend, rand.New(rand.NewSource(f.seed)))
	if err != nil {
		return err
	}
	printNetwork(out, net)

	trainer := train.New(net, train.Config{
		Epochs:         f.epochs,
		PrintEvery:     f.printEvery,
		CheckpointPath: f.checkpoint,
		Metadata:       map[string]any{modelMetaKey: spec},
	}, metric)
	if f.progress {
		bar := attachProgressBar(out, trainer, trainer.Config().Epochs*trainDS.NumBatches())
		defer func() { _ = bar.Finish() }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	start := time.Now()
	history, err := trainer.Fit(ctx, trainDS, valDS)
	if errors.Is(err, context.Canceled) {
		klog.Warningf("training interrupted after %d epochs", len(history.Epochs))
	} else if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out)
	printHistory(out, history, time.Since(start))

	if f.plot != "" && len(history.Epochs) > 0 {
		if err := plotLoss(history, fmt.Sprintf("%s: %s", f.task, f.target), f.plot); err != nil {
			return err
		}
		klog.Infof("loss curves saved to %s", f.plot)
	}
	if f.checkpoint != "" {
		if stat, err := os.Stat(f.checkpoint); err == nil {
			_, _ = fmt.Fprintf(out, "checkpoint: %s (%s)\n", f.checkpoint, humanize.Bytes(uint64(stat.Size())))
		}
	}
	return nil
}
