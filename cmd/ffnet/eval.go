package main

import (
	"flag"
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/backend/cpu"
	"github.com/ffnet-ml/ffnet/internal/dataset"
	"github.com/ffnet-ml/ffnet/internal/nn"
	"github.com/ffnet-ml/ffnet/internal/train"
)

// evalCommand implements `ffnet eval`: it rebuilds the network described by
// the checkpoint, loads its weights and reports loss and metrics on a CSV.
func evalCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	klog.InitFlags(fs)
	checkpoint := fs.String("checkpoint", "", "Checkpoint written by `ffnet train`. Required.")
	data := fs.String("data", "", "CSV file with the same columns used for training. Required.")
	batch := fs.Int("batch", 256, "Evaluation batch size.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *checkpoint == "" || *data == "" {
		return errors.New("eval: -checkpoint and -data are required")
	}

	spec, header, err := readModelSpec(*checkpoint)
	if err != nil {
		return err
	}
	klog.V(1).Infof("checkpoint %s: model %q, run %s, created %s", *checkpoint, header.ModelName, header.RunID, header.CreatedAt)

	backend := cpu.New()
	ds, err := dataset.LoadCSV(*data, spec.Target, backend, dataset.WithBatchSize(*batch))
	if err != nil {
		return err
	}
	if !slices.Equal(ds.FeatureNames(), spec.Features) {
		return errors.Errorf("eval: %s has features %v, the model was trained on %v", *data, ds.FeatureNames(), spec.Features)
	}
	if ds, err = spec.scale(ds); err != nil {
		return err
	}

	net, metric, err := spec.build(backend, nil)
	if err != nil {
		return err
	}
	ckpt, err := nn.LoadCheckpoint(*checkpoint, net)
	if err != nil {
		return err
	}

	eval, err := train.New(net, train.Config{}, metric).Evaluate(ds)
	if err != nil {
		return err
	}
	printEvaluation(out, fmt.Sprintf("Evaluation (epoch %d, step %d)", ckpt.Epoch+1, ckpt.Step), eval)
	return nil
}
