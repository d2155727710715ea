// Package main provides the ffnet command: train feed-forward networks on
// CSV data and evaluate saved checkpoints.
//
// Usage:
//
//	ffnet train -data housing.csv -target price -task regression -hidden 32,16 -checkpoint model.ffnt
//	ffnet eval -checkpoint model.ffnt -data housing_test.csv
//	ffnet version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

const version = "v0.1.0"

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, `ffnet %s: feed-forward networks for tabular data.

Commands:
  train      Train a network on a CSV file
  eval       Evaluate a checkpoint on a CSV file
  version    Show version

Run "ffnet <command> -help" for the flags of a command.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	defer klog.Flush()

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "train":
		err = trainCommand(args, os.Stdout)
	case "eval":
		err = evalCommand(args, os.Stdout)
	case "version":
		fmt.Printf("ffnet %s\n", version)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		klog.Errorf("unknown command %q", command)
		usage()
		os.Exit(2)
	}
	if err == flag.ErrHelp {
		return
	}
	must.M(err)
}
