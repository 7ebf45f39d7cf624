package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	_ "go.uber.org/automaxprocs"
)

func main() {
	parser := flags.NewParser(nil, flags.Default)

	if _, err := parser.AddCommand("fuzz",
		"Run a fuzzing campaign",
		"Starts one worker per core against the target command given after --.",
		&fuzzCommand{}); err != nil {
		panic(err)
	}
	worker, err := parser.AddCommand("worker",
		"Run a single fuzzing worker",
		"Started by the fuzz command, one per core.",
		&workerCommand{})
	if err != nil {
		panic(err)
	}
	worker.Hidden = true
	if _, err := parser.AddCommand("print",
		"Print a test case",
		"Writes the bytes a test case feeds the target, or a per-packet dump with --debug.",
		&printCommand{}); err != nil {
		panic(err)
	}

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}
}
