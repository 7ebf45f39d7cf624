package main

import (
	"fmt"
	"io"
	"os"

	"desockfuzz/internal/input"
	"desockfuzz/internal/shmem"
	"desockfuzz/internal/tokens"
)

type printCommand struct {
	Debug bool `long:"debug" description:"Dump packets and tokens instead of raw bytes"`
	Args  struct {
		Input string `positional-arg-name:"input" description:"Test case file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *printCommand) Execute([]string) error {
	return printInput(os.Stdout, c.Args.Input, c.Debug)
}

// printInput writes the test case at path to w, either as the bytes the
// target would read or as a per-packet dump.
func printInput(w io.Writer, path string, debug bool) error {
	in, err := input.Load[*tokens.Stream](tokens.NewFactory(nil), path)
	if err != nil {
		return err
	}
	if debug {
		return in.Dump(w)
	}
	buf := make([]byte, shmem.PacketBufferSize)
	n := in.SerializeInto(buf)
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}
