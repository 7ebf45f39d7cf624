package fuzz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"desockfuzz/internal/corpus"
	"desockfuzz/internal/executor"
	"desockfuzz/internal/mutators"
	"desockfuzz/internal/shmem"
	"desockfuzz/internal/tokens"
	"desockfuzz/internal/types"

	"go.uber.org/zap"
)

type S = *tokens.Stream

// campaign is the state of one worker's fuzzing loop. It is driven from a
// single goroutine.
type campaign struct {
	core     int
	binary   string
	corpus   *corpus.Corpus[S]
	target   Target
	mutator  mutators.Mutator[S]
	state    *mutators.State[S]
	feedback Feedback
	coverage *shmem.CoverageMap
	crashes  chan<- types.CrashMessage
	imports  <-chan string
	stats    *Stats
	statsLog *zap.Logger
	logger   *zap.Logger
	now      func() time.Time
}

// loop fuzzes until ctx is done or a fatal error occurs.
func (c *campaign) loop(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := c.step(); err != nil {
			return err
		}
	}
	return nil
}

// step picks the next corpus entry, mutates a copy and runs it once.
func (c *campaign) step() error {
	c.syncQueue()

	_, entry, ok := c.corpus.Next()
	if !ok {
		return errors.New("corpus is empty")
	}
	in := entry.Clone()
	if _, err := c.mutator.Mutate(c.state, in); err != nil {
		return fmt.Errorf("mutation failed: %w", err)
	}

	if c.coverage != nil {
		c.coverage.Reset()
	}
	kind, err := c.target.Run(in)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	c.stats.Record(kind)

	switch kind {
	case executor.Crash, executor.Timeout:
		doc, err := in.Encode()
		if err != nil {
			return fmt.Errorf("failed to encode crashing input: %w", err)
		}
		c.crashes <- types.CrashMessage{
			Document: doc,
			Wire:     append([]byte(nil), c.target.Payload()...),
			Kind:     kind.String(),
			Core:     c.core,
			Binary:   c.binary,
			Found:    c.now(),
		}
	default:
		if c.feedback.Interesting(c.coverage, kind) {
			if _, err := c.corpus.Add(in); err != nil {
				return err
			}
		}
	}

	if now := c.now(); c.stats.Due(now) {
		c.stats.Report(now, c.core, c.corpus.Count(), c.statsLog)
	}
	return nil
}

// syncQueue imports queue entries other workers wrote since the last step.
func (c *campaign) syncQueue() {
	for {
		select {
		case path, ok := <-c.imports:
			if !ok {
				c.imports = nil
				return
			}
			if _, err := c.corpus.Import(path); err != nil {
				c.logger.Warn("failed to import queue entry", zap.String("path", path), zap.Error(err))
			}
		default:
			return
		}
	}
}
