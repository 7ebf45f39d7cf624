package fuzz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"desockfuzz/internal/corpus"
	"desockfuzz/internal/executor"
	"desockfuzz/internal/input"
	"desockfuzz/internal/mutators"
	"desockfuzz/internal/shmem"
	"desockfuzz/internal/tokens"
	"desockfuzz/internal/types"
	"desockfuzz/internal/utils"
	"desockfuzz/pkg/metrics"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedTarget replays exit kinds in order and records what it was fed.
type scriptedTarget struct {
	kinds   []executor.ExitKind
	runs    int
	payload []byte
	err     error
}

func (s *scriptedTarget) Run(in executor.Serializer) (executor.ExitKind, error) {
	if s.err != nil {
		return executor.Ok, s.err
	}
	buf := make([]byte, 1<<16)
	s.payload = buf[:in.SerializeInto(buf)]
	kind := s.kinds[s.runs%len(s.kinds)]
	s.runs++
	return kind, nil
}

func (s *scriptedTarget) Payload() []byte { return s.payload }
func (s *scriptedTarget) Close() error    { return nil }

type admitAll struct{}

func (admitAll) Interesting(*shmem.CoverageMap, executor.ExitKind) bool { return true }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newCampaign(t *testing.T, target Target, crashes chan types.CrashMessage) (*campaign, *observer.ObservedLogs, *fakeClock) {
	t.Helper()
	factory := tokens.NewFactory(nil)
	queue := corpus.New[S](t.TempDir(), factory, zaptest.NewLogger(t))
	seed, err := input.ParseText[S](factory, []byte("EHLO client\r\nMAIL FROM:<a@b>\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := queue.Add(seed); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zap.InfoLevel)
	clock := &fakeClock{time.Unix(1700000000, 0)}
	return &campaign{
		core:    2,
		binary:  "/usr/sbin/exim",
		corpus:  queue,
		target:  target,
		mutator: mutators.NewTokenStreamPipeline(mutators.Options{MaxPackets: 16, MaxTokens: 16, MaxStackPow: 4, Seed: 7}),
		state: &mutators.State[S]{
			Rand:    utils.NewRand(7),
			Corpus:  queue,
			Factory: factory,
		},
		feedback: NoFeedback{},
		coverage: shmem.NewCoverageMap(make([]byte, 64)),
		crashes:  crashes,
		stats:    NewStats(time.Minute, metrics.New().Worker(2), clock.t),
		statsLog: zap.New(core),
		logger:   zaptest.NewLogger(t),
		now:      clock.now,
	}, logs, clock
}

func TestStepReportsCrashesAndTimeouts(t *testing.T) {
	target := &scriptedTarget{kinds: []executor.ExitKind{executor.Ok, executor.Crash, executor.Timeout}}
	crashes := make(chan types.CrashMessage, 8)
	c, _, _ := newCampaign(t, target, crashes)

	for range 3 {
		if err := c.step(); err != nil {
			t.Fatal(err)
		}
	}
	if len(crashes) != 2 {
		t.Fatalf("%d crash messages", len(crashes))
	}
	first := <-crashes
	if first.Kind != "crash" || first.Core != 2 || first.Binary != "/usr/sbin/exim" {
		t.Errorf("message %+v", first)
	}
	var doc input.Input[S]
	if err := json.Unmarshal(first.Document, &doc); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1<<16)
	if got := buf[:doc.SerializeInto(buf)]; string(got) != string(first.Wire) {
		t.Errorf("document serializes to %q, wire is %q", got, first.Wire)
	}
	if second := <-crashes; second.Kind != "timeout" {
		t.Errorf("second message kind %q", second.Kind)
	}
	if c.stats.Executions != 3 || c.stats.Crashes != 1 || c.stats.Timeouts != 1 {
		t.Errorf("stats %+v", c.stats)
	}
	if c.corpus.Count() != 1 {
		t.Errorf("corpus grew to %d without feedback", c.corpus.Count())
	}
}

func TestStepWireIsCopied(t *testing.T) {
	target := &scriptedTarget{kinds: []executor.ExitKind{executor.Crash}}
	crashes := make(chan types.CrashMessage, 4)
	c, _, _ := newCampaign(t, target, crashes)
	if err := c.step(); err != nil {
		t.Fatal(err)
	}
	msg := <-crashes
	before := append([]byte(nil), msg.Wire...)
	for i := range target.payload {
		target.payload[i] = 0
	}
	if !bytes.Equal(before, msg.Wire) {
		t.Error("crash message aliases the packet buffer")
	}
}

func TestStepFeedbackGrowsCorpus(t *testing.T) {
	c, _, _ := newCampaign(t, &scriptedTarget{kinds: []executor.ExitKind{executor.Ok}}, nil)
	c.feedback = admitAll{}
	for range 20 {
		if err := c.step(); err != nil {
			t.Fatal(err)
		}
	}
	if c.corpus.Count() < 2 {
		t.Errorf("corpus has %d entries", c.corpus.Count())
	}
}

func TestStepImportsQueueEntries(t *testing.T) {
	c, _, _ := newCampaign(t, &scriptedTarget{kinds: []executor.ExitKind{executor.Ok}}, nil)
	path := filepath.Join(t.TempDir(), "sibling")
	sibling, _ := input.ParseText[S](tokens.NewFactory(nil), []byte("QUIT\r\n"))
	if err := sibling.Store(path); err != nil {
		t.Fatal(err)
	}
	imports := make(chan string, 2)
	imports <- path
	close(imports)
	c.imports = imports

	if err := c.step(); err != nil {
		t.Fatal(err)
	}
	if c.corpus.Count() != 2 {
		t.Errorf("corpus has %d entries", c.corpus.Count())
	}
	if c.imports != nil {
		t.Error("closed import channel kept")
	}
}

func TestStepPropagatesExecutorErrors(t *testing.T) {
	c, _, _ := newCampaign(t, &scriptedTarget{err: executor.ErrInvalidPID}, nil)
	if err := c.step(); !errors.Is(err, executor.ErrInvalidPID) {
		t.Fatalf("err = %v", err)
	}
	if err := c.loop(context.Background()); !errors.Is(err, executor.ErrInvalidPID) {
		t.Fatalf("loop err = %v", err)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	c, _, _ := newCampaign(t, &scriptedTarget{kinds: []executor.ExitKind{executor.Ok}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.loop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStatsReportedEveryInterval(t *testing.T) {
	c, logs, clock := newCampaign(t, &scriptedTarget{kinds: []executor.ExitKind{executor.Ok}}, nil)
	for range 5 {
		c.step()
	}
	if logs.Len() != 0 {
		t.Fatalf("reported early: %d", logs.Len())
	}
	clock.t = clock.t.Add(time.Minute)
	c.step()
	c.step()
	if logs.Len() != 1 {
		t.Fatalf("%d reports", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["executions"] != uint64(6) || fields["core"] != int64(2) {
		t.Errorf("fields %v", fields)
	}
}

func TestStatsRecordCountsByExitKind(t *testing.T) {
	s := NewStats(time.Minute, nil, time.Unix(0, 0))
	for _, kind := range []executor.ExitKind{executor.Ok, executor.Crash, executor.Timeout, executor.Crash} {
		s.Record(kind)
	}
	if s.Executions != 4 || s.Crashes != 2 || s.Timeouts != 1 {
		t.Errorf("stats %+v", s)
	}
	if rate := s.ExecsPerSec(time.Unix(2, 0)); rate != 2 {
		t.Errorf("exec/s = %v", rate)
	}
}
