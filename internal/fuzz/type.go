package fuzz

import (
	"desockfuzz/internal/executor"
	"desockfuzz/internal/shmem"
)

// Target runs test cases. *executor.Executor is the production target.
type Target interface {
	Run(in executor.Serializer) (executor.ExitKind, error)
	// Payload returns the bytes the last run was fed.
	Payload() []byte
	Close() error
}

// Feedback decides whether a run that ended normally earned its input a
// place in the corpus.
type Feedback interface {
	Interesting(cov *shmem.CoverageMap, kind executor.ExitKind) bool
}

// NoFeedback admits nothing. The corpus then grows only from seeds and
// from queue entries written by sibling workers.
type NoFeedback struct{}

func (NoFeedback) Interesting(*shmem.CoverageMap, executor.ExitKind) bool { return false }
