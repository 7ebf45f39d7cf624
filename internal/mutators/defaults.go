package mutators

import (
	"desockfuzz/internal/tokens"
)

// Options sizes the default mutation pipeline.
type Options struct {
	MaxPackets  int
	MaxTokens   int
	MaxStackPow int
	Seed        uint64
}

// NewTokenStreamPipeline returns the havoc pipeline used by fuzzing workers:
// structural packet operators, three independently seeded content mutators,
// random insertion, crossover and template generation.
func NewTokenStreamPipeline(opts Options) *ScheduledMutator[*tokens.Stream] {
	type S = *tokens.Stream
	return NewScheduledMutator[S](opts.MaxStackPow,
		NewCopyMutator[S](opts.MaxPackets),
		NewDeleteMutator[S](),
		NewRepeatMutator[S](opts.MaxPackets),
		NewSwapMutator[S](),
		NewContentMutator[S](NewTokenStreamMutator(opts.MaxTokens, opts.Seed)),
		NewContentMutator[S](NewTokenStreamMutator(opts.MaxTokens, opts.Seed+1)),
		NewContentMutator[S](NewTokenStreamMutator(opts.MaxTokens, opts.Seed+2)),
		NewRandomInsertionMutator[S](opts.MaxPackets),
		NewCrossoverMutator[S](opts.MaxPackets, opts.Seed),
		NewGenerationMutator[S](opts.MaxPackets),
	)
}
