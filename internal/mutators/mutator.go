package mutators

import (
	"math/rand/v2"

	"desockfuzz/internal/input"
	"desockfuzz/internal/tokens"
)

type Result int

const (
	Skipped Result = iota
	Mutated
)

func (r Result) String() string {
	if r == Mutated {
		return "mutated"
	}
	return "skipped"
}

func resultOf(mutated bool) Result {
	if mutated {
		return Mutated
	}
	return Skipped
}

// Corpus is the view of the fuzzing engine's corpus mutators draw donors from.
type Corpus[P input.Packet[P]] interface {
	Count() int
	// Current returns the id of the entry being mutated, if any.
	Current() (int, bool)
	Get(id int) (*input.Input[P], error)
}

// State carries what a mutation round may consult besides the input itself.
// Dictionary may be empty.
type State[P input.Packet[P]] struct {
	Rand       *rand.Rand
	Corpus     Corpus[P]
	Factory    input.PacketFactory[P]
	Dictionary tokens.Dictionary
}

// Mutator transforms a whole test case in place.
type Mutator[P input.Packet[P]] interface {
	Name() string
	Mutate(st *State[P], in *input.Input[P]) (Result, error)
}

// PacketMutator transforms the content of a single packet in place.
type PacketMutator[P input.Packet[P]] interface {
	MutatePacket(st *State[P], packet P) (Result, error)
}
