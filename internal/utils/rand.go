package utils

import (
	"math/bits"
	"math/rand/v2"
	"time"
)

// NewRand returns a PCG generator seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, bits.RotateLeft64(seed, 32)^0x9e3779b97f4a7c15))
}

// CoreSeed derives a per-worker seed from the wall clock, rotated by the core id
// so that workers started in the same nanosecond still diverge.
func CoreSeed(core int) uint64 {
	return bits.RotateLeft64(uint64(time.Now().UnixNano()), -core)
}

// Between returns a uniformly distributed integer in [lo, hi].
func Between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Below returns a uniformly distributed integer in [0, n). n must be positive.
func Below(r *rand.Rand, n int) int {
	return r.IntN(n)
}

func Choose[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}
