package randutil

import (
	rand "math/rand/v2"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// Every table, deck and AI policy takes its randomness from a generator built
// here so that a seed reproduces a whole session.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewFromTime returns a generator seeded from the wall clock along with the
// seed used, so callers can log it and replay a table later.
func NewFromTime() (*rand.Rand, int64) {
	seed := time.Now().UnixNano()
	return New(seed), seed
}

// Derive returns an independent generator for a child component, keyed by
// the parent seed and a stream index. The registry uses it to give each room
// its own stream.
func Derive(seed int64, stream uint64) *rand.Rand {
	u := uint64(seed) ^ mix(stream+1)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64*(stream+1))))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
