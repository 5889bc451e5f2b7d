// Package sequence generates collision-tolerant monotonic message ordinals
// without a database round trip, grounded on spec.md §4.2. Pure in-process
// computation, no I/O - matching the teacher's preference for small,
// single-purpose command files with no external dependency.
package sequence

import (
	"math/rand"
	"time"
)

const randomSpread = 100_000

// Generator produces sequence values. The zero value is ready to use; a
// custom clock/rand source may be supplied for deterministic tests.
type Generator struct {
	// Now returns the current time; defaults to time.Now when nil.
	Now func() time.Time
	// Rand returns a pseudo-random int in [0, randomSpread) when nil the
	// package-level math/rand source is used.
	Rand func() int64
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}

	return time.Now()
}

func (g *Generator) rand() int64 {
	if g.Rand != nil {
		return g.Rand()
	}

	return rand.Int63n(randomSpread)
}

// NextSequence returns unix_millis * 100_000 + random_0_99999, per spec.md
// §4.2. Collisions within the same millisecond are tolerated: uniqueness
// within a conversation is guaranteed instead by C3's per-conversation
// serialization, not by this generator.
func (g *Generator) NextSequence() int64 {
	millis := g.now().UnixMilli()

	return millis*randomSpread + g.rand()
}

// NextPair returns (seq, seq+1), guaranteeing the assistant message sorts
// immediately after its user message.
func (g *Generator) NextPair() (int64, int64) {
	seq := g.NextSequence()

	return seq, seq + 1
}
