// Package rng provides the seeded pseudo-random stream used for reproducible
// chip scatter and jitter.
//
// The generator is a 32-bit linear congruential recurrence
//
//	state' = state*1664525 + 1013904223 (mod 2^32)
//
// whose output is state'/2^32. All arithmetic is on uint32, so the sequence is
// identical on every platform and matches any other implementation of the
// same recurrence.
package rng

import "time"

const (
	multiplier = 1664525
	increment  = 1013904223
	modulus    = 1 << 32
)

// Next advances state once and returns the output in [0, 1) together with the
// new state. It is a pure function.
func Next(state uint32) (float64, uint32) {
	state = state*multiplier + increment
	return float64(state) / modulus, state
}

// Source is a stateful wrapper around [Next]. It is not safe for concurrent use.
type Source struct {
	state uint32
}

// New returns a Source seeded with seed.
func New(seed uint32) *Source {
	return &Source{state: seed}
}

// Float64 returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	v, next := Next(s.state)
	s.state = next
	return v
}

// Range returns the next value scaled into [lo, hi).
func (s *Source) Range(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// Jitter returns a value in [-amp/2, amp/2).
func (s *Source) Jitter(amp float64) float64 {
	return (s.Float64() - 0.5) * amp
}

// State returns the current internal state.
func (s *Source) State() uint32 { return s.state }

// Seed picks the seed for a layout run. Deterministic runs use key (a zero key
// becomes 1); other runs derive the seed from the wall clock.
func Seed(deterministic bool, key uint32, now time.Time) uint32 {
	if deterministic {
		if key == 0 {
			return 1
		}
		return key
	}
	s := uint32(now.UnixMilli())
	if s == 0 {
		return 1
	}
	return s
}
