// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package retry

import (
	"math/rand"
	"time"
)

// Strategy computes the delay between retry attempts. The current delay never
// decreases except through Reset.
//
// Implementations are not required to be safe for concurrent use; Retry
// serializes all access to its strategy.
type Strategy interface {
	// Delay returns the current delay value without mutating it.
	Delay() time.Duration
	// IncreaseDelay advances the current delay according to the policy.
	IncreaseDelay()
	// Reset restores the current delay to the initial delay.
	Reset()
}

// ExponentialBackoff doubles the delay on every increase, up to a maximum.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	delay   time.Duration
}

// NewExponentialBackoff returns a strategy starting at initial and doubling
// up to max.
func NewExponentialBackoff(initial, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{initial: initial, max: max, delay: initial}
}

// Delay implements Strategy.
func (s *ExponentialBackoff) Delay() time.Duration { return s.delay }

// IncreaseDelay implements Strategy.
func (s *ExponentialBackoff) IncreaseDelay() {
	s.delay *= 2
	if s.delay > s.max {
		s.delay = s.max
	}
}

// Reset implements Strategy.
func (s *ExponentialBackoff) Reset() { s.delay = s.initial }

// FixedDelay waits the same amount of time between every attempt.
type FixedDelay struct {
	delay time.Duration
}

// NewFixedDelay returns a strategy with a constant delay.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay}
}

// Delay implements Strategy.
func (s *FixedDelay) Delay() time.Duration { return s.delay }

// IncreaseDelay implements Strategy.
func (s *FixedDelay) IncreaseDelay() {}

// Reset implements Strategy.
func (s *FixedDelay) Reset() {}

// LinearBackoff grows the delay by a fixed step on every increase, up to a
// maximum.
type LinearBackoff struct {
	initial time.Duration
	step    time.Duration
	max     time.Duration
	delay   time.Duration
}

// NewLinearBackoff returns a strategy starting at initial and growing by step
// up to max.
func NewLinearBackoff(initial, step, max time.Duration) *LinearBackoff {
	return &LinearBackoff{initial: initial, step: step, max: max, delay: initial}
}

// Delay implements Strategy.
func (s *LinearBackoff) Delay() time.Duration { return s.delay }

// IncreaseDelay implements Strategy.
func (s *LinearBackoff) IncreaseDelay() {
	s.delay += s.step
	if s.delay > s.max {
		s.delay = s.max
	}
}

// Reset implements Strategy.
func (s *LinearBackoff) Reset() { s.delay = s.initial }

// JitteredBackoff doubles a base delay on every increase, capped at a maximum,
// and adds a random jitter of up to half the base on top. The resulting delay
// sequence is still non-decreasing because the base doubles faster than the
// jitter can shrink.
type JitteredBackoff struct {
	initial time.Duration
	max     time.Duration
	rng     *rand.Rand

	base  time.Duration
	delay time.Duration
}

// NewJitteredBackoff returns a jittered exponential strategy. rng may be nil,
// in which case the shared global generator is used; tests pass a seeded one
// for determinism.
func NewJitteredBackoff(initial, max time.Duration, rng *rand.Rand) *JitteredBackoff {
	return &JitteredBackoff{initial: initial, max: max, rng: rng, base: initial, delay: initial}
}

// Delay implements Strategy.
func (s *JitteredBackoff) Delay() time.Duration { return s.delay }

// IncreaseDelay implements Strategy.
func (s *JitteredBackoff) IncreaseDelay() {
	s.base *= 2
	if s.base > s.max {
		s.base = s.max
	}
	s.delay = s.base + s.jitter(s.base/2)
	if s.delay > s.max {
		s.delay = s.max
	}
	if s.delay < s.base {
		s.delay = s.base
	}
}

// Reset implements Strategy.
func (s *JitteredBackoff) Reset() {
	s.base = s.initial
	s.delay = s.initial
}

func (s *JitteredBackoff) jitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	if s.rng != nil {
		return time.Duration(s.rng.Int63n(int64(span)))
	}
	return time.Duration(rand.Int63n(int64(span)))
}
