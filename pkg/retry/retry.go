// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

// Package retry provides scheduled re-invocation of callbacks under a
// pluggable backoff policy. It is used by upstream connection management to
// re-establish dropped connections without hot-looping.
package retry

import (
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
)

var mon = monkit.Package()

// Retry binds one Strategy to one timer. All methods are safe for concurrent
// use and mutually exclusive, so at most one scheduled callback per instance
// is ever pending.
//
// Scheduling advances the strategy's delay immediately, so back-to-back Retry
// calls escalate the delay even before a previously scheduled callback has
// fired.
type Retry struct {
	mu       sync.Mutex
	strategy Strategy
	timer    *time.Timer
	attempts uint64
}

// New returns a Retry driven by the given strategy.
func New(strategy Strategy) *Retry {
	return &Retry{strategy: strategy}
}

// WithExponentialBackoff returns a Retry whose delay doubles on every
// scheduling call, capped at max.
func WithExponentialBackoff(initial, max time.Duration) *Retry {
	return New(NewExponentialBackoff(initial, max))
}

// Retry schedules fn to run after the current delay elapses and advances the
// delay for the next scheduling call. A previously scheduled callback that
// has not fired yet is superseded. fn runs on its own goroutine.
func (r *Retry) Retry(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}

	delay := r.strategy.Delay()
	r.strategy.IncreaseDelay()

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.timer != t {
			// Cancelled or superseded between firing and acquiring the lock.
			r.mu.Unlock()
			return
		}
		r.timer = nil
		r.attempts++
		r.mu.Unlock()

		mon.Event("retry_fired")
		fn()
	})
	r.timer = t
}

// Cancel aborts the pending retry, if any. Cancellation is best-effort: a
// callback already dispatched for execution may still complete.
func (r *Retry) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// AttemptNumber returns how many scheduled waits have fired without being
// cancelled.
func (r *Retry) AttemptNumber() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// DelayValue returns the strategy's current delay.
func (r *Retry) DelayValue() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategy.Delay()
}

// Reset restores the strategy's delay and the attempt counter to their
// initial state. It does not cancel a pending retry. Call it after a
// successful recovery so the next failure episode starts from the initial
// delay.
func (r *Retry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.strategy.Reset()
	r.attempts = 0
}
