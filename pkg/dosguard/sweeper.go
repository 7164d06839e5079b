// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package dosguard

import (
	"context"
	"time"

	"storj.io/common/sync2"
)

// Sweeper resets a guard's windowed counters once per interval. The guard
// never clears itself; the embedding process runs one Sweeper next to it.
type Sweeper struct {
	guard *Guard
	cycle *sync2.Cycle
}

// NewSweeper returns a Sweeper clearing guard every interval.
func NewSweeper(guard *Guard, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{
		guard: guard,
		cycle: sync2.NewCycle(interval),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return s.cycle.Run(ctx, func(ctx context.Context) error {
		s.guard.Clear()
		return nil
	})
}

// Close stops the sweep cycle.
func (s *Sweeper) Close() error {
	s.cycle.Close()
	return nil
}
