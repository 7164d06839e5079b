// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	s := NewExponentialBackoff(10*time.Millisecond, 80*time.Millisecond)

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, s.Delay())
		s.IncreaseDelay()
	}

	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond,
	}, delays)

	s.Reset()
	require.Equal(t, 10*time.Millisecond, s.Delay())
}

func TestFixedDelay(t *testing.T) {
	s := NewFixedDelay(5 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.Equal(t, 5*time.Millisecond, s.Delay())
		s.IncreaseDelay()
	}
}

func TestLinearBackoff(t *testing.T) {
	s := NewLinearBackoff(time.Second, time.Second, 3*time.Second)

	var delays []time.Duration
	for i := 0; i < 5; i++ {
		delays = append(delays, s.Delay())
		s.IncreaseDelay()
	}

	require.Equal(t, []time.Duration{
		time.Second,
		2 * time.Second,
		3 * time.Second,
		3 * time.Second,
		3 * time.Second,
	}, delays)

	s.Reset()
	require.Equal(t, time.Second, s.Delay())
}

func TestJitteredBackoffNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewJitteredBackoff(10*time.Millisecond, time.Second, rng)

	previous := s.Delay()
	for i := 0; i < 20; i++ {
		s.IncreaseDelay()
		current := s.Delay()
		require.GreaterOrEqual(t, current, previous)
		require.LessOrEqual(t, current, time.Second)
		previous = current
	}

	s.Reset()
	require.Equal(t, 10*time.Millisecond, s.Delay())
}

func TestRetryFires(t *testing.T) {
	r := WithExponentialBackoff(time.Millisecond, 10*time.Millisecond)

	fired := make(chan struct{})
	r.Retry(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
	require.Equal(t, uint64(1), r.AttemptNumber())
}

func TestRetryEscalatesDelayAtScheduleTime(t *testing.T) {
	r := WithExponentialBackoff(time.Minute, 4*time.Minute)
	require.Equal(t, time.Minute, r.DelayValue())

	// The delay for the next scheduling call escalates immediately, before
	// the pending wait has fired.
	r.Retry(func() {})
	require.Equal(t, 2*time.Minute, r.DelayValue())
	r.Retry(func() {})
	require.Equal(t, 4*time.Minute, r.DelayValue())

	r.Cancel()
}

func TestRetryCancel(t *testing.T) {
	r := WithExponentialBackoff(20*time.Millisecond, time.Second)

	fired := make(chan struct{})
	r.Retry(func() { close(fired) })
	r.Cancel()

	select {
	case <-fired:
		t.Fatal("cancelled callback fired")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, uint64(0), r.AttemptNumber())
}

func TestRetryReset(t *testing.T) {
	r := WithExponentialBackoff(time.Millisecond, time.Second)

	fired := make(chan struct{})
	r.Retry(func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}

	require.Equal(t, uint64(1), r.AttemptNumber())
	require.NotEqual(t, time.Millisecond, r.DelayValue())

	r.Reset()
	require.Equal(t, uint64(0), r.AttemptNumber())
	require.Equal(t, time.Millisecond, r.DelayValue())
}

func TestRetrySupersedesPending(t *testing.T) {
	r := New(NewFixedDelay(20 * time.Millisecond))

	first := make(chan struct{})
	second := make(chan struct{})
	r.Retry(func() { close(first) })
	r.Retry(func() { close(second) })

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("superseding callback did not fire")
	}

	select {
	case <-first:
		t.Fatal("superseded callback fired")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, uint64(1), r.AttemptNumber())
}
