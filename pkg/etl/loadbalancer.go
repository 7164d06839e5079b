// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

// Package etl selects among redundant upstream sources for fetching and
// forwarding ledger data, masking individual upstream failure from callers.
package etl

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/common/sync2"
)

var (
	// Error is the error class for the etl package.
	Error = errs.Class("etl")

	mon = monkit.Package()
)

const (
	minMarkers = 1
	maxMarkers = 256

	// A backend that already holds a ledger range only needs to catch up, so
	// the initial download is sharded less aggressively.
	defaultMarkersWithRange = 4
	defaultMarkers          = 16

	defaultRetryInterval = 2 * time.Second
)

// LoadBalancer fans ledger fetches out over an ordered pool of redundant
// upstream sources. Pool order is fixed at construction and defines both
// round-robin iteration and the first-connected tie-break for stream
// deduplication.
type LoadBalancer struct {
	log *zap.Logger

	sources       []Source
	numMarkers    uint32
	retryInterval time.Duration

	randInt func(n int) int
}

// Option configures a LoadBalancer.
type Option func(*LoadBalancer)

// WithRandomSource overrides the generator used to pick the starting index of
// each pool scan. The default is the shared, process-wide generator; tests
// pass a seeded one for determinism.
func WithRandomSource(rng *rand.Rand) Option {
	return func(lb *LoadBalancer) { lb.randInt = rng.Intn }
}

// New builds one Source per configured endpoint, in configuration order.
// ranges may be nil when the local backend is empty or unavailable; it is
// only consulted to pick the initial download sharding default.
func New(ctx context.Context, log *zap.Logger, config Config, ranges LedgerRangeReader, newSource NewSourceFunc, opts ...Option) (*LoadBalancer, error) {
	if len(config.Sources) == 0 {
		return nil, Error.New("no etl sources configured")
	}

	lb := &LoadBalancer{
		log:           log,
		retryInterval: config.RetryInterval,
		randInt:       rand.Intn,
	}
	if lb.retryInterval <= 0 {
		lb.retryInterval = defaultRetryInterval
	}
	lb.numMarkers = markersFor(ctx, config, ranges)

	for _, opt := range opts {
		opt(lb)
	}

	for _, entry := range config.Sources {
		source := newSource(entry)
		lb.sources = append(lb.sources, source)
		log.Info("added etl source", zap.Stringer("source", source))
	}

	return lb, nil
}

func markersFor(ctx context.Context, config Config, ranges LedgerRangeReader) uint32 {
	if config.NumMarkers != 0 {
		markers := config.NumMarkers
		if markers < minMarkers {
			markers = minMarkers
		}
		if markers > maxMarkers {
			markers = maxMarkers
		}
		return uint32(markers)
	}
	if ranges != nil {
		if _, ok := ranges.LedgerRange(ctx); ok {
			return defaultMarkersWithRange
		}
	}
	return defaultMarkers
}

// Run starts background connectivity for every pooled source and blocks until
// ctx is cancelled or a source fails fatally.
func (lb *LoadBalancer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)
	for _, source := range lb.sources {
		source := source
		group.Go(func() error { return source.Run(ctx) })
	}
	return Error.Wrap(group.Wait())
}

// LoadInitialLedger downloads a complete snapshot of the ledger at sequence,
// sharded across the configured number of parallel range requests, retrying
// across the pool until some source supplies it. It returns false only when
// ctx is cancelled before any source succeeded.
func (lb *LoadBalancer) LoadInitialLedger(ctx context.Context, sequence uint32, cacheOnly bool) (_ []string, ok bool) {
	defer mon.Task()(&ctx)(nil)

	var records []string
	ok = lb.execute(ctx, sequence, func(ctx context.Context, source Source) bool {
		data, err := source.LoadInitialLedger(ctx, sequence, lb.numMarkers, cacheOnly)
		if err != nil {
			lb.log.Error("failed to download initial ledger",
				zap.Uint32("sequence", sequence),
				zap.Stringer("source", source),
				zap.Error(err))
			return false
		}
		records = data
		return true
	})
	return records, ok
}

// FetchLedger fetches the ledger at sequence, retrying across the pool until
// some source returns a validated reply. It returns nil only when ctx is
// cancelled before any source succeeded.
func (lb *LoadBalancer) FetchLedger(ctx context.Context, sequence uint32, getObjects, getObjectNeighbors bool) *LedgerResponse {
	defer mon.Task()(&ctx)(nil)

	var response *LedgerResponse
	ok := lb.execute(ctx, sequence, func(ctx context.Context, source Source) bool {
		data, err := source.FetchLedger(ctx, sequence, getObjects, getObjectNeighbors)
		if err != nil || data == nil || !data.Validated {
			lb.log.Warn("could not fetch ledger",
				zap.Uint32("sequence", sequence),
				zap.Stringer("source", source),
				zap.Error(err))
			return false
		}
		lb.log.Info("successfully fetched ledger",
			zap.Uint32("sequence", sequence),
			zap.Stringer("source", source))
		response = data
		return true
	})
	if !ok {
		return nil
	}
	return response
}

// Forward proxies an opaque client RPC request to one source. It visits at
// most one full round of the pool starting at a random index and returns the
// first non-empty reply. Unlike the fetch paths it never sleeps: ok is false
// as soon as every source has failed once.
func (lb *LoadBalancer) Forward(ctx context.Context, request json.RawMessage, clientIP string) (_ json.RawMessage, ok bool) {
	defer mon.Task()(&ctx)(nil)

	idx := lb.randInt(len(lb.sources))
	for attempts := 0; attempts < len(lb.sources); attempts++ {
		source := lb.sources[idx]

		response, err := source.Forward(ctx, request, clientIP)
		if err == nil && len(response) > 0 {
			return response, true
		}
		if err != nil {
			lb.log.Debug("failed to forward request",
				zap.Stringer("source", source),
				zap.Error(err))
		}

		idx = (idx + 1) % len(lb.sources)
	}

	mon.Event("forward_exhausted")
	return nil, false
}

// ShouldPropagateStream reports whether a transaction stream event arriving
// from source should be fanned out to subscribers. The same event arrives
// redundantly from every connected source; only the first connected source in
// pool order is treated as authoritative. With no source connected every
// stream is propagated.
func (lb *LoadBalancer) ShouldPropagateStream(source Source) bool {
	for _, candidate := range lb.sources {
		if candidate.IsConnected() {
			return candidate.Equal(source)
		}
	}
	return true
}

// Status returns the status snapshot of every pooled source, in pool order.
func (lb *LoadBalancer) Status() []SourceStatus {
	statuses := make([]SourceStatus, 0, len(lb.sources))
	for _, source := range lb.sources {
		statuses = append(statuses, source.Status())
	}
	return statuses
}

// MarshalJSON renders the pool status for observability endpoints.
func (lb *LoadBalancer) MarshalJSON() ([]byte, error) {
	return json.Marshal(lb.Status())
}

// execute runs op against sources picked by random-start round-robin until
// one succeeds. Sources that do not report having the ledger are skipped.
// After every full pass without success it sleeps for the retry interval and
// scans again; the loop has no attempt ceiling, favoring eventual ingestion
// over bounded latency, and only ctx cancellation makes it report failure.
func (lb *LoadBalancer) execute(ctx context.Context, sequence uint32, op func(context.Context, Source) bool) bool {
	idx := lb.randInt(len(lb.sources))

	for attempts := 0; ; {
		source := lb.sources[idx]

		lb.log.Debug("attempting to execute",
			zap.Uint32("sequence", sequence),
			zap.Stringer("source", source))

		if source.HasLedger(sequence) {
			if op(ctx, source) {
				lb.log.Debug("successfully executed",
					zap.Uint32("sequence", sequence),
					zap.Stringer("source", source))
				return true
			}
			lb.log.Warn("failed to execute",
				zap.Uint32("sequence", sequence),
				zap.Stringer("source", source))
		} else {
			lb.log.Warn("ledger not present at source",
				zap.Uint32("sequence", sequence),
				zap.Stringer("source", source))
		}

		idx = (idx + 1) % len(lb.sources)
		attempts++
		if attempts%len(lb.sources) == 0 {
			lb.log.Info("ledger not yet available from any configured source, sleeping and trying again",
				zap.Uint32("sequence", sequence),
				zap.Duration("interval", lb.retryInterval))
			if !sync2.Sleep(ctx, lb.retryInterval) {
				return false
			}
		}
	}
}
