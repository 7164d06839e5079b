// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package etl

import (
	"context"
	"encoding/json"
)

// Source is one upstream connection capable of supplying ledger data and
// forwarding RPC requests. Implementations own the wire protocol (handshake,
// subscription streaming, binary ledger decoding); the balancer only drives
// the calls below.
//
// A Source may be referenced concurrently by the balancer pool and by other
// subsystems such as stream fan-out, so implementations must be safe for
// concurrent use.
type Source interface {
	// Run begins background connectivity and blocks until ctx is cancelled
	// or the source fails fatally.
	Run(ctx context.Context) error

	// LoadInitialLedger downloads a complete ledger snapshot for sequence,
	// sharded across numMarkers parallel range requests. With cacheOnly the
	// downloaded objects are only written to the cache, not returned.
	LoadInitialLedger(ctx context.Context, sequence uint32, numMarkers uint32, cacheOnly bool) ([]string, error)

	// FetchLedger fetches a single ledger, optionally including its state
	// objects and their neighbors.
	FetchLedger(ctx context.Context, sequence uint32, getObjects, getObjectNeighbors bool) (*LedgerResponse, error)

	// Forward proxies an opaque client RPC request to the upstream node on
	// behalf of clientIP.
	Forward(ctx context.Context, request json.RawMessage, clientIP string) (json.RawMessage, error)

	// HasLedger reports whether the upstream node has the ledger locally.
	HasLedger(sequence uint32) bool

	// IsConnected reports whether the source's subscription stream is up.
	IsConnected() bool

	// Equal reports whether other refers to the same upstream endpoint.
	Equal(other Source) bool

	// Status returns a point-in-time snapshot for observability.
	Status() SourceStatus

	String() string
}

// NewSourceFunc constructs a Source from one endpoint descriptor. The wire
// client implementation is supplied by the embedding process.
type NewSourceFunc func(config SourceConfig) Source

// SourceStatus is the JSON-serializable snapshot of one source.
type SourceStatus struct {
	ValidatedRange string  `json:"validated_range"`
	IsConnected    bool    `json:"is_connected"`
	IP             string  `json:"ip"`
	WSPort         string  `json:"ws_port"`
	GRPCPort       string  `json:"grpc_port"`
	LastMessageAge float64 `json:"last_msg_age_seconds"`
}

// LedgerResponse is one upstream reply to a ledger fetch. Header and object
// blobs are opaque to the balancer. Validated reports whether the upstream
// considers the ledger to have reached consensus finality; the balancer only
// accepts validated ledgers.
type LedgerResponse struct {
	Sequence     uint32
	Validated    bool
	Header       []byte
	Transactions [][]byte
	Objects      [][]byte
}

// Range is an inclusive ledger sequence range.
type Range struct {
	MinSequence uint32 `json:"min_sequence"`
	MaxSequence uint32 `json:"max_sequence"`
}

// LedgerRangeReader is the balancer's view of the local storage backend. It
// is only consulted at construction time to pick the initial download
// sharding default.
type LedgerRangeReader interface {
	// LedgerRange returns the locally stored ledger range, if any.
	LedgerRange(ctx context.Context) (Range, bool)
}
