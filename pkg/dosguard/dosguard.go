// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

// Package dosguard bounds per-client resource consumption of the gateway.
//
// Two kinds of limits coexist: a live gauge of concurrent connections, and
// windowed request and byte counters that accumulate until a periodic sweep
// resets them. A whitelisted client bypasses every check unconditionally.
package dosguard

import (
	"fmt"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the error class for the dosguard package.
	Error = errs.Class("dosguard")

	mon = monkit.Package()
)

// WhitelistHandler reports whether a client IP is exempt from admission
// control.
type WhitelistHandler interface {
	IsWhitelisted(ip string) bool
}

type ipState struct {
	transferredBytes uint64
	requestCount     uint32
}

// Guard tracks per-client consumption and admits or rejects clients against
// the configured ceilings. All methods are safe for concurrent use; every
// critical section is an O(1) map operation with no I/O, so contention stays
// negligible under high request rates.
type Guard struct {
	log       *zap.Logger
	whitelist WhitelistHandler

	maxFetches      uint64
	maxConnCount    uint32
	maxRequestCount uint32

	mu        sync.Mutex
	ipState   map[string]*ipState
	connCount map[string]uint32
}

// New returns a Guard enforcing the configured limits. Zero limits fall back
// to the defaults.
func New(log *zap.Logger, config Config, whitelist WhitelistHandler) *Guard {
	config.init()
	return &Guard{
		log:             log,
		whitelist:       whitelist,
		maxFetches:      config.MaxFetches,
		maxConnCount:    config.MaxConnections,
		maxRequestCount: config.MaxRequests,
		ipState:         make(map[string]*ipState),
		connCount:       make(map[string]uint32),
	}
}

// IsWhitelisted reports whether ip bypasses admission control.
func (g *Guard) IsWhitelisted(ip string) bool {
	return g.whitelist.IsWhitelisted(ip)
}

// IsOK reports whether ip is within every configured limit. It never mutates
// any counter.
func (g *Guard) IsOK(ip string) bool {
	if g.whitelist.IsWhitelisted(ip) {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isOKLocked(ip)
}

func (g *Guard) isOKLocked(ip string) bool {
	if state, ok := g.ipState[ip]; ok {
		if state.transferredBytes > g.maxFetches || state.requestCount > g.maxRequestCount {
			g.log.Warn("client surpassed the rate limit",
				zap.String("ip", ip),
				zap.Uint64("transferred_bytes", state.transferredBytes),
				zap.Uint32("requests", state.requestCount))
			mon.Event("rate_limited")
			return false
		}
	}
	if count, ok := g.connCount[ip]; ok && count > g.maxConnCount {
		g.log.Warn("client surpassed the connection limit",
			zap.String("ip", ip),
			zap.Uint32("connections", count))
		mon.Event("connection_limited")
		return false
	}
	return true
}

// Increment records one opened connection for ip.
func (g *Guard) Increment(ip string) {
	if g.whitelist.IsWhitelisted(ip) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connCount[ip]++
}

// Decrement records one closed connection for ip. Calling it for an ip with
// no live connections indicates a bug in the connection-lifecycle caller and
// panics rather than letting the gauge go negative.
func (g *Guard) Decrement(ip string) {
	if g.whitelist.IsWhitelisted(ip) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	count, ok := g.connCount[ip]
	if !ok || count == 0 {
		panic(fmt.Sprintf("dosguard: connection count for ip %q is already 0", ip))
	}
	count--
	if count == 0 {
		delete(g.connCount, ip)
	} else {
		g.connCount[ip] = count
	}
}

// Add records numBytes served to ip and reports whether ip is still within
// its limits. A single oversized response can trip the limiter for the
// client's subsequent requests.
func (g *Guard) Add(ip string, numBytes uint64) bool {
	if g.whitelist.IsWhitelisted(ip) {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stateLocked(ip).transferredBytes += numBytes
	return g.isOKLocked(ip)
}

// Request records one request issued by ip and reports whether ip is still
// within its limits.
func (g *Guard) Request(ip string) bool {
	if g.whitelist.IsWhitelisted(ip) {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stateLocked(ip).requestCount++
	return g.isOKLocked(ip)
}

func (g *Guard) stateLocked(ip string) *ipState {
	state, ok := g.ipState[ip]
	if !ok {
		state = &ipState{}
		g.ipState[ip] = state
	}
	return state
}

// Clear resets the windowed request and byte counters for every tracked ip.
// Live connection counts are untouched. It is driven by Sweeper once per
// window.
func (g *Guard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ipState = make(map[string]*ipState)
}
