// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package etl

import "time"

// SourceConfig describes one upstream endpoint (`etl_sources` entry).
type SourceConfig struct {
	IP       string `help:"IP or hostname of the upstream node" default:""`
	WSPort   string `help:"websocket port of the upstream node" default:""`
	GRPCPort string `help:"gRPC port of the upstream node" default:""`
}

// Config configures the load balancer.
type Config struct {
	Sources       []SourceConfig
	NumMarkers    int           `help:"number of parallel ranges an initial ledger download is split into, clamped to 1..256; 0 picks a default based on whether the backend already holds a ledger range" default:"0"`
	RetryInterval time.Duration `help:"how long to wait after the whole pool failed to supply a ledger before rescanning" default:"2s"`
}
