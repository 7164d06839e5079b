// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package dosguard

import "time"

// Config configures admission control.
type Config struct {
	MaxFetches     uint64        `help:"maximum bytes a client may fetch per sweep window" default:"1000000"`
	MaxConnections uint32        `help:"maximum concurrent connections per client" default:"20"`
	MaxRequests    uint32        `help:"maximum requests a client may issue per sweep window" default:"20"`
	Whitelist      []string      `help:"IPs and CIDR subnets exempt from admission control"`
	SweepInterval  time.Duration `help:"how often windowed request and byte counters are reset" default:"1s"`
}

func (c *Config) init() {
	if c.MaxFetches == 0 {
		c.MaxFetches = 1000000
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 20
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 20
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Second
	}
}
