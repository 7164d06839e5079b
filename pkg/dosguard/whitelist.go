// Copyright (C) 2026 the clio developers.
// See LICENSE for copying information.

package dosguard

import (
	"net/netip"
	"strings"
)

// Whitelist matches client IPs against a configured set of exact addresses
// and CIDR subnets. It is immutable after construction and therefore safe for
// concurrent use.
type Whitelist struct {
	addrs   map[netip.Addr]struct{}
	subnets []netip.Prefix
}

// NewWhitelist parses entries, accepting exact IPs ("203.0.113.7") and CIDR
// subnets ("10.0.0.0/8").
func NewWhitelist(entries []string) (*Whitelist, error) {
	w := &Whitelist{addrs: make(map[netip.Addr]struct{})}
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			w.subnets = append(w.subnets, prefix)
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		w.addrs[addr] = struct{}{}
	}
	return w, nil
}

// IsWhitelisted reports whether ip is covered by the whitelist. An
// unparseable ip is never whitelisted.
func (w *Whitelist) IsWhitelisted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	if _, ok := w.addrs[addr]; ok {
		return true
	}
	for _, subnet := range w.subnets {
		if subnet.Contains(addr) {
			return true
		}
	}
	return false
}
