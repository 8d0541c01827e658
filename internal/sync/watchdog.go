// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"time"

	"github.com/tomtom215/embysync/internal/metrics"
)

// maxFindings bounds the watchdog history kept for Status.
const maxFindings = 32

// checkPending flags counters that stayed nonzero past the grace period
// with no request younger than the grace period. Each episode is
// reported once.
func (o *Orchestrator) checkPending(now time.Time) {
	grace := o.settings.SyncSettings().WatchdogGrace
	if grace <= 0 {
		return
	}
	for _, typ := range requestTypes {
		for server, n := range o.counts[typ] {
			if n == 0 {
				continue
			}
			key := counterKey{typ, server}
			since, ok := o.since[key]
			if !ok || now.Sub(since) < grace || o.stuck[key] {
				continue
			}
			if o.hasLiveRequest(typ, server, now, grace) {
				continue
			}
			o.stuck[key] = true
			finding := StuckCounter{Type: typ.String(), Server: server, Count: n, Since: since, Detected: now}
			o.findings = append(o.findings, finding)
			if len(o.findings) > maxFindings {
				o.findings = o.findings[len(o.findings)-maxFindings:]
			}
			metrics.StuckRequests.WithLabelValues(typ.String(), server).Inc()
			o.log.Error("Request counter stuck",
				"type", typ.String(),
				"server", server,
				"count", n,
				"pending", o.pendingOf(typ, server),
				"nonzero_for", now.Sub(since).Round(time.Millisecond).String())
		}
	}
}

func (o *Orchestrator) hasLiveRequest(typ RequestType, server string, now time.Time, grace time.Duration) bool {
	for _, p := range o.pending {
		if p.typ == typ && p.server == server && now.Sub(p.issuedAt) < grace {
			return true
		}
	}
	return false
}

func (o *Orchestrator) pendingOf(typ RequestType, server string) int {
	n := 0
	for _, p := range o.pending {
		if p.typ == typ && p.server == server {
			n++
		}
	}
	return n
}
