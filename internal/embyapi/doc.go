// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package embyapi is the HTTP transport to Emby and Jellyfin servers.

Each configured server gets one Client. A request passes through, in order:

  - a token-bucket limiter (golang.org/x/time/rate)
  - a per-server circuit breaker (sony/gobreaker)
  - a retry loop for transient failures (avast/retry-go)

so that a 503 followed by a 200 is a single logical request to callers.
Authentication (401), proxy authentication (407) and TLS failures are
never retried; they are reported to the ChallengeHandler and returned.

Item listings are paged. After the first page reveals the total, the
remaining pages are fetched concurrently on a bounded pool
(sourcegraph/conc) and reassembled in server order.

API Reference: https://dev.emby.media/doc/restapi/index.html
*/
package embyapi
