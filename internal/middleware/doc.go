// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package middleware holds the HTTP middleware of serve mode: request ids
// that double as log correlation ids, Prometheus instrumentation keyed by
// chi route pattern, and access logging.
package middleware
