// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package api serves the catalog and the orchestrator over HTTP in serve
mode.

Routes:

	GET  /healthz                        liveness and orchestrator state
	GET  /metrics                        Prometheus
	GET  /api/v1/media                   records; ?differences=true, ?issues=true, ?search=
	GET  /api/v1/media/{handle}          one record
	POST /api/v1/media/{handle}/locate   find the record on ?server= by provider ids
	POST /api/v1/sync                    start a pass; ?wait=true blocks for the report
	POST /api/v1/process                 push updates; ?server= copies from one server
	POST /api/v1/cancel                  abort everything in flight
	GET  /api/v1/status                  orchestrator status
	GET  /api/v1/history                 audit journal; ?server=, ?media_id=, ?outcome=, ?since=, ?limit=
	GET  /api/v1/events                  websocket change feed

Every JSON response uses the models.APIResponse envelope. Errors carry a
stable code (BUSY, NOT_FOUND, VALIDATION_ERROR, ...) next to the message.
*/
package api
