// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package supervisor runs the long-lived parts of serve mode under suture v4.

The tree has three layers so a failing HTTP listener cannot take the sync
loop down with it:

	Root ("embysync")
	├── data-layer
	│   └── audit-journal      retention pruning
	├── sync-layer
	│   ├── orchestrator       the request orchestrator event loop
	│   ├── sync-scheduler     periodic passes (sync.interval > 0)
	│   ├── websocket-hub
	│   └── event-forwarder    bus topics into the hub
	└── api-layer
	    └── http-server

Services that cannot be restarted (the orchestrator owns its state and Run
is single use) are wrapped with Once, which stops the whole tree when the
service returns for any reason other than shutdown.

Events from suture are logged through sutureslog on the slog adapter of the
global zerolog logger.
*/
package supervisor
