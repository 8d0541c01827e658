// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package websocket streams catalog changes and pushed updates to browser
clients.

The Hub owns the client set. Bus messages arrive through BroadcastRaw
(the events.Forwarder sink) and are written to every client as text
frames, unchanged. A client that cannot keep up is dropped rather than
slowing the others.

Clients may send {"type":"ping"} and receive {"type":"pong"}. The server
pings every pingPeriod and drops clients that stop answering.

The hub runs under suture via Serve; cancelling its context closes every
client.
*/
package websocket
