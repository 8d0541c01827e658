// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package sync drives requests to every enabled server and folds the answers
into the catalog.

# Ownership

One goroutine, Run, owns all mutable orchestration state: the in-flight
counters, the pending-request map, resolved users and the active pass.
Public methods hand it a closure over a channel. Network calls run in
their own goroutines and report back through a completion channel; they
never touch orchestration state.

# Sync pass

A pass moves Idle -> Requesting -> Merging -> Idle:

 1. Servers without a resolved user get a GetUsers request. When the last
    GetUsers completes, every server with a user gets GetMediaList.
 2. Each GetMediaList completion decrements its counter, then stages the
    listing. When the summed GetMediaList count reaches zero, the merge
    runs, exactly once per pass.

Testing and pushing updates run beside a pass without blocking it.

# Cancellation

Cancel aborts every request context, drains counters and pending requests,
discards staged listings and returns to Idle without merging. A merge in
progress observes the cancel between items.

# Watchdog

A ticker flags any (type, server) counter that has stayed nonzero past
the grace period with no request younger than the grace period. It logs,
counts the event in embysync_stuck_request_counters_total and lists it in
Status. It never clears the counter.
*/
package sync
