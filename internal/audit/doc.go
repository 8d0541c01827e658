// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package audit keeps a journal of user-data pushes: which server was
// changed, for which item, from which state to which state, and whether
// the server accepted it.
//
// Entries are written asynchronously by a Journal to a Store. BadgerStore
// persists them in BadgerDB (or in memory for tests);
// MemoryStore is a bounded slice for callers that need no persistence.
package audit
