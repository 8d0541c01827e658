// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package catalog

// EventKind classifies a table change.
type EventKind int

const (
	// ItemUpserted means one record was created or changed in place.
	ItemUpserted EventKind = iota + 1
	// ItemRemoved means one record left the table.
	ItemRemoved
	// BatchReset means the whole table was replaced; re-read everything.
	BatchReset
)

func (k EventKind) String() string {
	switch k {
	case ItemUpserted:
		return "item_upserted"
	case ItemRemoved:
		return "item_removed"
	case BatchReset:
		return "batch_reset"
	default:
		return "unknown"
	}
}

// Event is a change notification. Handle is zero for BatchReset.
type Event struct {
	Kind   EventKind `json:"kind"`
	Handle Handle    `json:"handle,omitempty"`
}

// Emitter receives table change events. Emit is called after the change
// is visible to readers and must not block for long.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

// MultiEmitter fans out to several emitters in order.
type MultiEmitter []Emitter

// Emit forwards e to every emitter.
func (m MultiEmitter) Emit(e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(e)
		}
	}
}

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// ProgressSink reports progress of long loops and carries the user's
// cancel request. Implementations must tolerate a call per item.
type ProgressSink interface {
	PushState()
	PopState()
	SetTitle(title string)
	SetMaximum(n int)
	SetValue(n int)
	WasCanceled() bool
}

// NopProgress ignores progress and never cancels.
type NopProgress struct{}

func (NopProgress) PushState()        {}
func (NopProgress) PopState()         {}
func (NopProgress) SetTitle(string)   {}
func (NopProgress) SetMaximum(int)    {}
func (NopProgress) SetValue(int)      {}
func (NopProgress) WasCanceled() bool { return false }
