// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package events carries catalog changes and pushed updates over an
// in-process watermill bus to the websocket feed.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
)

// Topics published on the bus.
const (
	TopicCatalog = "catalog.changes"
	TopicPushes  = "sync.pushes"
)

// Message types.
const (
	TypeCatalog = "catalog"
	TypePush    = "push"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("event bus closed")

// Message is the JSON payload of every bus message.
type Message struct {
	Type    string         `json:"type"`
	Time    time.Time      `json:"time"`
	Catalog *CatalogChange `json:"catalog,omitempty"`
	Push    *audit.Entry   `json:"push,omitempty"`
}

// CatalogChange is a catalog.Event in wire form.
type CatalogChange struct {
	Kind   string         `json:"kind"`
	Handle catalog.Handle `json:"handle,omitempty"`
}

// Decode parses a bus message payload.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode bus message: %w", err)
	}
	return m, nil
}

// Recorder receives audit entries.
type Recorder interface {
	Record(e audit.Entry)
}

// Bus is an in-memory pub/sub. Publishing never waits for subscribers.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	now    func() time.Time

	published atomic.Int64
	failed    atomic.Int64
	closed    atomic.Bool
}

// NewBus creates a bus whose subscribers buffer up to buffer messages.
func NewBus(buffer int64, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Emit publishes a catalog change. It satisfies catalog.Emitter.
func (b *Bus) Emit(e catalog.Event) {
	b.publish(TopicCatalog, Message{
		Type:    TypeCatalog,
		Catalog: &CatalogChange{Kind: e.Kind.String(), Handle: e.Handle},
	})
}

// Record publishes a pushed update.
func (b *Bus) Record(e audit.Entry) {
	b.publish(TopicPushes, Message{Type: TypePush, Push: &e})
}

// Tee returns a recorder that forwards to next and publishes on the bus.
func (b *Bus) Tee(next Recorder) Recorder {
	return teeRecorder{next: next, bus: b}
}

type teeRecorder struct {
	next Recorder
	bus  *Bus
}

func (t teeRecorder) Record(e audit.Entry) {
	if t.next != nil {
		t.next.Record(e)
	}
	t.bus.Record(e)
}

func (b *Bus) publish(topic string, m Message) {
	if b.closed.Load() {
		return
	}
	if m.Time.IsZero() {
		m.Time = b.now().UTC()
	}
	payload, err := json.Marshal(m)
	if err != nil {
		b.failed.Add(1)
		b.logger.Error("Encode bus message", err, watermill.LogFields{"topic": topic})
		return
	}
	if err := b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.failed.Add(1)
		b.logger.Error("Publish bus message", err, watermill.LogFields{"topic": topic})
		return
	}
	b.published.Add(1)
}

// Subscribe returns the messages of topic until ctx ends. Each message
// must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.pubsub.Subscribe(ctx, topic)
}

// Stats returns publish counters.
func (b *Bus) Stats() (published, failed int64) {
	return b.published.Load(), b.failed.Load()
}

// Close stops the bus and closes all subscriptions.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.pubsub.Close()
}
