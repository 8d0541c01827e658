// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Broadcaster sends raw JSON to every connected client.
type Broadcaster interface {
	BroadcastRaw(data []byte)
}

// Forwarder copies bus messages to a Broadcaster. Broadcast failures
// never nack: a slow client must not replay the feed.
type Forwarder struct {
	bus    *Bus
	sink   Broadcaster
	topics []string
	logger watermill.LoggerAdapter

	forwarded atomic.Int64
}

// NewForwarder forwards topics (all topics when empty) from bus to sink.
func NewForwarder(bus *Bus, sink Broadcaster, topics ...string) (*Forwarder, error) {
	if bus == nil {
		return nil, errors.New("bus required")
	}
	if sink == nil {
		return nil, errors.New("broadcaster required")
	}
	if len(topics) == 0 {
		topics = []string{TopicCatalog, TopicPushes}
	}
	return &Forwarder{bus: bus, sink: sink, topics: topics, logger: bus.logger}, nil
}

// Serve forwards until ctx ends. It satisfies suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range f.topics {
		msgs, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.drain(msgs)
		}()
	}
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-ctx.Done():
		<-drained
		return ctx.Err()
	case <-drained:
		return ErrClosed
	}
}

func (f *Forwarder) drain(msgs <-chan *message.Message) {
	for msg := range msgs {
		f.sink.BroadcastRaw(msg.Payload)
		f.forwarded.Add(1)
		msg.Ack()
	}
}

// Forwarded returns how many messages reached the sink.
func (f *Forwarder) Forwarded() int64 { return f.forwarded.Load() }

func (f *Forwarder) String() string { return "event-forwarder" }
