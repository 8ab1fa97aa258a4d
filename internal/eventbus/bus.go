// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package eventbus fans accepted tracking events out to other consumers.
// Events go to topic tracking.location or tracking.status. The in-process
// transport is a watermill GoChannel; the networked one is NATS JetStream
// through watermill-nats, optionally backed by an embedded NATS server.
//
// Publishing is best effort: the event log is the source of truth and a
// failed publish never fails ingestion. The NATS bus publishes through a
// circuit breaker, so an outage costs a few timed-out publishes and then
// fails fast with ErrCircuitOpen until the breaker half-opens.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Topics.
const (
	TopicLocation = "tracking.location"
	TopicStatus   = "tracking.status"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("eventbus: closed")

// ErrCircuitOpen is returned by Publish while the breaker is open.
var ErrCircuitOpen = errors.New("eventbus: circuit open")

// Metadata keys set on every message.
const (
	MetaEventID   = "event_id"
	MetaSubjectID = "subject_id"
	MetaKind      = "kind"
)

// TopicFor returns the topic for an event kind.
func TopicFor(kind models.EventKind) string {
	if kind == models.KindStatus {
		return TopicStatus
	}
	return TopicLocation
}

// Bus publishes tracking events over a watermill publisher.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	transport  string
	natsURL    string
	dedup      bool
	onClose    []func() error
	breaker    *gobreaker.CircuitBreaker[interface{}]

	mu     sync.RWMutex
	closed bool
}

// NewLogger adapts the application logger for watermill.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewGoChannelBus creates an in-process bus. Subscribe works on it.
func NewGoChannelBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = NewLogger()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
	return &Bus{
		publisher:  pubsub,
		subscriber: pubsub,
		logger:     logger,
		transport:  "gochannel",
		dedup:      true,
	}
}

// SetCircuitBreaker routes publishes through cb. Call it before the bus is
// shared.
func (b *Bus) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	b.breaker = cb
}

// Transport names the transport: gochannel or nats.
func (b *Bus) Transport() string { return b.transport }

// Publish implements ingest.Publisher.
func (b *Bus) Publish(ctx context.Context, ev models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	topic := TopicFor(ev.EventKind())
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetaEventID, ev.EventID())
	msg.Metadata.Set(MetaSubjectID, ev.EventSubject())
	msg.Metadata.Set(MetaKind, string(ev.EventKind()))
	if b.dedup {
		// JetStream dedups on this header within the stream's duplicate window.
		msg.Metadata.Set(natsgo.MsgIdHdr, dedupID(ev))
	}

	if b.breaker != nil {
		_, err = b.breaker.Execute(func() (interface{}, error) {
			return nil, b.publisher.Publish(topic, msg)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordEventBusPublish(topic, err)
			return ErrCircuitOpen
		}
	} else {
		err = b.publisher.Publish(topic, msg)
	}
	metrics.RecordEventBusPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func dedupID(ev models.Event) string {
	return ev.EventSubject() + ":" + string(ev.EventKind()) + ":" + ev.EventID()
}

// Subscribe returns the messages published to topic. Only the in-process
// bus supports it.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.subscriber == nil {
		return nil, fmt.Errorf("eventbus: %s transport has no subscriber", b.transport)
	}
	return b.subscriber.Subscribe(ctx, topic)
}

// Healthy reports whether the bus can publish: it is open and its breaker,
// if any, is not open.
func (b *Bus) Healthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	return b.breaker == nil || b.breaker.State() != gobreaker.StateOpen
}

// Close releases the publisher and anything the bus started.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	for i := len(b.onClose) - 1; i >= 0; i-- {
		if err := b.onClose[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DecodeMessage returns the event carried by msg.
func DecodeMessage(msg *message.Message) (models.Event, error) {
	switch models.EventKind(msg.Metadata.Get(MetaKind)) {
	case models.KindLocation:
		var ev models.LocationEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case models.KindStatus:
		var ev models.StatusEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("message %s has unknown kind %q", msg.UUID, msg.Metadata.Get(MetaKind))
	}
}
