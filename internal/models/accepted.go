// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// AcceptedEvent is one row of the server's append-only event log. Seq is
// assigned by the store and orders rows by arrival.
type AcceptedEvent struct {
	Seq        int64           `json:"seq"`
	Kind       EventKind       `json:"kind"`
	ID         string          `json:"id"`
	SubjectID  string          `json:"subject_id"`
	Timestamp  time.Time       `json:"timestamp"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewAcceptedEvent encodes ev for the event log. The synced flag is a
// device-side concern and is dropped from the payload.
func NewAcceptedEvent(ev Event, receivedAt time.Time) (AcceptedEvent, error) {
	var payload []byte
	var err error
	switch e := ev.(type) {
	case *LocationEvent:
		c := *e
		c.Synced = false
		payload, err = json.Marshal(&c)
	case *StatusEvent:
		c := *e
		c.Synced = false
		payload, err = json.Marshal(&c)
	default:
		return AcceptedEvent{}, fmt.Errorf("unsupported event type %T", ev)
	}
	if err != nil {
		return AcceptedEvent{}, fmt.Errorf("encode %s event %s: %w", ev.EventKind(), ev.EventID(), err)
	}
	return AcceptedEvent{
		Kind:       ev.EventKind(),
		ID:         ev.EventID(),
		SubjectID:  ev.EventSubject(),
		Timestamp:  ev.EventTime().UTC(),
		ReceivedAt: receivedAt.UTC(),
		Payload:    payload,
	}, nil
}

// Decode returns the event held in the payload.
func (a *AcceptedEvent) Decode() (Event, error) {
	switch a.Kind {
	case KindLocation:
		var ev LocationEvent
		if err := json.Unmarshal(a.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode location event %s: %w", a.ID, err)
		}
		return &ev, nil
	case KindStatus:
		var ev StatusEvent
		if err := json.Unmarshal(a.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode status event %s: %w", a.ID, err)
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", a.Kind)
	}
}
