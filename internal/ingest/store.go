// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package ingest

import (
	"context"
	"sync"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// EventStore is the durable accepted-event log. Append reports false when
// the (subject, kind, id) key is already stored. Replay visits events in
// arrival order.
type EventStore interface {
	Append(ctx context.Context, ev *models.AcceptedEvent) (bool, error)
	Replay(ctx context.Context, fn func(models.AcceptedEvent) error) error
}

type storeKey struct {
	subject string
	kind    models.EventKind
	id      string
}

// MemoryStore is an EventStore that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.AcceptedEvent
	keys   map[storeKey]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[storeKey]struct{})}
}

// Append implements EventStore.
func (m *MemoryStore) Append(ctx context.Context, ev *models.AcceptedEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := storeKey{ev.SubjectID, ev.Kind, ev.ID}
	if _, ok := m.keys[k]; ok {
		return false, nil
	}
	m.keys[k] = struct{}{}
	ev.Seq = int64(len(m.events) + 1)
	stored := *ev
	stored.Payload = append([]byte(nil), ev.Payload...)
	m.events = append(m.events, stored)
	return true, nil
}

// Replay implements EventStore.
func (m *MemoryStore) Replay(ctx context.Context, fn func(models.AcceptedEvent) error) error {
	m.mu.RLock()
	events := append([]models.AcceptedEvent(nil), m.events...)
	m.mu.RUnlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored events.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
