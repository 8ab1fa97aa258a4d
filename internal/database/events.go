// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

const eventsTable = "tracking_events"

// Append writes ev to the log and sets ev.Seq. It returns false, with no
// error, when an event with the same subject, kind and id is already
// stored.
func (db *DB) Append(ctx context.Context, ev *models.AcceptedEvent) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var seq int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO tracking_events (kind, id, subject_id, event_ts, received_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING seq`,
		string(ev.Kind), ev.ID, ev.SubjectID, ev.Timestamp.UTC(), ev.ReceivedAt.UTC(), string(ev.Payload),
	).Scan(&seq)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		metrics.RecordDBQuery("append", eventsTable, time.Since(start), nil)
		return false, nil
	case isConstraintError(err):
		metrics.RecordDBQuery("append", eventsTable, time.Since(start), nil)
		return false, nil
	case err != nil:
		metrics.RecordDBQuery("append", eventsTable, time.Since(start), err)
		return false, fmt.Errorf("append %s event %s: %w", ev.Kind, ev.ID, err)
	}

	metrics.RecordDBQuery("append", eventsTable, time.Since(start), nil)
	ev.Seq = seq
	return true, nil
}

// Replay calls fn for every stored event in arrival order. It stops at the
// first error fn returns.
func (db *DB) Replay(ctx context.Context, fn func(models.AcceptedEvent) error) error {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, kind, id, subject_id, event_ts, received_at, payload
		FROM tracking_events
		ORDER BY seq`)
	if err != nil {
		metrics.RecordDBQuery("replay", eventsTable, time.Since(start), err)
		return fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev      models.AcceptedEvent
			kind    string
			payload string
		)
		if err := rows.Scan(&ev.Seq, &kind, &ev.ID, &ev.SubjectID, &ev.Timestamp, &ev.ReceivedAt, &payload); err != nil {
			metrics.RecordDBQuery("replay", eventsTable, time.Since(start), err)
			return fmt.Errorf("scan event row: %w", err)
		}
		ev.Kind = models.EventKind(kind)
		ev.Payload = []byte(payload)
		ev.Timestamp = ev.Timestamp.UTC()
		ev.ReceivedAt = ev.ReceivedAt.UTC()
		if err := fn(ev); err != nil {
			return err
		}
	}
	err = rows.Err()
	metrics.RecordDBQuery("replay", eventsTable, time.Since(start), err)
	return err
}

// CountEvents returns the number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracking_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
