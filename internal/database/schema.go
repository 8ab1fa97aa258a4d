// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema statements run at startup.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// tracking_events is the append-only log. seq gives arrival order; the
// primary key is the dedup key.
var tableCreationQueries = []string{
	`CREATE SEQUENCE IF NOT EXISTS tracking_events_seq START 1;`,
	`CREATE TABLE IF NOT EXISTS tracking_events (
		seq BIGINT NOT NULL DEFAULT nextval('tracking_events_seq'),
		kind VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		subject_id VARCHAR NOT NULL,
		event_ts TIMESTAMP NOT NULL,
		received_at TIMESTAMP NOT NULL,
		payload VARCHAR NOT NULL,
		PRIMARY KEY (subject_id, kind, id)
	);`,
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
