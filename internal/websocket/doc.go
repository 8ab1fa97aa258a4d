// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
Package websocket pushes projection refresh hints to dashboards.

A hint tells a dashboard that a subject's projection changed so it can poll
early. Hints carry no projection data; the poll stays the only read path and
a lost hint costs at most one poll interval of staleness.

Key Components:

  - Hub: owns the connected clients and broadcasts hints to them
  - Client: one connection with a read and a write goroutine
  - Listener: dials the hub from a dashboard and reports hints

Architecture:

	┌──────────────┐  NotifyProjectionUpdated  ┌──────┐
	│ ingest.Service│ ────────────────────────► │ Hub  │
	└──────────────┘                            └──┬───┘
	                                               │ projection_updated
	                                 ┌─────────────┼─────────────┐
	                                 │             │             │
	                              Client1       Client2       Client3
	                          (subject=a)      (all)        (subject=b)

A client may connect with ?subject=<id> to receive hints for one subject
only. Without it the client receives every hint.

Message Types:

  - projection_updated: {subject_id, event_count, updated_at}
  - ping / pong: application-level keepalive from the client

Thread Safety:

The Hub is safe for concurrent use. NotifyProjectionUpdated never blocks;
when the broadcast buffer is full the hint is dropped and logged.
*/
package websocket
