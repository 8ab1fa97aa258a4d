// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Command server is the PakLoad ingestion, aggregation and read API.
//
// # Startup
//
// The server initializes components in this order:
//
//  1. Configuration: koanf defaults, config.yaml, then environment variables
//  2. Event store: DuckDB (DATABASE_DRIVER=duckdb) or in-memory
//  3. Projections: rebuilt by replaying the stored event log
//  4. Event bus: watermill gochannel, or NATS JetStream when NATS_ENABLED=true
//  5. WebSocket hub for projection_updated hints
//  6. Authentication (JWT or none) and casbin authorization
//  7. HTTP server under the supervisor tree
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export DATABASE_PATH=/data/pakload-tracking.duckdb
//	./server
//
// Development without auth or a database file:
//
//	export AUTH_MODE=none DATABASE_DRIVER=memory
//	./server
//
// Tokens for devices and dispatchers are minted with pakloadctl token.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
// up to SERVER_SHUTDOWN_TIMEOUT, then the bus and the database are closed.
package main
