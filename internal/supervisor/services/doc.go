// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package services adapts PakLoad components to suture.Service.
//
// Three lifecycles are covered:
//
//	HTTPServerService   ListenAndServe / Shutdown(ctx)
//	ComponentService    Start(ctx) error / Stop()      sync engine, capture loop, monitor, trimmer
//	ContextService      Run(ctx) error                 websocket hub, dashboard poller, hint listener
package services
