// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package models

import (
	"time"
)

// APIResponse is the envelope of every server HTTP response.
//
// Status is "success" or "error". Data holds the payload on success and
// Error the details on failure.
//
//	{
//	  "status": "success",
//	  "data": {"accepted": true, "duplicate": false, "projection": {...}},
//	  "metadata": {"timestamp": "2026-03-01T10:00:00Z", "query_time_ms": 2}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries the server time a response was generated.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error body. Code is one of
// VALIDATION_ERROR, UNAUTHORIZED, FORBIDDEN, NOT_FOUND, RATE_LIMITED,
// INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IngestResult is the payload of a successful event submission.
type IngestResult struct {
	Accepted   bool                `json:"accepted"`
	Duplicate  bool                `json:"duplicate"`
	Projection *TrackingProjection `json:"projection"`
}

// ProjectionResponse is the payload of a projection read. Found is false
// when the subject has no accepted events yet; Projection is then nil and
// Message reads "no data yet".
type ProjectionResponse struct {
	Found      bool                `json:"found"`
	Message    string              `json:"message,omitempty"`
	Projection *TrackingProjection `json:"projection,omitempty"`
}

// HealthResponse is the payload of the health endpoint.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	DatabaseOK    bool      `json:"database_ok"`
	EventBusOK    bool      `json:"event_bus_ok"`
	Subjects      int       `json:"subjects"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}
