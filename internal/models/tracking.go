// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package models defines the tracking events exchanged between the device
// agent and the server, and the per-subject projection derived from them.
//
// Events are immutable facts. The only field that ever changes after
// creation is Synced, which flips from false to true once, on the device,
// when the server acknowledges the event.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind names one of the two event collections.
type EventKind string

const (
	KindLocation EventKind = "location"
	KindStatus   EventKind = "status"
)

// Kinds lists every event kind in a stable order.
var Kinds = []EventKind{KindLocation, KindStatus}

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	return k == KindLocation || k == KindStatus
}

// ParseEventKind parses a kind name as it appears in URLs and CLI args.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// Status is a client-reported shipment status. No transition rules are
// enforced between statuses.
type Status string

const (
	StatusAssigned         Status = "assigned"
	StatusPicked           Status = "picked"
	StatusInTransit        Status = "in_transit"
	StatusAtCheckpoint     Status = "at_checkpoint"
	StatusCustomsClearance Status = "customs_clearance"
	StatusDelivered        Status = "delivered"
	StatusDelayed          Status = "delayed"
	StatusIssueReported    Status = "issue_reported"
)

// Statuses lists every known status.
var Statuses = []Status{
	StatusAssigned, StatusPicked, StatusInTransit, StatusAtCheckpoint,
	StatusCustomsClearance, StatusDelivered, StatusDelayed, StatusIssueReported,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// CheckpointType is an optional route-milestone tag on a status event.
type CheckpointType string

const (
	CheckpointPickup         CheckpointType = "pickup"
	CheckpointCheckpoint     CheckpointType = "checkpoint"
	CheckpointBorderCrossing CheckpointType = "border_crossing"
	CheckpointCustoms        CheckpointType = "customs"
	CheckpointRestStop       CheckpointType = "rest_stop"
	CheckpointFuelStop       CheckpointType = "fuel_stop"
	CheckpointDelivery       CheckpointType = "delivery"
)

// CheckpointTypes lists every known checkpoint tag.
var CheckpointTypes = []CheckpointType{
	CheckpointPickup, CheckpointCheckpoint, CheckpointBorderCrossing, CheckpointCustoms,
	CheckpointRestStop, CheckpointFuelStop, CheckpointDelivery,
}

// Valid reports whether c is a known checkpoint type.
func (c CheckpointType) Valid() bool {
	for _, known := range CheckpointTypes {
		if c == known {
			return true
		}
	}
	return false
}

// NewClientID returns an idempotency key for an event generated at now:
// 13 digits of unix milliseconds, a dash, and 8 random hex characters.
// Ids generated later compare greater as strings.
func NewClientID(now time.Time) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%013d-%s", now.UnixMilli(), random[:8])
}
