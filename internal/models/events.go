// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package models

import "time"

// Event is implemented by both event kinds so the queue, the sync engine
// and the ingestion service can handle them uniformly.
type Event interface {
	EventID() string
	EventKind() EventKind
	EventSubject() string
	EventTime() time.Time
}

// LocationEvent is a single GPS fix captured on the device.
type LocationEvent struct {
	ID        string    `json:"id" validate:"required,max=64"`
	SubjectID string    `json:"subject_id" validate:"required,max=128"`
	DeviceID  string    `json:"device_id,omitempty" validate:"max=128"`
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	Speed     *float64  `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Heading   *float64  `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Synced    bool      `json:"synced"`
}

func (e *LocationEvent) EventID() string      { return e.ID }
func (e *LocationEvent) EventKind() EventKind { return KindLocation }
func (e *LocationEvent) EventSubject() string { return e.SubjectID }
func (e *LocationEvent) EventTime() time.Time { return e.Timestamp }

// StatusEvent is an operator-reported status at a point in time. The
// current status of a subject is derived from these, never stored.
type StatusEvent struct {
	ID            string         `json:"id" validate:"required,max=64"`
	SubjectID     string         `json:"subject_id" validate:"required,max=128"`
	DeviceID      string         `json:"device_id,omitempty" validate:"max=128"`
	Status        Status         `json:"status" validate:"required,tracking_status"`
	Checkpoint    CheckpointType `json:"checkpoint,omitempty" validate:"omitempty,checkpoint_type"`
	LocationLabel string         `json:"location_label" validate:"required,max=256"`
	Latitude      *float64       `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude     *float64       `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Notes         string         `json:"notes,omitempty" validate:"max=2000"`
	Timestamp     time.Time      `json:"timestamp" validate:"required"`
	Synced        bool           `json:"synced"`
}

func (e *StatusEvent) EventID() string      { return e.ID }
func (e *StatusEvent) EventKind() EventKind { return KindStatus }
func (e *StatusEvent) EventSubject() string { return e.SubjectID }
func (e *StatusEvent) EventTime() time.Time { return e.Timestamp }

// Supersedes reports whether an event at (aTime, aID) replaces one at
// (bTime, bID) as the "current" value: the later timestamp wins, and on
// equal timestamps the greater id wins. The order is total.
func Supersedes(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

// EventBefore orders two events for history lists.
func EventBefore(a, b Event) bool {
	return Supersedes(b.EventTime(), b.EventID(), a.EventTime(), a.EventID())
}
