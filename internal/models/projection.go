// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package models

import "time"

// TrackingProjection is the derived "current state + history" view of one
// subject. It is a pure function of the subject's accepted events, apart
// from LastSyncedAt and UpdatedAt which record server time.
type TrackingProjection struct {
	SubjectID       string          `json:"subject_id"`
	CurrentStatus   *StatusEvent    `json:"current_status"`
	CurrentLocation *LocationEvent  `json:"current_location"`
	StatusHistory   []StatusEvent   `json:"status_history"`
	LocationHistory []LocationEvent `json:"location_history"`
	LastSyncedAt    time.Time       `json:"last_synced_at"`
	EventCount      int             `json:"event_count"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to readers.
func (p *TrackingProjection) Clone() *TrackingProjection {
	if p == nil {
		return nil
	}
	out := *p
	if p.CurrentStatus != nil {
		s := cloneStatus(*p.CurrentStatus)
		out.CurrentStatus = &s
	}
	if p.CurrentLocation != nil {
		l := cloneLocation(*p.CurrentLocation)
		out.CurrentLocation = &l
	}
	out.StatusHistory = make([]StatusEvent, len(p.StatusHistory))
	for i := range p.StatusHistory {
		out.StatusHistory[i] = cloneStatus(p.StatusHistory[i])
	}
	out.LocationHistory = make([]LocationEvent, len(p.LocationHistory))
	for i := range p.LocationHistory {
		out.LocationHistory[i] = cloneLocation(p.LocationHistory[i])
	}
	return &out
}

//nolint:gocritic // copies by value on purpose
func cloneLocation(e LocationEvent) LocationEvent {
	e.Speed = cloneFloat(e.Speed)
	e.Heading = cloneFloat(e.Heading)
	e.Altitude = cloneFloat(e.Altitude)
	return e
}

//nolint:gocritic // copies by value on purpose
func cloneStatus(e StatusEvent) StatusEvent {
	e.Latitude = cloneFloat(e.Latitude)
	e.Longitude = cloneFloat(e.Longitude)
	return e
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v, for optional fields.
func Float(v float64) *float64 {
	return &v
}
