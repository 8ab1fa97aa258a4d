// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package capture

import (
	"math"
	"time"
)

// Fix is one position report from a PositionSource.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Time      time.Time `json:"time,omitempty"`
}

// Trigger decides which fixes become events: the first fix, then any fix
// taken at least MinInterval after the last emitted one or at least
// MinDistanceMeters away from it, whichever happens first.
//
// Trigger is not safe for concurrent use; the capture loop owns it.
type Trigger struct {
	MinInterval       time.Duration
	MinDistanceMeters float64

	last *Fix
}

// NewTrigger creates a trigger with the given thresholds.
func NewTrigger(minInterval time.Duration, minDistanceMeters float64) *Trigger {
	return &Trigger{MinInterval: minInterval, MinDistanceMeters: minDistanceMeters}
}

// Offer reports whether f should be emitted and, if so, makes it the new
// reference fix.
func (t *Trigger) Offer(f Fix) bool {
	if t.last == nil || t.due(f) {
		fix := f
		t.last = &fix
		return true
	}
	return false
}

func (t *Trigger) due(f Fix) bool {
	if f.Time.Sub(t.last.Time) >= t.MinInterval {
		return true
	}
	return DistanceMeters(t.last.Latitude, t.last.Longitude, f.Latitude, f.Longitude) >= t.MinDistanceMeters
}

// Reset forgets the reference fix so the next one is emitted.
func (t *Trigger) Reset() {
	t.last = nil
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusMeters = 6371000.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
