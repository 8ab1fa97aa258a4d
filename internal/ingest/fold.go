// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package ingest

import (
	"sort"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// fold applies one new event to proj. Histories stay sorted by
// (timestamp, id) and the current fields hold the maximum under that
// order, so the result depends only on the set of events folded in, not
// on the order they arrived.
func fold(proj *models.TrackingProjection, ev models.Event) {
	switch e := ev.(type) {
	case *models.LocationEvent:
		c := *e
		c.Synced = true
		proj.LocationHistory = insertLocation(proj.LocationHistory, c)
		cur := proj.CurrentLocation
		if cur == nil || models.Supersedes(c.Timestamp, c.ID, cur.Timestamp, cur.ID) {
			latest := c
			proj.CurrentLocation = &latest
		}
	case *models.StatusEvent:
		c := *e
		c.Synced = true
		proj.StatusHistory = insertStatus(proj.StatusHistory, c)
		cur := proj.CurrentStatus
		if cur == nil || models.Supersedes(c.Timestamp, c.ID, cur.Timestamp, cur.ID) {
			latest := c
			proj.CurrentStatus = &latest
		}
	default:
		return
	}
	proj.EventCount++
}

//nolint:gocritic // history entries are values
func insertLocation(h []models.LocationEvent, e models.LocationEvent) []models.LocationEvent {
	i := sort.Search(len(h), func(i int) bool {
		return after(h[i].Timestamp, h[i].ID, e.Timestamp, e.ID)
	})
	h = append(h, models.LocationEvent{})
	copy(h[i+1:], h[i:])
	h[i] = e
	return h
}

//nolint:gocritic // history entries are values
func insertStatus(h []models.StatusEvent, e models.StatusEvent) []models.StatusEvent {
	i := sort.Search(len(h), func(i int) bool {
		return after(h[i].Timestamp, h[i].ID, e.Timestamp, e.ID)
	})
	h = append(h, models.StatusEvent{})
	copy(h[i+1:], h[i:])
	h[i] = e
	return h
}

// after reports whether (aTime, aID) sorts after (bTime, bID).
func after(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	return models.Supersedes(aTime, aID, bTime, bID)
}
