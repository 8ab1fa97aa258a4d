// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// maxLocationRows bounds the location history shown.
const maxLocationRows = 5

// Render writes a text view of s as seen at now.
func Render(w io.Writer, s Snapshot, now time.Time) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Subject %s\n", s.SubjectID)
	switch {
	case !s.Fetched():
		b.WriteString("not fetched yet\n")
	default:
		fmt.Fprintf(&b, "fetched at %s (%s ago)\n", s.FetchedAt.UTC().Format(time.RFC3339), Age(now, s.FetchedAt))
	}
	if s.LastError != nil {
		fmt.Fprintf(&b, "last refresh failed: %v (press r to retry)\n", s.LastError)
	}

	if s.Fetched() && (!s.Found || s.Projection == nil) {
		b.WriteString("no data yet\n")
	}
	if s.Found && s.Projection != nil {
		renderProjection(&b, s.Projection)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderProjection(b *strings.Builder, p *models.TrackingProjection) {
	b.WriteString("\n")
	if st := p.CurrentStatus; st != nil {
		fmt.Fprintf(b, "Status:    %s at %s (%s)\n", statusLabel(st.Status), st.LocationLabel, st.Timestamp.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("Status:    none reported\n")
	}
	if loc := p.CurrentLocation; loc != nil {
		fmt.Fprintf(b, "Location:  %.5f, %.5f ±%.0fm (%s)\n", loc.Latitude, loc.Longitude, loc.Accuracy, loc.Timestamp.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("Location:  none reported\n")
	}
	if !p.LastSyncedAt.IsZero() {
		fmt.Fprintf(b, "Synced:    %s\n", p.LastSyncedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(b, "Events:    %d\n", p.EventCount)

	if len(p.StatusHistory) > 0 {
		b.WriteString("\nStatus history\n")
		for i := range p.StatusHistory {
			ev := &p.StatusHistory[i]
			line := fmt.Sprintf("  %s  %-18s %s", ev.Timestamp.UTC().Format(time.RFC3339), statusLabel(ev.Status), ev.LocationLabel)
			if ev.Notes != "" {
				line += "  " + ev.Notes
			}
			b.WriteString(line + "\n")
		}
	}

	if n := len(p.LocationHistory); n > 0 {
		start := 0
		if n > maxLocationRows {
			start = n - maxLocationRows
		}
		fmt.Fprintf(b, "\nRecent locations (%d of %d)\n", n-start, n)
		for i := start; i < n; i++ {
			loc := &p.LocationHistory[i]
			fmt.Fprintf(b, "  %s  %.5f, %.5f\n", loc.Timestamp.UTC().Format(time.RFC3339), loc.Latitude, loc.Longitude)
		}
	}
}

func statusLabel(s models.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Age formats now-t rounded to the second. A t in the future reads "0s".
func Age(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
