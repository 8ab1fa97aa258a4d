// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package models

import (
	"encoding/json"
	"regexp"
	"sort"
	"testing"
	"time"
)

var clientIDPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{8}$`)

func TestNewClientID_Format(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	id := NewClientID(now)
	if !clientIDPattern.MatchString(id) {
		t.Fatalf("NewClientID() = %q, does not match %s", id, clientIDPattern)
	}
	if id[:13] != "1718000000123" {
		t.Errorf("millis prefix = %q, want 1718000000123", id[:13])
	}
}

func TestNewClientID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewClientID(now)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d iterations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestNewClientID_LaterSortsGreater(t *testing.T) {
	a := NewClientID(time.UnixMilli(999))
	b := NewClientID(time.UnixMilli(1000))
	if a >= b {
		t.Errorf("expected %q < %q", a, b)
	}
}

func TestSupersedes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	tests := []struct {
		name   string
		aTime  time.Time
		aID    string
		bTime  time.Time
		bID    string
		expect bool
	}{
		{"later timestamp wins", t1, "a", t0, "z", true},
		{"earlier timestamp loses", t0, "z", t1, "a", false},
		{"tie broken by greater id", t0, "b", t0, "a", true},
		{"tie lost by smaller id", t0, "a", t0, "b", false},
		{"identical does not supersede", t0, "a", t0, "a", false},
		{"same instant different zone", t0.In(time.FixedZone("PKT", 5*3600)), "b", t0, "a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Supersedes(tt.aTime, tt.aID, tt.bTime, tt.bID); got != tt.expect {
				t.Errorf("Supersedes() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestEventBefore_SortsHistory(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		&StatusEvent{ID: "c", Timestamp: t0.Add(time.Minute)},
		&StatusEvent{ID: "b", Timestamp: t0},
		&StatusEvent{ID: "a", Timestamp: t0},
	}
	sort.Slice(events, func(i, j int) bool { return EventBefore(events[i], events[j]) })

	var got []string
	for _, e := range events {
		got = append(got, e.EventID())
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEnums(t *testing.T) {
	if !StatusCustomsClearance.Valid() || Status("teleported").Valid() {
		t.Error("Status.Valid mismatch")
	}
	if !CheckpointBorderCrossing.Valid() || CheckpointType("harbor").Valid() {
		t.Error("CheckpointType.Valid mismatch")
	}
	if k, err := ParseEventKind(" Location "); err != nil || k != KindLocation {
		t.Errorf("ParseEventKind = %q, %v", k, err)
	}
	if _, err := ParseEventKind("photo"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestLocationEvent_JSONShape(t *testing.T) {
	e := LocationEvent{
		ID:        "1718000000123-0a1b2c3d",
		SubjectID: "load-1",
		Latitude:  31.5204,
		Longitude: 74.3587,
		Accuracy:  8,
		Speed:     Float(12.5),
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "subject_id", "latitude", "longitude", "accuracy", "speed", "timestamp", "synced"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	for _, key := range []string{"heading", "altitude"} {
		if _, ok := raw[key]; ok {
			t.Errorf("unexpected key %q for nil optional field", key)
		}
	}
}

func TestProjectionClone_IsDeep(t *testing.T) {
	loc := LocationEvent{ID: "l1", Speed: Float(10)}
	p := &TrackingProjection{
		SubjectID:       "load-1",
		CurrentLocation: &loc,
		CurrentStatus:   &StatusEvent{ID: "s1", Status: StatusPicked},
		LocationHistory: []LocationEvent{loc},
		StatusHistory:   []StatusEvent{{ID: "s1", Status: StatusPicked}},
	}
	c := p.Clone()

	*c.CurrentLocation.Speed = 99
	c.CurrentStatus.Status = StatusDelivered
	c.StatusHistory[0].Status = StatusDelayed
	*c.LocationHistory[0].Speed = 42

	if *p.CurrentLocation.Speed != 10 {
		t.Error("clone shares CurrentLocation.Speed")
	}
	if p.CurrentStatus.Status != StatusPicked {
		t.Error("clone shares CurrentStatus")
	}
	if p.StatusHistory[0].Status != StatusPicked {
		t.Error("clone shares StatusHistory backing array")
	}
	if *p.LocationHistory[0].Speed != 10 {
		t.Error("clone shares LocationHistory pointers")
	}

	var nilProj *TrackingProjection
	if nilProj.Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}
