// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Test helpers

func createTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Path:               filepath.Join(t.TempDir(), "queue"),
		SyncWrites:         false, // Faster tests without fsync
		MemTableSize:       16 * 1024 * 1024,
		ValueLogFileSize:   16 * 1024 * 1024,
		NumCompactors:      2,
		MaxLocationEntries: 5,
		StatusRetention:    time.Hour,
		TrimInterval:       time.Minute,
	}
}

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	cfg := createTestConfig(t)
	q, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Failed to open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func locationEvent(i int) *models.LocationEvent {
	return &models.LocationEvent{
		ID:        fmt.Sprintf("%013d-%08x", baseTime.Add(time.Duration(i)*time.Second).UnixMilli(), i),
		SubjectID: "load-1",
		Latitude:  24.86,
		Longitude: 67.00,
		Timestamp: baseTime.Add(time.Duration(i) * time.Second),
	}
}

func statusEvent(i int, status models.Status) *models.StatusEvent {
	return &models.StatusEvent{
		ID:            fmt.Sprintf("s-%03d", i),
		SubjectID:     "load-1",
		Status:        status,
		LocationLabel: "Karachi port",
		Timestamp:     baseTime.Add(time.Duration(i) * time.Minute),
	}
}

func enqueueLocations(ctx context.Context, t *testing.T, q *Queue, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ev := locationEvent(i)
		if _, err := q.Enqueue(ctx, ev); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		ids[i] = ev.ID
	}
	return ids
}

func entryIDs(entries []*Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults valid", func(c *Config) { c.Path = "/tmp/q" }, ""},
		{"missing path", func(c *Config) { c.Path = "" }, "Path"},
		{"small memtable", func(c *Config) { c.Path = "/tmp/q"; c.MemTableSize = 1 }, "MemTableSize"},
		{"one compactor", func(c *Config) { c.Path = "/tmp/q"; c.NumCompactors = 1 }, "NumCompactors"},
		{"zero location bound", func(c *Config) { c.Path = "/tmp/q"; c.MaxLocationEntries = 0 }, "MaxLocationEntries"},
		{"negative status bound", func(c *Config) { c.Path = "/tmp/q"; c.MaxStatusEntries = -1 }, "MaxStatusEntries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Fatalf("error = %v, want ConfigError on %s", err, tt.field)
			}
		})
	}
}

func TestEnqueue_ListUnsynced_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	ids := enqueueLocations(ctx, t, q, 4)

	entries, err := q.ListUnsynced(ctx, models.KindLocation)
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	got := entryIDs(entries)
	if len(got) != len(ids) {
		t.Fatalf("got %d entries, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order = %v, want %v", got, ids)
		}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Errorf("sequence not increasing at %d: %d <= %d", i, entries[i].Seq, entries[i-1].Seq)
		}
	}
}

func TestEnqueue_RejectsDuplicateAndInvalid(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	ev := locationEvent(0)
	if _, err := q.Enqueue(ctx, ev); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(ctx, ev); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("second Enqueue error = %v, want ErrDuplicateEvent", err)
	}

	if err := q.MarkSynced(ctx, models.KindLocation, ev.ID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	if _, err := q.Enqueue(ctx, ev); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("Enqueue of synced id error = %v, want ErrDuplicateEvent", err)
	}

	if _, err := q.Enqueue(ctx, nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("nil event error = %v", err)
	}
	if _, err := q.Enqueue(ctx, &models.LocationEvent{}); !errors.Is(err, ErrEmptyID) {
		t.Errorf("empty id error = %v", err)
	}
}

func TestListAllUnsynced_MergesKindsBySequence(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	order := []models.Event{
		locationEvent(0),
		statusEvent(1, models.StatusPicked),
		locationEvent(2),
		statusEvent(3, models.StatusInTransit),
	}
	for _, ev := range order {
		if _, err := q.Enqueue(ctx, ev); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	entries, err := q.ListAllUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListAllUnsynced failed: %v", err)
	}
	if len(entries) != len(order) {
		t.Fatalf("got %d entries, want %d", len(entries), len(order))
	}
	for i, ev := range order {
		if entries[i].ID != ev.EventID() || entries[i].Kind != ev.EventKind() {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, entries[i].Kind, entries[i].ID, ev.EventKind(), ev.EventID())
		}
	}
}

func TestMarkSynced_Idempotent(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)
	ids := enqueueLocations(ctx, t, q, 2)

	for i := 0; i < 3; i++ {
		if err := q.MarkSynced(ctx, models.KindLocation, ids[0]); err != nil {
			t.Fatalf("MarkSynced #%d failed: %v", i, err)
		}
	}
	if err := q.MarkSynced(ctx, models.KindLocation, "unknown-id"); err != nil {
		t.Errorf("MarkSynced unknown id should be a no-op, got %v", err)
	}

	if got := q.Stats().Synced; got != 1 {
		t.Errorf("Stats.Synced = %d, want 1", got)
	}

	pending, err := q.ListUnsynced(ctx, models.KindLocation)
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[1] {
		t.Errorf("pending = %v, want [%s]", entryIDs(pending), ids[1])
	}

	entry, err := q.Get(ctx, models.KindLocation, ids[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !entry.Synced || entry.SyncedAt == nil {
		t.Errorf("entry not flagged synced: %+v", entry)
	}
	ev, err := entry.Event()
	if err != nil {
		t.Fatalf("Event decode failed: %v", err)
	}
	loc, ok := ev.(*models.LocationEvent)
	if !ok || !loc.Synced {
		t.Errorf("decoded event should carry synced=true, got %+v", ev)
	}
}

// TestDurability_Restart closes the queue before any sync and reopens it at
// the same path.
func TestDurability_Restart(t *testing.T) {
	ctx := context.Background()
	cfg := createTestConfig(t)
	cfg.SyncWrites = true

	q, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ids := enqueueLocations(ctx, t, q, 3)
	st := statusEvent(10, models.StatusPicked)
	if _, err := q.Enqueue(ctx, st); err != nil {
		t.Fatalf("Enqueue status failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(&cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.ListAllUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListAllUnsynced failed: %v", err)
	}
	want := append(ids, st.ID)
	if got := entryIDs(entries); len(got) != len(want) {
		t.Fatalf("after restart got %v, want %v", got, want)
	}

	// Sequence continues past the old maximum.
	ev := locationEvent(99)
	entry, err := reopened.Enqueue(ctx, ev)
	if err != nil {
		t.Fatalf("Enqueue after restart failed: %v", err)
	}
	if entry.Seq <= entries[len(entries)-1].Seq {
		t.Errorf("seq after restart = %d, want > %d", entry.Seq, entries[len(entries)-1].Seq)
	}

	if _, err := reopened.Enqueue(ctx, locationEvent(0)); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("duplicate detection lost on restart: %v", err)
	}
}

// TestTrim_NeverEvictsUnsynced enqueues far more than the bound with a mix
// of synced and unsynced entries.
func TestTrim_NeverEvictsUnsynced(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	ids := enqueueLocations(ctx, t, q, 20)
	unsynced := make(map[string]bool)
	for i, id := range ids {
		if i%3 == 0 {
			unsynced[id] = true
			continue
		}
		if err := q.MarkSynced(ctx, models.KindLocation, id); err != nil {
			t.Fatalf("MarkSynced failed: %v", err)
		}
	}

	removed, err := q.Trim(ctx, models.KindLocation, 5)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	pending, err := q.ListUnsynced(ctx, models.KindLocation)
	if err != nil {
		t.Fatalf("ListUnsynced failed: %v", err)
	}
	if len(pending) != len(unsynced) {
		t.Fatalf("pending after trim = %d, want %d", len(pending), len(unsynced))
	}
	for _, e := range pending {
		if !unsynced[e.ID] {
			t.Errorf("unexpected pending id %s", e.ID)
		}
	}

	// Bound is below the unsynced count, so every synced entry goes.
	synced, err := q.ListSynced(ctx, models.KindLocation)
	if err != nil {
		t.Fatalf("ListSynced failed: %v", err)
	}
	if len(synced) != 0 {
		t.Errorf("synced after trim = %d, want 0", len(synced))
	}
	if removed != 20-len(unsynced) {
		t.Errorf("removed = %d, want %d", removed, 20-len(unsynced))
	}
}

func TestTrim_EvictsOldestSyncedFirst(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	ids := enqueueLocations(ctx, t, q, 8)
	for _, id := range ids[:6] {
		if err := q.MarkSynced(ctx, models.KindLocation, id); err != nil {
			t.Fatalf("MarkSynced failed: %v", err)
		}
	}

	removed, err := q.Trim(ctx, models.KindLocation, 5)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	synced, err := q.ListSynced(ctx, models.KindLocation)
	if err != nil {
		t.Fatalf("ListSynced failed: %v", err)
	}
	got := entryIDs(synced)
	want := ids[3:6]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("remaining synced = %v, want %v", got, want)
		}
	}

	if removed, _ := q.Trim(ctx, models.KindLocation, 0); removed != 0 {
		t.Errorf("unbounded trim removed %d", removed)
	}
}

func TestFlushSynced_RetentionWindow(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	now := baseTime
	q.SetClock(func() time.Time { return now })

	old := statusEvent(1, models.StatusPicked)
	fresh := statusEvent(2, models.StatusInTransit)
	pending := statusEvent(3, models.StatusDelayed)
	for _, ev := range []*models.StatusEvent{old, fresh, pending} {
		if _, err := q.Enqueue(ctx, ev); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if err := q.MarkSynced(ctx, models.KindStatus, old.ID); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if err := q.MarkSynced(ctx, models.KindStatus, fresh.ID); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Minute)

	removed, err := q.FlushSynced(ctx, models.KindStatus, time.Hour)
	if err != nil {
		t.Fatalf("FlushSynced failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := q.Get(ctx, models.KindStatus, old.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("old entry should be flushed, got %v", err)
	}
	if _, err := q.Get(ctx, models.KindStatus, fresh.ID); err != nil {
		t.Errorf("fresh entry should remain: %v", err)
	}
	if _, err := q.Get(ctx, models.KindStatus, pending.ID); err != nil {
		t.Errorf("pending entry should remain: %v", err)
	}
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "HTTP 400: status is required" }
func (permanentErr) Permanent() bool { return true }

func TestRecordAttempt(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)
	ids := enqueueLocations(ctx, t, q, 1)

	if err := q.RecordAttempt(ctx, models.KindLocation, ids[0], errors.New("connection refused")); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	entry, _ := q.Get(ctx, models.KindLocation, ids[0])
	if entry.Attempts != 1 || entry.Rejected || entry.LastError != "connection refused" {
		t.Errorf("after transient failure: %+v", entry)
	}

	wrapped := fmt.Errorf("deliver: %w", permanentErr{})
	if err := q.RecordAttempt(ctx, models.KindLocation, ids[0], wrapped); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	entry, _ = q.Get(ctx, models.KindLocation, ids[0])
	if entry.Attempts != 2 || !entry.Rejected {
		t.Errorf("after permanent failure: %+v", entry)
	}

	if err := q.RecordAttempt(ctx, models.KindLocation, "nope", errors.New("x")); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("unknown id error = %v", err)
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)
	ids := enqueueLocations(ctx, t, q, 2)

	if err := q.MarkSynced(ctx, models.KindLocation, ids[1]); err != nil {
		t.Fatal(err)
	}

	if err := q.Discard(ctx, models.KindLocation, ids[0]); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if err := q.Discard(ctx, models.KindLocation, ids[0]); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("second Discard error = %v, want ErrEntryNotFound", err)
	}
	if err := q.Discard(ctx, models.KindLocation, ids[1]); !errors.Is(err, ErrAlreadySynced) {
		t.Errorf("Discard synced error = %v, want ErrAlreadySynced", err)
	}

	p, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if p.Total() != 0 {
		t.Errorf("pending = %+v, want 0", p)
	}
}

func TestPendingCount(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	enqueueLocations(ctx, t, q, 3)
	if _, err := q.Enqueue(ctx, statusEvent(1, models.StatusPicked)); err != nil {
		t.Fatal(err)
	}

	p, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if p.Location != 3 || p.Status != 1 || p.Total() != 4 {
		t.Errorf("PendingCount = %+v", p)
	}
}

func TestClosedQueue(t *testing.T) {
	ctx := context.Background()
	cfg := createTestConfig(t)
	q, err := Open(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close should be nil, got %v", err)
	}
	if _, err := q.Enqueue(ctx, locationEvent(0)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue on closed = %v", err)
	}
	if _, err := q.ListAllUnsynced(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("ListAllUnsynced on closed = %v", err)
	}
	if (q.Stats() != Stats{}) {
		t.Error("Stats on closed queue should be zero")
	}
}

// TestConcurrentEnqueueAndMark runs a producer and a consumer against the
// same queue, like the capture and sync loops do.
func TestConcurrentEnqueueAndMark(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, err := q.Enqueue(ctx, locationEvent(i)); err != nil {
				t.Errorf("Enqueue %d failed: %v", i, err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		marked := 0
		for marked < n {
			entries, err := q.ListUnsynced(ctx, models.KindLocation)
			if err != nil {
				t.Errorf("ListUnsynced failed: %v", err)
				return
			}
			for _, e := range entries {
				if err := q.MarkSynced(ctx, models.KindLocation, e.ID); err != nil {
					t.Errorf("MarkSynced failed: %v", err)
					return
				}
				marked++
			}
			if len(entries) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	wg.Wait()

	p, _ := q.PendingCount(ctx)
	if p.Location != 0 {
		t.Errorf("pending after drain = %d", p.Location)
	}
	if got := q.Stats().Synced; got != n {
		t.Errorf("synced = %d, want %d", got, n)
	}
}

func TestTrimmer_RunNowAndLifecycle(t *testing.T) {
	ctx := context.Background()
	q := setupQueue(t)

	ids := enqueueLocations(ctx, t, q, 8)
	for _, id := range ids {
		if err := q.MarkSynced(ctx, models.KindLocation, id); err != nil {
			t.Fatal(err)
		}
	}

	tr := NewTrimmer(q)
	if removed := tr.RunNow(ctx); removed != 3 {
		t.Errorf("RunNow removed %d, want 3", removed)
	}
	if tr.GetStats().LastRun.IsZero() {
		t.Error("LastRun not recorded")
	}

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if !tr.IsRunning() {
		t.Error("trimmer should be running")
	}
	tr.Stop()
	tr.Stop()
	if tr.IsRunning() {
		t.Error("trimmer should be stopped")
	}
}
