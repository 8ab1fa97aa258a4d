// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

// rejectErr is a permanent delivery error.
type rejectErr struct{ code int }

func (e *rejectErr) Error() string   { return fmt.Sprintf("rejected with %d", e.code) }
func (e *rejectErr) Permanent() bool { return true }

// fakeDeliverer records deliveries; fail decides per entry.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	calls     atomic.Int32
	fail      func(*queue.Entry) error
	delay     time.Duration
}

func (d *fakeDeliverer) Deliver(ctx context.Context, e *queue.Entry) error {
	d.calls.Add(1)
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.fail != nil {
		if err := d.fail(e); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.delivered = append(d.delivered, e.ID)
	d.mu.Unlock()
	return nil
}

func (d *fakeDeliverer) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.delivered...)
}

type switchConn struct{ up atomic.Bool }

func (c *switchConn) Online() bool { return c.up.Load() }

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	cfg := queue.DefaultConfig()
	cfg.Path = t.TempDir()
	q, err := queue.OpenForTesting(&cfg)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func enqueueLocations(t *testing.T, q *queue.Queue, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * 30 * time.Second)
		ev := &models.LocationEvent{
			ID:        models.NewClientID(ts),
			SubjectID: "load-1",
			DeviceID:  "dev-1",
			Latitude:  24.86 + float64(i)*0.001,
			Longitude: 67.0,
			Accuracy:  5,
			Timestamp: ts,
		}
		if _, err := q.Enqueue(context.Background(), ev); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, ev.ID)
	}
	return ids
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	cfg.DeliveryTimeout = time.Second
	cfg.ManualSyncMinGap = 0
	return cfg
}

func TestRunCycle_DeliversInQueueOrder(t *testing.T) {
	q := newTestQueue(t)
	ids := enqueueLocations(t, q, 3)
	status := &models.StatusEvent{
		ID:            models.NewClientID(base.Add(time.Minute)),
		SubjectID:     "load-1",
		Status:        models.StatusInTransit,
		LocationLabel: "Toll plaza",
		Timestamp:     base.Add(time.Minute),
	}
	if _, err := q.Enqueue(context.Background(), status); err != nil {
		t.Fatal(err)
	}

	d := &fakeDeliverer{}
	e := NewEngine(testConfig(), q, d, nil)

	res, err := e.RunCycle(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Attempted != 4 || res.Delivered != 4 || res.Outcome() != "complete" {
		t.Errorf("result = %+v", res)
	}
	want := append(ids, status.ID)
	got := d.ids()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}

	pending, _ := q.PendingCount(context.Background())
	if pending.Total() != 0 {
		t.Errorf("pending after sync = %+v", pending)
	}
	if e.LastSyncTime().IsZero() {
		t.Error("LastSyncTime should be set after a complete cycle")
	}
}

func TestRunCycle_PartialFailureIsolated(t *testing.T) {
	q := newTestQueue(t)
	ids := enqueueLocations(t, q, 5)
	bad := map[string]error{
		ids[1]: errors.New("connection reset"),
		ids[3]: &rejectErr{code: 400},
	}

	d := &fakeDeliverer{fail: func(e *queue.Entry) error { return bad[e.ID] }}
	e := NewEngine(testConfig(), q, d, nil)

	res, err := e.RunCycle(context.Background(), TriggerNudge)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempted != 5 || res.Delivered != 3 || res.Failed != 1 || res.Rejected != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Outcome() != "partial" {
		t.Errorf("outcome = %s, want partial", res.Outcome())
	}
	if !e.LastSyncTime().IsZero() {
		t.Error("partial cycle must not advance LastSyncTime")
	}

	unsynced, _ := q.ListAllUnsynced(context.Background())
	if len(unsynced) != 2 || unsynced[0].ID != ids[1] || unsynced[1].ID != ids[3] {
		t.Fatalf("unsynced = %v", unsynced)
	}
	if unsynced[0].Attempts != 1 || unsynced[0].Rejected || unsynced[0].LastError != "connection reset" {
		t.Errorf("transient entry = %+v", unsynced[0])
	}
	if !unsynced[1].Rejected {
		t.Errorf("rejected entry should be flagged: %+v", unsynced[1])
	}

	// Next cycle retries both; the transient one now succeeds.
	delete(bad, ids[1])
	res, _ = e.RunCycle(context.Background(), TriggerTimer)
	if res.Attempted != 2 || res.Delivered != 1 || res.Rejected != 1 {
		t.Errorf("retry result = %+v", res)
	}
}

func TestRunCycle_SkippedWhenOffline(t *testing.T) {
	q := newTestQueue(t)
	enqueueLocations(t, q, 2)
	conn := &switchConn{}
	d := &fakeDeliverer{}
	e := NewEngine(testConfig(), q, d, conn)

	var results []CycleResult
	e.SetOnCycle(func(r CycleResult) { results = append(results, r) })

	res, err := e.RunCycle(context.Background(), TriggerNudge)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || res.Attempted != 0 || d.calls.Load() != 0 {
		t.Errorf("offline cycle = %+v, calls = %d", res, d.calls.Load())
	}
	if len(results) != 1 || !results[0].Skipped {
		t.Errorf("OnCycle results = %+v", results)
	}
}

// Three fixes captured offline reach the server in order once the link
// returns, and the queue is empty afterwards.
func TestEngine_OfflineThenReconnect(t *testing.T) {
	q := newTestQueue(t)
	conn := &switchConn{}
	d := &fakeDeliverer{}
	e := NewEngine(testConfig(), q, d, conn)

	results := make(chan CycleResult, 16)
	e.SetOnCycle(func(r CycleResult) { results <- r })

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	ids := enqueueLocations(t, q, 3)
	e.Nudge()
	if r := <-results; !r.Skipped {
		t.Fatalf("first cycle should be skipped offline: %+v", r)
	}

	conn.up.Store(true)
	e.Nudge() // what the connectivity monitor does on regain
	r := <-results
	if r.Delivered != 3 {
		t.Fatalf("cycle after reconnect = %+v", r)
	}
	got := d.ids()
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order = %v, want %v", got, ids)
		}
	}
	if p, _ := q.PendingCount(ctx); p.Total() != 0 {
		t.Errorf("pending = %+v", p)
	}
}

func TestEngine_NudgesCoalesce(t *testing.T) {
	q := newTestQueue(t)
	enqueueLocations(t, q, 1)
	d := &fakeDeliverer{delay: 100 * time.Millisecond}
	e := NewEngine(testConfig(), q, d, nil)

	var cycles atomic.Int32
	e.SetOnCycle(func(CycleResult) { cycles.Add(1) })

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	e.Nudge()
	time.Sleep(20 * time.Millisecond) // first cycle is now delivering
	for i := 0; i < 50; i++ {
		e.Nudge()
	}
	time.Sleep(400 * time.Millisecond)

	if got := cycles.Load(); got != 2 {
		t.Errorf("cycles = %d, want 2 (one running, one coalesced follow-up)", got)
	}
}

func TestSyncNow_Throttled(t *testing.T) {
	q := newTestQueue(t)
	cfg := testConfig()
	cfg.ManualSyncMinGap = time.Hour
	e := NewEngine(cfg, q, &fakeDeliverer{}, nil)

	res, err := e.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("first SyncNow: %v", err)
	}
	if res.Outcome() != "empty" {
		t.Errorf("outcome = %s, want empty", res.Outcome())
	}
	if _, err := e.SyncNow(context.Background()); !errors.Is(err, ErrSyncThrottled) {
		t.Errorf("second SyncNow error = %v, want ErrSyncThrottled", err)
	}
}

func TestEngine_StopFinishesInFlightDelivery(t *testing.T) {
	q := newTestQueue(t)
	ids := enqueueLocations(t, q, 3)
	d := &fakeDeliverer{delay: 150 * time.Millisecond}
	e := NewEngine(testConfig(), q, d, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Nudge()
	time.Sleep(30 * time.Millisecond)
	e.Stop()

	if e.IsRunning() {
		t.Fatal("engine should be stopped")
	}
	got := d.ids()
	if len(got) != 1 || got[0] != ids[0] {
		t.Fatalf("delivered = %v, want only the in-flight %s", got, ids[0])
	}
	entry, err := q.Get(context.Background(), models.KindLocation, ids[0])
	if err != nil || !entry.Synced {
		t.Errorf("in-flight entry should be marked synced: %+v, %v", entry, err)
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	e := NewEngine(testConfig(), newTestQueue(t), &fakeDeliverer{}, nil)
	e.Stop()
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Stop()
	e.Stop()
	if e.IsRunning() {
		t.Error("engine should be stopped")
	}
}

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	q := newTestQueue(t)
	enqueueLocations(t, q, 6)
	inner := &fakeDeliverer{fail: func(*queue.Entry) error { return errors.New("dial tcp: refused") }}
	b := NewBreaker("test-open", inner, 2, time.Hour)
	e := NewEngine(testConfig(), q, b, nil)

	res, err := e.RunCycle(context.Background(), TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 6 {
		t.Errorf("result = %+v", res)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("inner deliveries = %d, want 2 before the circuit opened", got)
	}
	if b.State() != "open" {
		t.Errorf("breaker state = %s, want open", b.State())
	}

	// Short-circuited entries were not attempted.
	unsynced, _ := q.ListAllUnsynced(context.Background())
	if unsynced[5].Attempts != 0 {
		t.Errorf("short-circuited entry attempts = %d", unsynced[5].Attempts)
	}
}

func TestBreaker_RejectionsDoNotTrip(t *testing.T) {
	inner := &fakeDeliverer{fail: func(*queue.Entry) error { return &rejectErr{code: 422} }}
	b := NewBreaker("test-reject", inner, 2, time.Hour)

	for i := 0; i < 5; i++ {
		err := b.Deliver(context.Background(), &queue.Entry{ID: fmt.Sprint(i)})
		if !queue.IsPermanent(err) {
			t.Fatalf("delivery %d error = %v, want the rejection", i, err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("breaker state = %s, want closed", b.State())
	}
}
