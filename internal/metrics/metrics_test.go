// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		err       error
	}{
		{"successful insert", "INSERT", "tracking_events", nil},
		{"failed select", "SELECT", "tracking_events", errors.New("connection refused")},
		{
			"long error truncated",
			"SELECT", "tracking_events",
			errors.New(strings.Repeat("x", 120)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("RecordDBQuery panicked: %v", r)
				}
			}()
			RecordDBQuery(tt.operation, tt.table, 5*time.Millisecond, tt.err)
		})
	}

	long := strings.Repeat("x", 50)
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "tracking_events", long)); got < 1 {
		t.Errorf("truncated error label count = %v, want >= 1", got)
	}
}

func TestRecordEnqueue(t *testing.T) {
	beforeOK := testutil.ToFloat64(QueueEnqueued.WithLabelValues("location"))
	beforeErr := testutil.ToFloat64(QueueWriteErrors)

	RecordEnqueue("location", nil)
	RecordEnqueue("location", errors.New("disk full"))

	if got := testutil.ToFloat64(QueueEnqueued.WithLabelValues("location")) - beforeOK; got != 1 {
		t.Errorf("enqueued delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(QueueWriteErrors) - beforeErr; got != 1 {
		t.Errorf("write error delta = %v, want 1", got)
	}
}

func TestRecordTrimmed_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(QueueTrimmed.WithLabelValues("status"))
	RecordTrimmed("status", 0)
	RecordTrimmed("status", 3)
	if got := testutil.ToFloat64(QueueTrimmed.WithLabelValues("status")) - before; got != 3 {
		t.Errorf("trimmed delta = %v, want 3", got)
	}
}

func TestRecordSyncCycle(t *testing.T) {
	SyncLastSuccess.Set(0)

	RecordSyncCycle("skipped", 0)
	if got := testutil.ToFloat64(SyncLastSuccess); got != 0 {
		t.Errorf("skipped cycle must not set last success, got %v", got)
	}

	RecordSyncCycle("partial", time.Second)
	if got := testutil.ToFloat64(SyncLastSuccess); got != 0 {
		t.Errorf("partial cycle must not set last success, got %v", got)
	}

	RecordSyncCycle("complete", time.Second)
	if got := testutil.ToFloat64(SyncLastSuccess); got == 0 {
		t.Error("complete cycle should set last success")
	}
}

func TestSetConnectivity(t *testing.T) {
	SetConnectivity(true)
	if got := testutil.ToFloat64(ConnectivityOnline); got != 1 {
		t.Errorf("online gauge = %v, want 1", got)
	}
	SetConnectivity(false)
	if got := testutil.ToFloat64(ConnectivityOnline); got != 0 {
		t.Errorf("online gauge = %v, want 0", got)
	}
}

func TestRecordCaptureFix(t *testing.T) {
	emitted := testutil.ToFloat64(CaptureFixes.WithLabelValues("emitted"))
	filtered := testutil.ToFloat64(CaptureFixes.WithLabelValues("filtered"))

	RecordCaptureFix(true)
	RecordCaptureFix(false)
	RecordCaptureFix(false)

	if got := testutil.ToFloat64(CaptureFixes.WithLabelValues("emitted")) - emitted; got != 1 {
		t.Errorf("emitted delta = %v", got)
	}
	if got := testutil.ToFloat64(CaptureFixes.WithLabelValues("filtered")) - filtered; got != 2 {
		t.Errorf("filtered delta = %v", got)
	}
}

func TestRecordEventBusPublish(t *testing.T) {
	before := testutil.ToFloat64(EventBusPublished.WithLabelValues("tracking.status", "failure"))
	RecordEventBusPublish("tracking.status", errors.New("nats down"))
	if got := testutil.ToFloat64(EventBusPublished.WithLabelValues("tracking.status", "failure")) - before; got != 1 {
		t.Errorf("failure delta = %v", got)
	}
}

func TestRecordSyncCycle_ObservesDuration(t *testing.T) {
	sampleCount := func() uint64 {
		var m dto.Metric
		if err := SyncCycleDuration.Write(&m); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		return m.GetHistogram().GetSampleCount()
	}

	before := sampleCount()
	RecordSyncCycle("complete", 250*time.Millisecond)
	RecordSyncCycle("skipped", 0)
	if got := sampleCount() - before; got != 1 {
		t.Errorf("observed samples = %d, want 1 (skipped cycles are not timed)", got)
	}
}
