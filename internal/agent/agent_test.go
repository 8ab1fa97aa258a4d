// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package agent

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/capture"
	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor"
)

func TestSourceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CaptureConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.CaptureConfig{Source: "none"}, wantNil: true},
		{name: "empty", cfg: config.CaptureConfig{}, wantNil: true},
		{name: "replay", cfg: config.CaptureConfig{Source: "replay", TrackFile: "track.json"}},
		{name: "replay without file", cfg: config.CaptureConfig{Source: "replay"}, wantErr: true},
		{name: "unknown", cfg: config.CaptureConfig{Source: "gpsd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := SourceFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (src == nil) != tt.wantNil {
				t.Errorf("source = %v, wantNil %v", src, tt.wantNil)
			}
		})
	}
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Agent.DeviceID = "dev-1"
	cfg.Agent.SubjectID = "load-1"
	cfg.Agent.ServerURL = serverURL
	cfg.Agent.ControlAddr = "127.0.0.1:0"
	cfg.Queue.Path = filepath.Join(t.TempDir(), "queue")
	cfg.Queue.SyncWrites = false
	cfg.Sync.ConnectivityProbeInterval = 20 * time.Millisecond
	cfg.Sync.Interval = time.Hour
	cfg.Supervisor.ShutdownTimeout = time.Second
	return cfg
}

// A status captured through the agent reaches the server once connectivity
// is detected, without a manual sync.
func TestAgent_StatusFlowsToServer(t *testing.T) {
	var posted atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"success","data":{"status":"healthy"}}`))
		case "/api/v1/tracking/status-events":
			posted.Add(1)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"success","data":{"accepted":true}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	a, err := New(testConfig(t, server.URL), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	tree, err := supervisor.NewSupervisorTree(nil, supervisor.TreeConfig{Name: "pakload-agent-test", ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	a.Register(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	defer func() {
		cancel()
		<-errCh
	}()

	if _, err := a.Loop.CaptureStatus(ctx, capture.StatusInput{Status: models.StatusPicked, LocationLabel: "Karachi port"}); err != nil {
		t.Fatalf("CaptureStatus: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		p, err := a.Queue.PendingCount(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if p.Total() == 0 && posted.Load() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status not delivered: posted=%d", posted.Load())
}

// serviceEventCounter counts supervisor log records that name a service.
type serviceEventCounter struct {
	service string
	count   atomic.Int32
}

func (h *serviceEventCounter) Enabled(context.Context, slog.Level) bool { return true }

func (h *serviceEventCounter) Handle(_ context.Context, r slog.Record) error {
	hit := strings.Contains(r.Message, h.service)
	r.Attrs(func(a slog.Attr) bool {
		if strings.Contains(a.Value.String(), h.service) {
			hit = true
		}
		return !hit
	})
	if hit {
		h.count.Add(1)
	}
	return nil
}

func (h *serviceEventCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *serviceEventCounter) WithGroup(string) slog.Handler      { return h }

// Without a position source the agent runs status-only and the supervisor
// never sees a failing capture service.
func TestAgent_NoSourceDoesNotRestart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success","data":{"status":"healthy"}}`))
	}))
	defer server.Close()

	a, err := New(testConfig(t, server.URL), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	counter := &serviceEventCounter{service: "capture-loop"}
	tree, err := supervisor.NewSupervisorTree(slog.New(counter), supervisor.TreeConfig{
		Name:            "pakload-agent-test",
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	a.Register(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-errCh

	if n := counter.count.Load(); n != 0 {
		t.Errorf("supervisor events for capture-loop = %d, want 0", n)
	}
	if a.Loop.IsRunning() {
		t.Error("location watch running without a source")
	}
}
