// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Token: "tok-123", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: msg},
	})
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "not a url", "http://"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestDeliverLocation_SendsEventWithBearer(t *testing.T) {
	var got models.LocationEvent
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathLocationEvents {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-123" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	ev := &models.LocationEvent{ID: "1772359200000-abcd1234", SubjectID: "load-1", Latitude: 24.86, Longitude: 67.0, Accuracy: 5, Timestamp: t0}
	if err := c.DeliverLocation(context.Background(), ev); err != nil {
		t.Fatalf("DeliverLocation: %v", err)
	}
	if got.ID != ev.ID || got.SubjectID != "load-1" || !got.Timestamp.Equal(t0) {
		t.Errorf("server received %+v", got)
	}
}

func TestDeliver_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusUnprocessableEntity, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, "VALIDATION_ERROR", "latitude out of range")
			})
			entry := &queue.Entry{Kind: models.KindStatus, ID: "x", Payload: json.RawMessage(`{"id":"x"}`)}
			err := c.Deliver(context.Background(), entry)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := queue.IsPermanent(err); got != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v (%v)", got, tt.permanent, err)
			}
			if tt.permanent {
				var re *RejectedError
				if !errors.As(err, &re) || re.Message != "latitude out of range" || re.Code != "VALIDATION_ERROR" {
					t.Errorf("rejection = %+v", re)
				}
			}
		})
	}
}

func TestDeliver_RoutesByKind(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"id"`) {
			t.Errorf("payload not forwarded: %s", body)
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	_ = c.Deliver(ctx, &queue.Entry{Kind: models.KindLocation, Payload: json.RawMessage(`{"id":"a"}`)})
	_ = c.Deliver(ctx, &queue.Entry{Kind: models.KindStatus, Payload: json.RawMessage(`{"id":"b"}`)})
	if len(paths) != 2 || paths[0] != PathLocationEvents || paths[1] != PathStatusEvents {
		t.Errorf("paths = %v", paths)
	}
	if err := c.Deliver(ctx, &queue.Entry{Kind: "bogus"}); !IsRejected(err) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestDeliver_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(Options{BaseURL: url, Timeout: time.Second})
	err := c.DeliverStatus(context.Background(), &models.StatusEvent{ID: "x"})
	if err == nil || queue.IsPermanent(err) {
		t.Errorf("network error = %v, want transient", err)
	}
}

func TestGetProjection(t *testing.T) {
	proj := &models.TrackingProjection{SubjectID: "load-1", EventCount: 2, LastSyncedAt: t0}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var data models.ProjectionResponse
		switch r.URL.Path {
		case "/api/v1/tracking/subjects/load-1/projection":
			data = models.ProjectionResponse{Found: true, Projection: proj}
		case "/api/v1/tracking/subjects/empty/projection":
			data = models.ProjectionResponse{Found: false, Message: "no data yet"}
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
			return
		}
		_ = json.NewEncoder(w).Encode(models.APIResponse{Status: "success", Data: data})
	})

	ctx := context.Background()
	got, found, err := c.GetProjection(ctx, "load-1")
	if err != nil || !found || got.EventCount != 2 || !got.LastSyncedAt.Equal(t0) {
		t.Errorf("GetProjection(load-1) = %+v, %v, %v", got, found, err)
	}

	got, found, err = c.GetProjection(ctx, "empty")
	if err != nil || found || got != nil {
		t.Errorf("GetProjection(empty) = %+v, %v, %v", got, found, err)
	}

	if _, _, err := c.GetProjection(ctx, "broken"); err == nil {
		t.Error("expected error for 500")
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathHealth {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health = %v", err)
	}
	healthy = false
	if err := c.Health(context.Background()); err == nil {
		t.Error("Health should fail on 503")
	}
}

func TestIsPermanentStatus(t *testing.T) {
	for code, want := range map[int]bool{200: false, 400: true, 404: true, 408: false, 409: true, 429: false, 499: true, 500: false} {
		if got := IsPermanentStatus(code); got != want {
			t.Errorf("IsPermanentStatus(%d) = %v, want %v", code, got, want)
		}
	}
}
