// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client with no connection.
func createTestClient(hub *Hub, subject string) *Client {
	return NewClient(hub, nil, subject)
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(500 * time.Millisecond):
		return Message{}, false
	}
}

func TestHub_NotifyReachesMatchingClients(t *testing.T) {
	hub := startHub(t)

	all := createTestClient(hub, "")
	one := createTestClient(hub, "load-1")
	other := createTestClient(hub, "load-2")
	for _, c := range []*Client{all, one, other} {
		hub.Register <- c
	}

	hub.NotifyProjectionUpdated("load-1", &models.TrackingProjection{SubjectID: "load-1", EventCount: 3})

	for _, c := range []*Client{all, one} {
		msg, ok := receive(t, c)
		if !ok {
			t.Fatalf("client %d got no hint", c.ID())
		}
		if msg.Type != MessageTypeProjectionUpdated || msg.SubjectID != "load-1" {
			t.Errorf("message = %+v", msg)
		}
		if data := msg.Data.(ProjectionUpdatedData); data.EventCount != 3 {
			t.Errorf("event_count = %d", data.EventCount)
		}
	}
	if _, ok := receive(t, other); ok {
		t.Error("client filtered to load-2 received a load-1 hint")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := createTestClient(hub, "")
	hub.Register <- c
	hub.Unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("client count = %d", n)
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message)}
	hub.Register <- slow

	hub.NotifyProjectionUpdated("load-1", nil)

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.GetClientCount(); n != 0 {
		t.Errorf("slow client still registered (count %d)", n)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := createTestClient(hub, "")
	hub.Register <- c
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("Serve returned %v", err)
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
}

func TestNotify_NeverBlocks(t *testing.T) {
	hub := NewHub(nil) // not running, buffer fills up
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.NotifyProjectionUpdated("load-1", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyProjectionUpdated blocked")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://ops.example.com"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://ops.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
	if !originChecker([]string{"*"})(func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "http://anything")
		return r
	}()) {
		t.Error("wildcard should allow every origin")
	}
}

func TestHintURL(t *testing.T) {
	tests := []struct {
		base, subject, want string
		wantErr             bool
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/api/v1/ws", false},
		{"https://track.example.com/", "load 1", "wss://track.example.com/api/v1/ws?subject=load+1", false},
		{"ftp://x", "", "", true},
	}
	for _, tt := range tests {
		got, err := HintURL(tt.base, tt.subject)
		if (err != nil) != tt.wantErr {
			t.Fatalf("HintURL(%q) error = %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("HintURL(%q, %q) = %q, want %q", tt.base, tt.subject, got, tt.want)
		}
	}
}

func TestListener_ReceivesHintsOverWebsocket(t *testing.T) {
	hub := startHub(t)

	var gotAuth string
	var authMu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc(PathWS, func(w http.ResponseWriter, r *http.Request) {
		authMu.Lock()
		gotAuth = r.Header.Get("Authorization")
		authMu.Unlock()
		hub.ServeWS(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hints := make(chan ProjectionUpdatedData, 4)
	l, err := NewListener(srv.URL, "tok", "load-1", func(d ProjectionUpdatedData) { hints <- d })
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(3 * time.Second)
	for hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.GetClientCount() != 1 {
		t.Fatal("listener never connected")
	}

	hub.NotifyProjectionUpdated("load-2", nil)
	hub.NotifyProjectionUpdated("load-1", &models.TrackingProjection{SubjectID: "load-1", EventCount: 7})

	select {
	case d := <-hints:
		if d.SubjectID != "load-1" || d.EventCount != 7 {
			t.Errorf("hint = %+v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no hint received")
	}

	authMu.Lock()
	defer authMu.Unlock()
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_PingGetsPong(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("type = %q, want pong", msg.Type)
	}
}
