// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

// PathWS is the hub's route on the server.
const PathWS = "/api/v1/ws"

const maxReconnectDelay = 32 * time.Second

// Listener keeps a connection to the hub and reports projection hints.
type Listener struct {
	url     string
	token   string
	onHint  func(ProjectionUpdatedData)
	dialer  websocket.Dialer
	backoff time.Duration
}

// NewListener builds a listener for the server at baseURL (http or https).
// A non-empty subject narrows the hints to that subject.
func NewListener(baseURL, token, subject string, onHint func(ProjectionUpdatedData)) (*Listener, error) {
	wsURL, err := HintURL(baseURL, subject)
	if err != nil {
		return nil, err
	}
	return &Listener{
		url:     wsURL,
		token:   token,
		onHint:  onHint,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: time.Second,
	}, nil
}

// HintURL converts a server base URL to the websocket hint URL.
func HintURL(baseURL, subject string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += PathWS
	if subject != "" {
		q := url.Values{}
		q.Set("subject", subject)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run connects and reads hints until ctx is done, reconnecting with
// exponential backoff (1s doubling to 32s). It implements suture.Service.
func (l *Listener) Run(ctx context.Context) error {
	delay := l.backoff
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			delay = l.backoff
		}
		logging.Debug().Err(err).Dur("retry_in", delay).Msg("hint connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Serve is Run under the suture.Service name.
func (l *Listener) Serve(ctx context.Context) error {
	return l.Run(ctx)
}

// session runs one connection. It returns nil if the connection was
// established and later dropped.
func (l *Listener) session(ctx context.Context) error {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	logging.Debug().Str("url", l.url).Msg("hint connection established")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		var msg struct {
			Type string                `json:"type"`
			Data ProjectionUpdatedData `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug().Err(err).Msg("ignoring undecodable hint")
			continue
		}
		if msg.Type == MessageTypeProjectionUpdated && l.onHint != nil {
			l.onHint(msg.Data)
		}
	}
}
