// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
	tracksync "github.com/awakeelkhan/pakload-sub003/internal/sync"
)

// ControlError is a non-2xx answer from the control API.
type ControlError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ControlError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("agent returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agent returned %d", e.StatusCode)
}

// ControlClient talks to a running agent's control API.
type ControlClient struct {
	baseURL string
	http    *http.Client
}

// NewControlClient creates a client for addr, either host:port or a URL.
func NewControlClient(addr string, timeout time.Duration) *ControlClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ControlClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SyncNow asks the agent to run a cycle immediately.
func (c *ControlClient) SyncNow(ctx context.Context) (tracksync.CycleResult, error) {
	var res tracksync.CycleResult
	err := c.do(ctx, http.MethodPost, PathSync, &res)
	return res, err
}

// Pending returns the agent's pending counter.
func (c *ControlClient) Pending(ctx context.Context) (PendingResponse, error) {
	var res PendingResponse
	err := c.do(ctx, http.MethodGet, PathPending, &res)
	return res, err
}

// Discard removes an unsynced event from the running agent's queue.
func (c *ControlClient) Discard(ctx context.Context, kind models.EventKind, id string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+string(kind)+"/"+id, nil)
}

func (c *ControlClient) do(ctx context.Context, method, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact agent: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read agent response: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &ControlError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 300 {
		ce := &ControlError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			ce.Code, ce.Message = env.Error.Code, env.Error.Message
		}
		return ce
	}
	if dst == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	return nil
}
