// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package client talks to the tracking server's HTTP API. The device agent
// uses it to deliver queued events and probe health; the dashboard uses it
// to read projections.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

// API paths.
const (
	PathLocationEvents = "/api/v1/tracking/location-events"
	PathStatusEvents   = "/api/v1/tracking/status-events"
	PathHealth         = "/api/v1/health"
	pathProjection     = "/api/v1/tracking/subjects/%s/projection"
)

// maxErrorBodySize limits how much of an error response body is read.
const maxErrorBodySize = 64 * 1024

// RejectedError is a 4xx answer other than 408 and 429. The server will
// never accept the event as sent, so retrying is pointless.
type RejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server rejected event (HTTP %d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected event (HTTP %d): %s", e.StatusCode, e.Message)
}

// Permanent marks the error as not worth retrying.
func (e *RejectedError) Permanent() bool { return true }

// StatusError is any other non-2xx answer. It is transient.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client. BaseURL must be an absolute http(s) URL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  hc,
	}, nil
}

// DeliverLocation posts a location event.
func (c *Client) DeliverLocation(ctx context.Context, ev *models.LocationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal location event: %w", err)
	}
	return c.post(ctx, PathLocationEvents, body)
}

// DeliverStatus posts a status event.
func (c *Client) DeliverStatus(ctx context.Context, ev *models.StatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	return c.post(ctx, PathStatusEvents, body)
}

// Deliver posts a queued entry to the endpoint for its kind.
func (c *Client) Deliver(ctx context.Context, entry *queue.Entry) error {
	switch entry.Kind {
	case models.KindLocation:
		return c.post(ctx, PathLocationEvents, entry.Payload)
	case models.KindStatus:
		return c.post(ctx, PathStatusEvents, entry.Payload)
	default:
		return &RejectedError{StatusCode: 0, Message: fmt.Sprintf("unknown event kind %q", entry.Kind)}
	}
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return classify(resp)
}

// GetProjection reads a subject's projection. found is false when the
// server has no events for the subject yet.
func (c *Client) GetProjection(ctx context.Context, subjectID string) (*models.TrackingProjection, bool, error) {
	path := fmt.Sprintf(pathProjection, url.PathEscape(subjectID))
	req, err := c.newRequest(ctx, http.MethodGet, path, http.NoBody)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, classify(resp)
	}

	var envelope struct {
		Status string                    `json:"status"`
		Data   models.ProjectionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("decode projection response: %w", err)
	}
	if !envelope.Data.Found || envelope.Data.Projection == nil {
		return nil, false, nil
	}
	return envelope.Data.Projection, true, nil
}

// Health returns nil when the server answers its health endpoint with 200.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, PathHealth, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// classify turns a non-2xx response into RejectedError or StatusError.
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	code, msg := errorMessage(raw)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if IsPermanentStatus(resp.StatusCode) {
		return &RejectedError{StatusCode: resp.StatusCode, Code: code, Message: msg}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// IsPermanentStatus reports whether an HTTP status means the request will
// never succeed as sent: any 4xx except 408 Request Timeout and 429 Too
// Many Requests.
func IsPermanentStatus(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func errorMessage(raw []byte) (code, msg string) {
	var envelope models.APIResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Code, envelope.Error.Message
	}
	return "", strings.TrimSpace(string(raw))
}

// IsRejected reports whether err is a permanent rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
