// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/awakeelkhan/pakload-sub003/internal/api/respond"
	"github.com/awakeelkhan/pakload-sub003/internal/ingest"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

const (
	defaultMaxBodyBytes = 64 * 1024
	msgNoDataYet        = "no data yet"
)

// Pinger reports whether the event log is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BusHealth reports whether the event bus accepts publishes.
type BusHealth interface {
	Healthy() bool
}

// Tracker is the ingestion service as seen by the handlers.
type Tracker interface {
	AcceptLocation(ctx context.Context, ev *models.LocationEvent) (ingest.Result, error)
	AcceptStatus(ctx context.Context, ev *models.StatusEvent) (ingest.Result, error)
	Projection(ctx context.Context, subjectID string) (*models.TrackingProjection, bool)
	Subjects() []string
}

// HandlerOptions holds the optional dependencies of a Handler.
type HandlerOptions struct {
	DB           Pinger
	Bus          BusHealth
	MaxBodyBytes int64
	Version      string
}

// Handler serves the tracking endpoints.
type Handler struct {
	tracker   Tracker
	db        Pinger
	bus       BusHealth
	maxBody   int64
	version   string
	startTime time.Time
}

// NewHandler creates a handler over tracker.
func NewHandler(tracker Tracker, opts HandlerOptions) *Handler {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		tracker:   tracker,
		db:        opts.DB,
		bus:       opts.Bus,
		maxBody:   maxBody,
		version:   version,
		startTime: time.Now(),
	}
}

// PostLocationEvent accepts one location event.
func (h *Handler) PostLocationEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var ev models.LocationEvent
	if err := respond.DecodeJSON(w, r, h.maxBody, &ev); err != nil {
		respond.Error(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	res, err := h.tracker.AcceptLocation(r.Context(), &ev)
	h.respondAccept(w, r, res, err, start)
}

// PostStatusEvent accepts one status event.
func (h *Handler) PostStatusEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var ev models.StatusEvent
	if err := respond.DecodeJSON(w, r, h.maxBody, &ev); err != nil {
		respond.Error(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	res, err := h.tracker.AcceptStatus(r.Context(), &ev)
	h.respondAccept(w, r, res, err, start)
}

// respondAccept maps an ingestion outcome: 201 new, 200 duplicate, 400
// malformed, 500 when the event log failed.
func (h *Handler) respondAccept(w http.ResponseWriter, r *http.Request, res ingest.Result, err error, start time.Time) {
	if err != nil {
		var me *ingest.MalformedError
		if errors.As(err, &me) {
			respond.APIError(w, http.StatusBadRequest, me.Validation.ToAPIError())
			return
		}
		respond.Error(w, r, http.StatusInternalServerError, CodeStoreUnavailable,
			"event could not be stored, retry later", err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	respond.Success(w, status, models.IngestResult{
		Accepted:   true,
		Duplicate:  res.Duplicate,
		Projection: res.Projection,
	}, start)
}

// GetProjection returns a subject's projection, or found=false with "no
// data yet".
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subjectID := chi.URLParam(r, "subjectID")
	if subjectID == "" {
		respond.Error(w, r, http.StatusBadRequest, CodeValidation, "subject id is required", nil)
		return
	}

	proj, ok := h.tracker.Projection(r.Context(), subjectID)
	if !ok {
		respond.Success(w, http.StatusOK, models.ProjectionResponse{Found: false, Message: msgNoDataYet}, start)
		return
	}
	respond.Success(w, http.StatusOK, models.ProjectionResponse{Found: true, Projection: proj}, start)
}

// ListSubjects returns the ids of subjects with data.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	subjects := h.tracker.Subjects()
	if subjects == nil {
		subjects = []string{}
	}
	respond.Success(w, http.StatusOK, map[string]interface{}{
		"subjects": subjects,
		"count":    len(subjects),
	}, start)
}

// Health answers the connectivity probe. It fails with 503 only when the
// event log is unreachable; an unhealthy event bus reports "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := models.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		DatabaseOK:    true,
		EventBusOK:    true,
		Subjects:      len(h.tracker.Subjects()),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Timestamp:     time.Now().UTC(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.db.Ping(ctx)
		cancel()
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: event log unreachable")
			resp.DatabaseOK = false
			resp.Status = "unhealthy"
		}
	}
	if h.bus != nil && !h.bus.Healthy() {
		resp.EventBusOK = false
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if !resp.DatabaseOK {
		status = http.StatusServiceUnavailable
	}
	respond.Success(w, status, resp, start)
}
