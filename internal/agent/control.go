// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/awakeelkhan/pakload-sub003/internal/api/respond"
	"github.com/awakeelkhan/pakload-sub003/internal/capture"
	"github.com/awakeelkhan/pakload-sub003/internal/middleware"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
	tracksync "github.com/awakeelkhan/pakload-sub003/internal/sync"
)

// Control API paths.
const (
	PathStatus   = "/status"
	PathSync     = "/sync"
	PathPending  = "/pending"
	PathUnsynced = "/events/unsynced"
	PathDiscard  = "/events/{kind}/{id}"
)

// Error codes in addition to the server's.
const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeConflict   = "ALREADY_SYNCED"
	codeThrottled  = "SYNC_THROTTLED"
	codeStorage    = "STORAGE_ERROR"
)

const maxControlBody = 64 << 10

// StatusCapturer records operator status reports.
type StatusCapturer interface {
	CaptureStatus(ctx context.Context, in capture.StatusInput) (*models.StatusEvent, error)
}

// Syncer runs manual sync cycles.
type Syncer interface {
	SyncNow(ctx context.Context) (tracksync.CycleResult, error)
	LastSyncTime() time.Time
}

// QueueInspector is the part of the queue the control API reads and edits.
type QueueInspector interface {
	PendingCount(ctx context.Context) (queue.Pending, error)
	ListUnsynced(ctx context.Context, kind models.EventKind) ([]*queue.Entry, error)
	ListAllUnsynced(ctx context.Context) ([]*queue.Entry, error)
	Discard(ctx context.Context, kind models.EventKind, id string) error
}

// ControlDeps are the components behind the control API. Conn may be nil.
type ControlDeps struct {
	Capture StatusCapturer
	Sync    Syncer
	Queue   QueueInspector
	Conn    tracksync.Connectivity
}

// PendingResponse is the body of GET /pending.
type PendingResponse struct {
	Pending  queue.Pending `json:"pending"`
	Total    int           `json:"total"`
	Message  string        `json:"message"`
	LastSync *time.Time    `json:"last_sync,omitempty"`
	Online   bool          `json:"online"`
}

// UnsyncedResponse is the body of GET /events/unsynced.
type UnsyncedResponse struct {
	Entries []*queue.Entry `json:"entries"`
	Count   int            `json:"count"`
}

// StatusLine renders the pending counter the way the device shows it.
func StatusLine(p queue.Pending) string {
	switch n := p.Total(); n {
	case 0:
		return "All updates synced"
	case 1:
		return "1 pending update"
	default:
		return fmt.Sprintf("%d pending updates", n)
	}
}

type controlHandler struct {
	deps ControlDeps
}

// NewControlRouter returns the control API. It is meant for loopback use
// and has no authentication.
func NewControlRouter(deps ControlDeps) http.Handler {
	h := &controlHandler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, codeNotFound, "no such endpoint", nil)
	})

	r.Post(PathStatus, h.postStatus)
	r.Post(PathSync, h.postSync)
	r.Get(PathPending, h.getPending)
	r.Get(PathUnsynced, h.listUnsynced)
	r.Delete(PathDiscard, h.discard)
	return r
}

func (h *controlHandler) postStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var in capture.StatusInput
	if err := respond.DecodeJSON(w, r, maxControlBody, &in); err != nil {
		respond.Error(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	ev, err := h.deps.Capture.CaptureStatus(r.Context(), in)
	switch {
	case errors.Is(err, capture.ErrMissingField):
		respond.Error(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, codeStorage, "status could not be saved on the device", err)
	default:
		respond.Success(w, http.StatusCreated, ev, start)
	}
}

func (h *controlHandler) postSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.deps.Sync.SyncNow(r.Context())
	switch {
	case errors.Is(err, tracksync.ErrSyncThrottled):
		w.Header().Set("Retry-After", "1")
		respond.Error(w, r, http.StatusTooManyRequests, codeThrottled, "sync requested too often, try again shortly", nil)
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, codeStorage, "sync cycle failed", err)
	default:
		respond.Success(w, http.StatusOK, res, start)
	}
}

func (h *controlHandler) getPending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, err := h.deps.Queue.PendingCount(r.Context())
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, codeStorage, "queue unavailable", err)
		return
	}
	resp := PendingResponse{
		Pending: p,
		Total:   p.Total(),
		Message: StatusLine(p),
		Online:  h.deps.Conn == nil || h.deps.Conn.Online(),
	}
	if last := h.deps.Sync.LastSyncTime(); !last.IsZero() {
		resp.LastSync = &last
	}
	respond.Success(w, http.StatusOK, resp, start)
}

func (h *controlHandler) listUnsynced(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var (
		entries []*queue.Entry
		err     error
	)
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, perr := models.ParseEventKind(raw)
		if perr != nil {
			respond.Error(w, r, http.StatusBadRequest, codeValidation, perr.Error(), nil)
			return
		}
		entries, err = h.deps.Queue.ListUnsynced(r.Context(), kind)
	} else {
		entries, err = h.deps.Queue.ListAllUnsynced(r.Context())
	}
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, codeStorage, "queue unavailable", err)
		return
	}
	if entries == nil {
		entries = []*queue.Entry{}
	}
	respond.Success(w, http.StatusOK, UnsyncedResponse{Entries: entries, Count: len(entries)}, start)
}

func (h *controlHandler) discard(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseEventKind(chi.URLParam(r, "kind"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	id := chi.URLParam(r, "id")

	err = h.deps.Queue.Discard(r.Context(), kind, id)
	switch {
	case errors.Is(err, queue.ErrEntryNotFound):
		respond.Error(w, r, http.StatusNotFound, codeNotFound, "no such event in the queue", nil)
	case errors.Is(err, queue.ErrAlreadySynced):
		respond.Error(w, r, http.StatusConflict, codeConflict, "event was already delivered", nil)
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, codeStorage, "discard failed", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
