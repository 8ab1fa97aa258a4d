// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package dashboard is the read path: it polls one subject's projection and
// renders it with the time it was fetched.
//
// A failed poll never replaces the last good projection. The error is kept
// next to it until a later poll succeeds. Websocket hints only request an
// early poll; the interval poll is what keeps the view current.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/websocket"
)

// ProjectionReader fetches a projection. found is false when the server
// has no data for the subject.
type ProjectionReader interface {
	GetProjection(ctx context.Context, subjectID string) (*models.TrackingProjection, bool, error)
}

// Config controls polling.
type Config struct {
	SubjectID      string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// DefaultPollInterval is the refresh cadence.
const DefaultPollInterval = 30 * time.Second

// ConfigFromApp converts the dashboard settings.
func ConfigFromApp(c config.DashboardConfig) Config {
	return Config{SubjectID: c.SubjectID, PollInterval: c.PollInterval}
}

// Snapshot is what the dashboard shows. Projection, Found and FetchedAt
// come from the last successful poll; LastError and LastAttemptAt from the
// last poll of any outcome.
type Snapshot struct {
	SubjectID     string
	Projection    *models.TrackingProjection
	Found         bool
	FetchedAt     time.Time
	LastError     error
	LastAttemptAt time.Time
}

// Fetched reports whether any poll has succeeded.
func (s Snapshot) Fetched() bool { return !s.FetchedAt.IsZero() }

// ErrNoSubject is returned by NewPoller without a subject id.
var ErrNoSubject = errors.New("dashboard: subject id is required")

// Poller keeps a Snapshot current.
type Poller struct {
	cfg    Config
	reader ProjectionReader
	now    func() time.Time

	refresh chan struct{}
	pollMu  sync.Mutex

	mu       sync.RWMutex
	snap     Snapshot
	onUpdate func(Snapshot)
}

// NewPoller creates a poller for cfg.SubjectID.
func NewPoller(cfg Config, reader ProjectionReader) (*Poller, error) {
	if cfg.SubjectID == "" {
		return nil, ErrNoSubject
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Poller{
		cfg:     cfg,
		reader:  reader,
		now:     time.Now,
		refresh: make(chan struct{}, 1),
		snap:    Snapshot{SubjectID: cfg.SubjectID},
	}, nil
}

// SetClock overrides the clock used for FetchedAt and LastAttemptAt.
func (p *Poller) SetClock(now func() time.Time) {
	p.now = now
}

// SetOnUpdate registers a callback run after every poll.
func (p *Poller) SetOnUpdate(fn func(Snapshot)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// Snapshot returns the current view.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.snap
	s.Projection = s.Projection.Clone()
	return s
}

// Refresh requests an immediate poll. It never blocks and coalesces.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// OnHint is a websocket.Listener callback that refreshes on hints for the
// watched subject.
func (p *Poller) OnHint(h websocket.ProjectionUpdatedData) {
	if h.SubjectID == p.cfg.SubjectID {
		p.Refresh()
	}
}

// Poll fetches once and returns the resulting snapshot.
func (p *Poller) Poll(ctx context.Context) Snapshot {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	proj, found, err := p.reader.GetProjection(reqCtx, p.cfg.SubjectID)
	cancel()
	now := p.now().UTC()

	p.mu.Lock()
	p.snap.LastAttemptAt = now
	switch {
	case err != nil:
		p.snap.LastError = err
		metrics.RecordDashboardPoll("error")
		logging.Warn().Err(err).Str("subject_id", p.cfg.SubjectID).Msg("Projection poll failed")
	case !found:
		p.snap.Projection = nil
		p.snap.Found = false
		p.snap.FetchedAt = now
		p.snap.LastError = nil
		metrics.RecordDashboardPoll("not_found")
	default:
		p.snap.Projection = proj
		p.snap.Found = true
		p.snap.FetchedAt = now
		p.snap.LastError = nil
		metrics.RecordDashboardPoll("ok")
	}
	snap := p.snap
	snap.Projection = snap.Projection.Clone()
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snap)
	}
	return snap
}

// Serve polls immediately, then on every interval and refresh request,
// until ctx is done.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	logging.Info().
		Str("subject_id", p.cfg.SubjectID).
		Dur("interval", p.cfg.PollInterval).
		Msg("Dashboard poller started")

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.refresh:
			p.Poll(ctx)
			ticker.Reset(p.cfg.PollInterval)
		}
	}
}

// String implements fmt.Stringer for the supervisor.
func (p *Poller) String() string { return "dashboard-poller" }
