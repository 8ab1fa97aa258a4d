// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package capture produces tracking events on the device: a position watch
// filtered through a time/distance Trigger, and operator status reports.
// Every event is written to the durable queue before the call returns, and
// the sync engine is nudged afterwards without waiting on it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

// ErrMissingField is returned by CaptureStatus when a required field is
// empty. The error text names the field.
var ErrMissingField = errors.New("required field missing")

// ErrNoSource is returned by Start when the loop was built without a
// position source.
var ErrNoSource = errors.New("capture: no position source configured")

// Enqueuer is the part of the queue the capture loop writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev models.Event) (*queue.Entry, error)
}

// Nudger is told after each successful capture. Nudge must not block.
type Nudger interface {
	Nudge()
}

// Config identifies the device and sets the trigger thresholds.
type Config struct {
	DeviceID          string
	SubjectID         string
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// Loop runs the location watch and records status reports.
type Loop struct {
	cfg     Config
	source  PositionSource
	queue   Enqueuer
	trigger *Trigger
	now     func() time.Time

	nudgeMu sync.RWMutex
	nudger  Nudger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLoop creates a capture loop. source may be nil when the device only
// reports statuses.
func NewLoop(cfg Config, source PositionSource, q Enqueuer) *Loop {
	return &Loop{
		cfg:     cfg,
		source:  source,
		queue:   q,
		trigger: NewTrigger(cfg.MinInterval, cfg.MinDistanceMeters),
		now:     time.Now,
	}
}

// SetNudger sets the component told about new events.
func (l *Loop) SetNudger(n Nudger) {
	l.nudgeMu.Lock()
	l.nudger = n
	l.nudgeMu.Unlock()
}

// SetClock overrides the clock used for status timestamps and ids.
func (l *Loop) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *Loop) clock() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now()
}

func (l *Loop) nudge() {
	l.nudgeMu.RLock()
	n := l.nudger
	l.nudgeMu.RUnlock()
	if n != nil {
		n.Nudge()
	}
}

// HasSource reports whether the loop has a position source to watch.
// Without one only CaptureStatus is available.
func (l *Loop) HasSource() bool {
	return l.source != nil
}

// Start opens the position watch. Starting an active watch is a no-op.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if l.source == nil {
		return ErrNoSource
	}

	watchCtx, cancel := context.WithCancel(ctx)
	fixes, err := l.source.Watch(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("open position watch: %w", err)
	}

	done := make(chan struct{})
	l.running = true
	l.cancel = cancel
	l.done = done
	l.trigger.Reset()

	go l.run(watchCtx, cancel, fixes, done)

	logging.Info().
		Str("subject_id", l.cfg.SubjectID).
		Dur("min_interval", l.cfg.MinInterval).
		Float64("min_distance_m", l.cfg.MinDistanceMeters).
		Msg("Location watch started")
	return nil
}

// Stop ends the position watch and waits for the watch goroutine to exit.
// Stopping an inactive watch is a no-op. Enqueued events are never lost,
// since each enqueue is a completed durable write.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	logging.Info().Msg("Location watch stopped")
}

// IsRunning reports whether the watch is active.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, fixes <-chan Fix, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-fixes:
			if !ok {
				l.mu.Lock()
				if l.done == done {
					l.running = false
				}
				l.mu.Unlock()
				logging.Info().Msg("Position source closed, location watch ended")
				return
			}
			l.handleFix(ctx, f)
		}
	}
}

func (l *Loop) handleFix(ctx context.Context, f Fix) {
	if f.Time.IsZero() {
		f.Time = l.clock()
	}
	emit := l.trigger.Offer(f)
	metrics.RecordCaptureFix(emit)
	if !emit {
		return
	}

	ev := &models.LocationEvent{
		ID:        models.NewClientID(f.Time),
		SubjectID: l.cfg.SubjectID,
		DeviceID:  l.cfg.DeviceID,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Speed:     f.Speed,
		Heading:   f.Heading,
		Altitude:  f.Altitude,
		Timestamp: f.Time.UTC(),
	}

	// The enqueue is not tied to ctx: a fix already accepted by the trigger
	// is written even when Stop races with it.
	if _, err := l.queue.Enqueue(context.WithoutCancel(ctx), ev); err != nil {
		metrics.RecordCaptureError(string(models.KindLocation))
		logging.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to persist location fix")
		return
	}
	l.nudge()
}

// StatusInput is an operator status report. Status and LocationLabel are
// required; nothing else is checked.
type StatusInput struct {
	SubjectID     string                `json:"subject_id,omitempty"`
	Status        models.Status         `json:"status"`
	Checkpoint    models.CheckpointType `json:"checkpoint,omitempty"`
	LocationLabel string                `json:"location_label"`
	Latitude      *float64              `json:"latitude,omitempty"`
	Longitude     *float64              `json:"longitude,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

// CaptureStatus builds a StatusEvent from in and enqueues it. Transitions
// between statuses are not validated. A storage failure is returned and the
// report is not kept anywhere else.
func (l *Loop) CaptureStatus(ctx context.Context, in StatusInput) (*models.StatusEvent, error) {
	if strings.TrimSpace(string(in.Status)) == "" {
		return nil, fmt.Errorf("%w: status", ErrMissingField)
	}
	if strings.TrimSpace(in.LocationLabel) == "" {
		return nil, fmt.Errorf("%w: location_label", ErrMissingField)
	}

	subject := in.SubjectID
	if subject == "" {
		subject = l.cfg.SubjectID
	}
	now := l.clock()
	ev := &models.StatusEvent{
		ID:            models.NewClientID(now),
		SubjectID:     subject,
		DeviceID:      l.cfg.DeviceID,
		Status:        in.Status,
		Checkpoint:    in.Checkpoint,
		LocationLabel: strings.TrimSpace(in.LocationLabel),
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		Notes:         in.Notes,
		Timestamp:     now.UTC(),
	}

	if _, err := l.queue.Enqueue(ctx, ev); err != nil {
		metrics.RecordCaptureError(string(models.KindStatus))
		return nil, fmt.Errorf("persist status event: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("event_id", ev.ID).
		Str("status", string(ev.Status)).
		Str("location_label", ev.LocationLabel).
		Msg("Status captured")

	l.nudge()
	return ev, nil
}
