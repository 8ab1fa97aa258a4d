// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
engine.go - Sync Engine Lifecycle and Cycles

The engine drains the durable queue into the server. A cycle lists every
unsynced entry in queue order and delivers each one independently: a success
marks the entry synced, a failure records the attempt and the cycle moves on.

Triggers:
  - Nudge(): after every capture, non-blocking and coalescing
  - a periodic ticker while the engine runs
  - connectivity regained (ConnectivityMonitor calls Nudge)
  - SyncNow(): manual, synchronous, rate limited

Thread Safety:
  - cycleMu: one cycle at a time; triggers arriving mid-cycle fold into the
    single buffered nudge and produce one follow-up cycle
  - mu: protects lifecycle state and lastSync
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

// ErrSyncThrottled is returned by SyncNow when manual requests arrive faster
// than the configured minimum gap.
var ErrSyncThrottled = errors.New("sync: manual sync throttled")

// Trigger names the reason a cycle ran.
type Trigger string

const (
	TriggerNudge  Trigger = "nudge"
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
)

// Queue is the part of the durable queue the engine drains.
type Queue interface {
	ListAllUnsynced(ctx context.Context) ([]*queue.Entry, error)
	MarkSynced(ctx context.Context, kind models.EventKind, id string) error
	RecordAttempt(ctx context.Context, kind models.EventKind, id string, deliveryErr error) error
}

// Deliverer sends one entry to the server. A nil error means the server
// acknowledged it with a 2xx.
type Deliverer interface {
	Deliver(ctx context.Context, entry *queue.Entry) error
}

// Connectivity reports whether the server is believed reachable.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is a Connectivity that never skips a cycle.
type AlwaysOnline struct{}

// Online implements Connectivity.
func (AlwaysOnline) Online() bool { return true }

// Config controls cycle timing.
type Config struct {
	Interval           time.Duration
	DeliveryTimeout    time.Duration
	ManualSyncMinGap   time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           60 * time.Second,
		DeliveryTimeout:    10 * time.Second,
		ManualSyncMinGap:   2 * time.Second,
		BreakerFailures:    5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// ConfigFromApp converts the application sync settings.
func ConfigFromApp(c config.SyncConfig) Config {
	return Config{
		Interval:           c.Interval,
		DeliveryTimeout:    c.DeliveryTimeout,
		ManualSyncMinGap:   c.ManualSyncMinGap,
		BreakerFailures:    c.BreakerFailures,
		BreakerOpenTimeout: c.BreakerOpenTimeout,
	}
}

// CycleResult summarizes one sync cycle.
type CycleResult struct {
	Trigger   Trigger       `json:"trigger"`
	Attempted int           `json:"attempted"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Rejected  int           `json:"rejected"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Outcome classifies the cycle for metrics and logs.
func (r CycleResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Attempted == 0:
		return "empty"
	case r.Failed == 0 && r.Rejected == 0:
		return "complete"
	case r.Delivered == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Engine delivers queued events to the server.
type Engine struct {
	cfg       Config
	queue     Queue
	deliverer Deliverer
	conn      Connectivity
	limiter   *rate.Limiter

	nudge   chan struct{}
	cycleMu sync.Mutex

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastSync time.Time
	onCycle  func(CycleResult)
}

// NewEngine creates a sync engine. conn may be nil, in which case every
// cycle runs. The deliverer is used as given; wrap it in a Breaker to fail
// fast against a dead server.
func NewEngine(cfg Config, q Queue, d Deliverer, conn Connectivity) *Engine {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultConfig().DeliveryTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if conn == nil {
		conn = AlwaysOnline{}
	}
	limit := rate.Inf
	if cfg.ManualSyncMinGap > 0 {
		limit = rate.Every(cfg.ManualSyncMinGap)
	}
	return &Engine{
		cfg:       cfg,
		queue:     q,
		deliverer: d,
		conn:      conn,
		limiter:   rate.NewLimiter(limit, 1),
		nudge:     make(chan struct{}, 1),
	}
}

// SetOnCycle registers a callback invoked after every cycle, skipped ones
// included. The callback runs on the cycle goroutine.
func (e *Engine) SetOnCycle(fn func(CycleResult)) {
	e.mu.Lock()
	e.onCycle = fn
	e.mu.Unlock()
}

// Nudge requests a cycle. It never blocks; nudges arriving while one is
// already pending are merged into it.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// Start launches the trigger loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.loop(loopCtx, e.done)

	logging.Info().
		Dur("interval", e.cfg.Interval).
		Dur("delivery_timeout", e.cfg.DeliveryTimeout).
		Msg("Sync engine started")
	return nil
}

// Stop cancels the trigger loop and waits for it to exit. A delivery in
// flight runs to completion; no further entries are attempted.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	logging.Info().Msg("Sync engine stopped")
}

// IsRunning reports whether the trigger loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastSyncTime returns the end of the last cycle that delivered everything
// it attempted or had nothing to deliver. Zero if none has.
func (e *Engine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runLogged(ctx, TriggerTimer)
		case <-e.nudge:
			e.runLogged(ctx, TriggerNudge)
		}
	}
}

func (e *Engine) runLogged(ctx context.Context, trigger Trigger) {
	if _, err := e.RunCycle(ctx, trigger); err != nil {
		logging.Warn().Err(err).Str("trigger", string(trigger)).Msg("Sync cycle failed")
	}
}

// SyncNow runs a cycle immediately and returns its result. Calls closer
// together than the minimum gap return ErrSyncThrottled without running.
func (e *Engine) SyncNow(ctx context.Context) (CycleResult, error) {
	if !e.limiter.Allow() {
		return CycleResult{Trigger: TriggerManual}, ErrSyncThrottled
	}
	return e.RunCycle(ctx, TriggerManual)
}

// RunCycle performs one cycle. It blocks while another cycle is running.
// The returned error is set only when the queue itself could not be read;
// delivery failures are reported in the result.
func (e *Engine) RunCycle(ctx context.Context, trigger Trigger) (CycleResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	res := CycleResult{Trigger: trigger}

	if !e.conn.Online() {
		res.Skipped = true
		e.finish(ctx, &res, start)
		return res, nil
	}

	entries, err := e.queue.ListAllUnsynced(ctx)
	if err != nil {
		metrics.RecordSyncCycle("error", time.Since(start))
		return res, fmt.Errorf("list unsynced entries: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		e.deliverOne(ctx, entry, &res)
	}

	e.finish(ctx, &res, start)
	return res, nil
}

func (e *Engine) deliverOne(ctx context.Context, entry *queue.Entry, res *CycleResult) {
	kind := string(entry.Kind)
	// The delivery outlives cancellation of ctx so Stop does not cut a
	// request the server may already have applied.
	deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.DeliveryTimeout)
	err := e.deliverer.Deliver(deliveryCtx, entry)
	cancel()

	bookCtx := context.WithoutCancel(ctx)
	log := logging.Ctx(ctx).With().Str("kind", kind).Str("event_id", entry.ID).Logger()

	switch {
	case err == nil:
		if markErr := e.queue.MarkSynced(bookCtx, entry.Kind, entry.ID); markErr != nil {
			// The server has the event; redelivery is absorbed by its dedup.
			res.Failed++
			metrics.RecordDelivery(kind, "mark_failed")
			log.Error().Err(markErr).Msg("Delivered event could not be marked synced")
			return
		}
		res.Delivered++
		metrics.RecordDelivery(kind, "delivered")

	case IsShortCircuit(err):
		res.Failed++
		metrics.RecordDelivery(kind, "short_circuit")
		log.Debug().Err(err).Msg("Delivery skipped by open circuit")

	case queue.IsPermanent(err):
		res.Rejected++
		metrics.RecordDelivery(kind, "rejected")
		log.Warn().Err(err).Msg("Event rejected by server")
		e.recordAttempt(bookCtx, entry, err)

	default:
		res.Failed++
		metrics.RecordDelivery(kind, "failed")
		log.Debug().Err(err).Msg("Delivery failed, will retry")
		e.recordAttempt(bookCtx, entry, err)
	}
}

func (e *Engine) recordAttempt(ctx context.Context, entry *queue.Entry, deliveryErr error) {
	if err := e.queue.RecordAttempt(ctx, entry.Kind, entry.ID, deliveryErr); err != nil {
		logging.Warn().Err(err).Str("event_id", entry.ID).Msg("Failed to record delivery attempt")
	}
}

func (e *Engine) finish(ctx context.Context, res *CycleResult, start time.Time) {
	res.Duration = time.Since(start)
	outcome := res.Outcome()
	metrics.RecordSyncCycle(outcome, res.Duration)

	e.mu.Lock()
	if outcome == "complete" || outcome == "empty" {
		e.lastSync = time.Now()
	}
	onCycle := e.onCycle
	e.mu.Unlock()

	if res.Attempted > 0 {
		logging.Ctx(ctx).Info().
			Str("trigger", string(res.Trigger)).
			Str("outcome", outcome).
			Int("attempted", res.Attempted).
			Int("delivered", res.Delivered).
			Int("failed", res.Failed).
			Int("rejected", res.Rejected).
			Dur("duration", res.Duration).
			Msg("Sync cycle finished")
	}

	if onCycle != nil {
		onCycle(*res)
	}
}
