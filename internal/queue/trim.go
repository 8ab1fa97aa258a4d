// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Trimmer applies the retention policy periodically: it bounds each kind to
// its configured entry count, flushes synced status entries older than the
// retention window, and reclaims value log space.
type Trimmer struct {
	queue  *Queue
	config Config

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool

	// Stats
	lastRun     time.Time
	lastRemoved int
}

// NewTrimmer creates a retention loop for q.
func NewTrimmer(q *Queue) *Trimmer {
	return &Trimmer{
		queue:  q,
		config: q.Config(),
	}
}

// Start begins the background loop. Starting a running trimmer is a no-op.
func (t *Trimmer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run()

	logging.Info().Dur("interval", t.config.TrimInterval).Msg("Queue trimmer started")
	return nil
}

// Stop stops the loop and waits for it to exit.
func (t *Trimmer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.cancel()
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()
	logging.Info().Msg("Queue trimmer stopped")
}

// IsRunning returns whether the trimmer is active.
func (t *Trimmer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Trimmer) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.TrimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.RunNow(t.ctx)
		}
	}
}

// RunNow applies retention once and returns the number of entries removed.
// Errors are logged; a failed pass is retried on the next tick.
func (t *Trimmer) RunNow(ctx context.Context) int {
	start := time.Now()
	removed := 0

	for _, kind := range models.Kinds {
		n, err := t.queue.Trim(ctx, kind, t.config.maxEntries(kind))
		if err != nil {
			logging.Error().Err(err).Str("kind", string(kind)).Msg("Queue trim failed")
		}
		removed += n
	}

	if t.config.StatusRetention > 0 {
		n, err := t.queue.FlushSynced(ctx, models.KindStatus, t.config.StatusRetention)
		if err != nil {
			logging.Error().Err(err).Msg("Queue status flush failed")
		}
		removed += n
	}

	if err := t.queue.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Queue GC error")
	}

	t.mu.Lock()
	t.lastRun = time.Now()
	t.lastRemoved = removed
	t.mu.Unlock()

	if removed > 0 {
		logging.Info().
			Int("removed", removed).
			Dur("duration", time.Since(start)).
			Msg("Queue retention removed synced entries")
	}
	return removed
}

// TrimmerStats contains statistics about the last run.
type TrimmerStats struct {
	LastRun     time.Time
	LastRemoved int
}

// GetStats returns trimmer statistics.
func (t *Trimmer) GetStats() TrimmerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrimmerStats{LastRun: t.lastRun, LastRemoved: t.lastRemoved}
}
