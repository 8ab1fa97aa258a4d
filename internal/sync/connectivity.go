// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
)

// Prober checks whether the server answers.
type Prober interface {
	Health(ctx context.Context) error
}

// ConnectivityMonitor probes the server periodically and reports the last
// result through Online. The state starts offline, so the first successful
// probe counts as regaining connectivity.
type ConnectivityMonitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration

	online     atomic.Bool
	onRegained func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConnectivityMonitor creates a monitor probing every interval. Each
// probe is bounded by timeout.
func NewConnectivityMonitor(prober Prober, interval, timeout time.Duration) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &ConnectivityMonitor{prober: prober, interval: interval, timeout: timeout}
}

// SetOnRegained registers fn to be called on every offline to online
// transition. The agent passes the sync engine's Nudge.
func (m *ConnectivityMonitor) SetOnRegained(fn func()) {
	m.mu.Lock()
	m.onRegained = fn
	m.mu.Unlock()
}

// Online implements Connectivity.
func (m *ConnectivityMonitor) Online() bool {
	return m.online.Load()
}

// Probe runs one health check and updates the state.
func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Health(probeCtx)
	cancel()

	up := err == nil
	was := m.online.Swap(up)
	metrics.SetConnectivity(up)

	switch {
	case up && !was:
		logging.Info().Msg("Server reachable, connectivity regained")
		m.mu.Lock()
		fn := m.onRegained
		m.mu.Unlock()
		if fn != nil {
			fn()
		}
	case !up && was:
		logging.Warn().Err(err).Msg("Server unreachable, working offline")
	}
	return up
}

// Start probes immediately and then every interval. Starting a running
// monitor is a no-op.
func (m *ConnectivityMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx, m.done)
	return nil
}

// Stop ends probing. The last known state is kept.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether probing is active.
func (m *ConnectivityMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *ConnectivityMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
