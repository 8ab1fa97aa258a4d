// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package agent assembles the device side: the durable queue, the capture
// loop, the sync engine with its breaker and connectivity monitor, the
// retention trimmer and the loopback control API.
package agent

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/capture"
	"github.com/awakeelkhan/pakload-sub003/internal/client"
	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor/services"
	tracksync "github.com/awakeelkhan/pakload-sub003/internal/sync"
)

// Agent owns every device component. Fields are exported for the binary
// and for tests; treat them as read-only after New.
type Agent struct {
	Queue   *queue.Queue
	Client  *client.Client
	Monitor *tracksync.ConnectivityMonitor
	Engine  *tracksync.Engine
	Loop    *capture.Loop
	Trimmer *queue.Trimmer

	controlAddr     string
	shutdownTimeout time.Duration
}

// SourceFromConfig returns the position source named by the capture
// section, or nil for "none".
func SourceFromConfig(c config.CaptureConfig) (capture.PositionSource, error) {
	switch c.Source {
	case "", "none":
		return nil, nil
	case "replay":
		if c.TrackFile == "" {
			return nil, errors.New("capture.track_file is required for the replay source")
		}
		return capture.NewReplaySource(c.TrackFile, c.ReplayInterval, true), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", c.Source)
	}
}

// New opens the queue and wires the components. source may be nil. The
// caller must Close the agent.
func New(cfg *config.Config, source capture.PositionSource) (*Agent, error) {
	qcfg := queue.FromAppConfig(cfg.Queue)
	q, err := queue.Open(&qcfg)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, q, source)
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg *config.Config, q *queue.Queue, source capture.PositionSource) (*Agent, error) {
	c, err := client.New(client.Options{
		BaseURL: cfg.Agent.ServerURL,
		Token:   cfg.Agent.Token,
		Timeout: cfg.Agent.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	syncCfg := tracksync.ConfigFromApp(cfg.Sync)
	breaker := tracksync.NewBreaker("sync-delivery", c, syncCfg.BreakerFailures, syncCfg.BreakerOpenTimeout)
	monitor := tracksync.NewConnectivityMonitor(c, cfg.Sync.ConnectivityProbeInterval, syncCfg.DeliveryTimeout)
	engine := tracksync.NewEngine(syncCfg, q, breaker, monitor)
	monitor.SetOnRegained(engine.Nudge)

	loop := capture.NewLoop(capture.Config{
		DeviceID:          cfg.Agent.DeviceID,
		SubjectID:         cfg.Agent.SubjectID,
		MinInterval:       cfg.Capture.MinInterval,
		MinDistanceMeters: cfg.Capture.MinDistanceMeters,
	}, source, q)
	loop.SetNudger(engine)

	return &Agent{
		Queue:           q,
		Client:          c,
		Monitor:         monitor,
		Engine:          engine,
		Loop:            loop,
		Trimmer:         queue.NewTrimmer(q),
		controlAddr:     cfg.Agent.ControlAddr,
		shutdownTimeout: cfg.Supervisor.ShutdownTimeout,
	}, nil
}

// ControlHandler returns the control API router.
func (a *Agent) ControlHandler() http.Handler {
	return NewControlRouter(ControlDeps{
		Capture: a.Loop,
		Sync:    a.Engine,
		Queue:   a.Queue,
		Conn:    a.Monitor,
	})
}

// Register adds the agent's services to tree: the trimmer to the data
// layer, capture, connectivity and sync to the messaging layer, and the
// control API to the api layer. The capture loop is only supervised when
// it has a position source; status reports work either way.
func (a *Agent) Register(tree *supervisor.SupervisorTree) {
	tree.AddDataService(services.NewComponentService("queue-trimmer", a.Trimmer))
	tree.AddMessagingService(services.NewComponentService("connectivity-monitor", a.Monitor))
	tree.AddMessagingService(services.NewComponentService("sync-engine", a.Engine))
	if a.Loop.HasSource() {
		tree.AddMessagingService(services.NewComponentService("capture-loop", a.Loop))
	} else {
		logging.Info().Msg("No position source configured, location watch disabled")
	}

	srv := &http.Server{
		Addr:              a.controlAddr,
		Handler:           a.ControlHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService("control-api", srv, a.shutdownTimeout))

	logging.Info().Str("control_addr", a.controlAddr).Msg("Agent services registered")
}

// Close closes the queue. Call it after the supervisor tree has stopped.
func (a *Agent) Close() error {
	return a.Queue.Close()
}
