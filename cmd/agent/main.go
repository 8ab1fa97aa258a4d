// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Command agent runs on the tracking device. It captures positions and
// status reports into the durable queue and syncs them to the server
// whenever it is reachable.
//
// Operators record status reports and trigger syncs through the loopback
// control API (AGENT_CONTROL_ADDR, default 127.0.0.1:8765), usually with
// pakloadctl.
//
//	export AGENT_DEVICE_ID=truck-17 AGENT_SUBJECT_ID=load-4411
//	export AGENT_SERVER_URL=https://track.example.com AGENT_TOKEN=...
//	export QUEUE_PATH=/var/lib/pakload/queue
//	./agent
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/awakeelkhan/pakload-sub003/internal/agent"
	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Agent failed")
	}
	logging.Info().Msg("Agent stopped gracefully")
}

func run() error {
	cfg, err := config.Load(config.ComponentAgent)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	source, err := agent.SourceFromConfig(cfg.Capture)
	if err != nil {
		return err
	}
	a, err := agent.New(cfg, source)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing queue")
		}
	}()

	pending, err := a.Queue.PendingCount(context.Background())
	if err != nil {
		return err
	}
	logging.Info().
		Str("device_id", cfg.Agent.DeviceID).
		Str("subject_id", cfg.Agent.SubjectID).
		Str("server_url", cfg.Agent.ServerURL).
		Str("capture_source", cfg.Capture.Source).
		Str("pending", agent.StatusLine(pending)).
		Msg("Starting PakLoad agent")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(),
		supervisor.TreeConfigFromApp("pakload-agent", cfg.Supervisor),
	)
	if err != nil {
		return err
	}
	a.Register(tree)

	err = <-tree.ServeBackground(ctx)
	supervisor.LogUnstopped(tree)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
