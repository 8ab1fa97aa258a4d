// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Command dashboard shows one subject's projection in the terminal. It polls
// the server every DASHBOARD_POLL_INTERVAL and keeps showing the last good
// view, with its fetch time, while the server is unreachable. Type r and
// Enter to refresh, q to quit.
//
// With DASHBOARD_HINTS_ENABLED=true it also listens on the server's
// websocket and refreshes early when the subject changes.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/awakeelkhan/pakload-sub003/internal/client"
	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/dashboard"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor/services"
	ws "github.com/awakeelkhan/pakload-sub003/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Dashboard failed")
	}
}

func run() error {
	cfg, err := config.Load(config.ComponentDashboard)
	if err != nil {
		return err
	}
	// The console owns stdout, so logs go to stderr.
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    "console",
		Timestamp: true,
		Output:    os.Stderr,
	})

	c, err := client.New(client.Options{
		BaseURL: cfg.Dashboard.ServerURL,
		Token:   cfg.Dashboard.Token,
	})
	if err != nil {
		return err
	}
	poller, err := dashboard.NewPoller(dashboard.ConfigFromApp(cfg.Dashboard), c)
	if err != nil {
		return err
	}
	console := dashboard.NewConsole(poller, os.Stdin, os.Stdout, true)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(),
		supervisor.TreeConfigFromApp("pakload-dashboard", cfg.Supervisor),
	)
	if err != nil {
		return err
	}
	tree.AddDataService(services.NewContextService("dashboard-poller", services.RunnerFunc(poller.Serve)))
	if cfg.Dashboard.HintsEnabled {
		listener, err := ws.NewListener(cfg.Dashboard.ServerURL, cfg.Dashboard.Token, cfg.Dashboard.SubjectID, poller.OnHint)
		if err != nil {
			return err
		}
		tree.AddMessagingService(services.NewContextService("hint-listener", listener))
	}
	tree.AddAPIService(services.NewContextService("dashboard-console", services.RunnerFunc(console.Serve)))

	go func() {
		select {
		case <-console.Quit():
			cancel()
		case <-ctx.Done():
		}
	}()

	err = <-tree.ServeBackground(ctx)
	supervisor.LogUnstopped(tree)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
