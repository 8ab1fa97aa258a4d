// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
Package supervisor runs the long-lived parts of each binary under a suture v4
tree with restart, backoff and bounded shutdown.

The tree has three layers so they restart independently:

	root ("pakload-server" or "pakload-agent")
	├── data-layer       queue trimmer (agent)
	├── messaging-layer  websocket hub, event bus (server);
	│                    capture loop, connectivity monitor, sync engine (agent)
	└── api-layer        HTTP server (server), control API (agent)

Services are wrapped by package services. Each wrapper's Serve blocks until
its context is cancelled and returns ctx.Err(), or returns an error to ask
for a restart.

Supervisor events are logged through sutureslog on the zerolog-backed slog
logger from package logging:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromApp("pakload-server", cfg.Supervisor))
	tree.AddMessagingService(services.NewContextService("websocket-hub", services.RunnerFunc(hub.RunWithContext)))
	errCh := tree.ServeBackground(ctx)
	...
	supervisor.LogUnstopped(tree)
*/
package supervisor
