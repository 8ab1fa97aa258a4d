// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/awakeelkhan/pakload-sub003/internal/api"
	"github.com/awakeelkhan/pakload-sub003/internal/auth"
	"github.com/awakeelkhan/pakload-sub003/internal/authz"
	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/database"
	"github.com/awakeelkhan/pakload-sub003/internal/eventbus"
	"github.com/awakeelkhan/pakload-sub003/internal/ingest"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor"
	"github.com/awakeelkhan/pakload-sub003/internal/supervisor/services"
	ws "github.com/awakeelkhan/pakload-sub003/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Server stopped gracefully")
}

//nolint:gocyclo // sequential setup steps
func run() error {
	cfg, err := config.Load(config.ComponentServer)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("version", version).
		Str("db_driver", cfg.Database.Driver).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting PakLoad server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		store ingest.EventStore
		db    *database.DB
		opts  = api.HandlerOptions{MaxBodyBytes: cfg.Server.MaxBodyBytes, Version: version}
	)
	switch cfg.Database.Driver {
	case "memory":
		logging.Warn().Msg("Using the in-memory event store; accepted events are lost on restart")
		store = ingest.NewMemoryStore()
	default:
		db, err = database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing database")
			}
		}()
		store = db
		opts.DB = db
	}

	tracker := ingest.NewService(store)
	if err := tracker.Rebuild(ctx); err != nil {
		return err
	}

	bus, err := eventbus.NewFromConfig(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()
	tracker.SetPublisher(bus)
	opts.Bus = bus

	hub := ws.NewHub(cfg.Security.CORSOrigins)
	tracker.SetNotifier(hub)

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == auth.AuthModeJWT {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none). Every request acts as admin.")
	}
	enforcer, err := authz.NewEnforcer(authz.ConfigFromApp(cfg.Security.Casbin))
	if err != nil {
		return err
	}
	defer enforcer.Close()

	handler := api.NewHandler(tracker, opts)
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromApp(&cfg.Security)),
		auth.NewMiddleware(jwtManager, cfg.Security.AuthMode),
		authz.NewMiddleware(enforcer),
		hub.ServeWS,
	)

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(),
		supervisor.TreeConfigFromApp("pakload-server", cfg.Supervisor),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddMessagingService(services.NewContextService("websocket-hub", services.RunnerFunc(hub.RunWithContext)))
	// Closing the bus also stops the embedded NATS server.
	tree.AddMessagingService(services.NewContextService("event-bus", services.RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
		return ctx.Err()
	})))
	tree.AddAPIService(services.NewHTTPServerService("http-server", server, cfg.Server.ShutdownTimeout))
	logging.Info().
		Str("addr", server.Addr).
		Int("subjects", len(tracker.Subjects())).
		Msg("Starting supervisor tree")

	err = <-tree.ServeBackground(ctx)
	supervisor.LogUnstopped(tree)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if db != nil {
		if err := db.Checkpoint(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("DuckDB checkpoint on shutdown failed")
		}
	}
	return nil
}
