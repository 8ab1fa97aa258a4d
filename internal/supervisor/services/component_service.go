// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

// StartStopper is a component with a background loop started by Start and
// stopped, synchronously, by Stop. The sync engine, connectivity monitor,
// capture loop and queue trimmer all have this shape.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// ComponentService runs a StartStopper under a supervisor.
type ComponentService struct {
	component StartStopper
	name      string
}

// NewComponentService wraps c.
func NewComponentService(name string, c StartStopper) *ComponentService {
	return &ComponentService{component: c, name: name}
}

// Serve implements suture.Service. It starts the component, blocks until ctx
// is done, then stops it.
func (s *ComponentService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *ComponentService) String() string {
	return s.name
}

// Runner is a component whose Run blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// ContextService runs a Runner under a supervisor.
type ContextService struct {
	runner Runner
	name   string
}

// NewContextService wraps r.
func NewContextService(name string, r Runner) *ContextService {
	return &ContextService{runner: r, name: name}
}

// Serve implements suture.Service. A nil return before ctx is done is
// reported to suture as a normal stop, so the service is not restarted.
func (s *ContextService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if err == nil && ctx.Err() == nil {
		logging.Info().Str("service", s.name).Msg("Service finished")
		return suture.ErrDoNotRestart
	}
	return err
}

// String implements fmt.Stringer for suture logs.
func (s *ContextService) String() string {
	return s.name
}
