// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockComponent is a test double for StartStopper.
type mockComponent struct {
	startErr   error
	startCount atomic.Int32
	stopCount  atomic.Int32
	started    chan struct{}
}

func newMockComponent() *mockComponent {
	return &mockComponent{started: make(chan struct{}, 4)}
}

func (m *mockComponent) Start(ctx context.Context) error {
	m.startCount.Add(1)
	if m.startErr != nil {
		return m.startErr
	}
	m.started <- struct{}{}
	return nil
}

func (m *mockComponent) Stop() { m.stopCount.Add(1) }

func TestComponentService_Interface(t *testing.T) {
	var _ suture.Service = (*ComponentService)(nil)
	var _ suture.Service = (*ContextService)(nil)
}

func TestComponentService_StartsAndStops(t *testing.T) {
	comp := newMockComponent()
	svc := NewComponentService("sync-engine", comp)
	if svc.String() != "sync-engine" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	waitStarted(t, comp.started)
	if comp.stopCount.Load() != 0 {
		t.Fatal("stopped before cancel")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if comp.stopCount.Load() != 1 {
		t.Errorf("Stop calls = %d", comp.stopCount.Load())
	}
}

func TestComponentService_StartError(t *testing.T) {
	comp := newMockComponent()
	comp.startErr = errors.New("queue closed")

	err := NewComponentService("trimmer", comp).Serve(context.Background())
	if !errors.Is(err, comp.startErr) {
		t.Errorf("Serve() = %v", err)
	}
	if comp.stopCount.Load() != 0 {
		t.Error("Stop called after failed Start")
	}
}

func TestComponentService_RestartedBySupervisor(t *testing.T) {
	comp := newMockComponent()
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 5,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewComponentService("capture-loop", comp))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)
	waitStarted(t, comp.started)
	cancel()
	<-errCh

	if comp.startCount.Load() != 1 || comp.stopCount.Load() != 1 {
		t.Errorf("start=%d stop=%d", comp.startCount.Load(), comp.stopCount.Load())
	}
}

func TestContextService(t *testing.T) {
	t.Run("returns ctx error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		svc := NewContextService("hub", RunnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
		cancel()
		if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	})

	t.Run("early nil return is not restarted", func(t *testing.T) {
		svc := NewContextService("console", RunnerFunc(func(context.Context) error { return nil }))
		if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve() = %v, want ErrDoNotRestart", err)
		}
	})

	t.Run("failure passes through", func(t *testing.T) {
		boom := errors.New("dial failed")
		svc := NewContextService("listener", RunnerFunc(func(context.Context) error { return boom }))
		if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
			t.Errorf("Serve() = %v", err)
		}
	})
}
