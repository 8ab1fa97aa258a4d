// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

// Breaker wraps a Deliverer with a circuit breaker so that a cycle against
// an unreachable server fails fast after a few consecutive errors instead of
// waiting out the delivery timeout for every queued entry.
//
// Permanent rejections count as successes for the breaker: the server is up
// and answering, it just refuses that one event.
//
// The breaker uses real time for its open timeout. Tests that need a closed
// breaker should use a high failure threshold.
type Breaker struct {
	next Deliverer
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

// NewBreaker wraps next. The circuit opens after failures consecutive
// transient errors and half-opens after openTimeout.
func NewBreaker(name string, next Deliverer, failures uint32, openTimeout time.Duration) *Breaker {
	if failures == 0 {
		failures = DefaultConfig().BreakerFailures
	}
	if openTimeout <= 0 {
		openTimeout = DefaultConfig().BreakerOpenTimeout
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= failures
			if trip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || queue.IsPermanent(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{next: next, cb: cb, name: name}
}

// Deliver implements Deliverer.
func (b *Breaker) Deliver(ctx context.Context, entry *queue.Entry) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Deliver(ctx, entry)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case IsShortCircuit(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return err
}

// State returns the breaker state as closed, half-open or open.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// IsShortCircuit reports whether err came from an open or saturated breaker
// rather than from an actual delivery.
func IsShortCircuit(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
