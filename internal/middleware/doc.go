// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
Package middleware provides chi-compatible infrastructure middleware shared
by the server API and the agent control API.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request counts, durations and in-flight gauge,
    labelled by chi route pattern
  - AccessLog: one structured log line per request; slow requests at warn

All wrappers use chi's WrapResponseWriter so websocket upgrades (which need
http.Hijacker) pass through them.

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(time.Second))
*/
package middleware
