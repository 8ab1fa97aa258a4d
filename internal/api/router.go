// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/awakeelkhan/pakload-sub003/internal/api/respond"
	"github.com/awakeelkhan/pakload-sub003/internal/auth"
	"github.com/awakeelkhan/pakload-sub003/internal/authz"
	"github.com/awakeelkhan/pakload-sub003/internal/middleware"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Route paths.
const (
	PathLocationEvents = "/api/v1/tracking/location-events"
	PathStatusEvents   = "/api/v1/tracking/status-events"
	PathSubjects       = "/api/v1/tracking/subjects"
	PathProjection     = "/api/v1/tracking/subjects/{subjectID}/projection"
	PathWS             = "/api/v1/ws"
	PathHealth         = "/api/v1/health"
	PathMetrics        = "/metrics"
)

const slowRequestThreshold = 500 * time.Millisecond

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authn         *auth.Middleware
	authz         *authz.Middleware
	ws            http.HandlerFunc
}

// NewRouter creates a router. ws serves the hint websocket and may be nil.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authn *auth.Middleware, authzMW *authz.Middleware, ws http.HandlerFunc) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		authn:         authn,
		authz:         authzMW,
		ws:            ws,
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(router.chiMiddleware.CORS())
	r.Use(auth.SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(slowRequestThreshold))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.APIError(w, http.StatusNotFound, &models.APIError{Code: CodeNotFound, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.APIError(w, http.StatusMethodNotAllowed, &models.APIError{Code: CodeValidation, Message: "method not allowed"})
	})

	r.Get(PathHealth, router.handler.Health)
	r.Handle(PathMetrics, promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		if router.authn != nil {
			r.Use(router.authn.Authenticate)
		}
		if router.authz != nil {
			r.Use(router.authz.AuthorizeRequest)
		}

		// Compression applies to JSON only; the websocket route stays raw.
		r.With(chimiddleware.Compress(5, "application/json")).Group(func(r chi.Router) {
			r.Post(PathLocationEvents, router.handler.PostLocationEvent)
			r.Post(PathStatusEvents, router.handler.PostStatusEvent)
			r.Get(PathSubjects, router.handler.ListSubjects)
			r.Get(PathProjection, router.handler.GetProjection)
		})
		if router.ws != nil {
			r.Get(PathWS, router.ws)
		}
	})

	return r
}
