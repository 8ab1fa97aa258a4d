// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package authz

import (
	"net/http"

	"github.com/awakeelkhan/pakload-sub003/internal/auth"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
)

// Middleware enforces the role policy. It must run after
// auth.Middleware.Authenticate.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates the middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// AuthorizeRequest derives the action from the HTTP method and checks the
// caller's role against the request path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			auth.WriteError(w, http.StatusForbidden, "FORBIDDEN", "no authentication context")
			return
		}

		allowed, err := m.enforcer.Enforce(claims.Role, r.URL.Path, methodToAction(r.Method))
		if err != nil {
			metrics.RecordAuthzDecision(claims.Role, "error")
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			auth.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "authorization failed")
			return
		}
		if !allowed {
			metrics.RecordAuthzDecision(claims.Role, "denied")
			logging.Ctx(r.Context()).Info().
				Str("sub", claims.Subject).
				Str("role", claims.Role).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Request denied by policy")
			auth.WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}

		metrics.RecordAuthzDecision(claims.Role, "allowed")
		next.ServeHTTP(w, r)
	})
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
