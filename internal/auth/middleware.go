// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

type contextKey string

// ClaimsContextKey holds *Claims in the request context.
const ClaimsContextKey contextKey = "claims"

// Auth modes.
const (
	AuthModeJWT  = "jwt"
	AuthModeNone = "none"
)

// anonymousClaims are injected when authentication is disabled.
func anonymousClaims() *Claims {
	c := &Claims{Role: RoleAdmin}
	c.Subject = "anonymous"
	return c
}

// Middleware authenticates requests.
type Middleware struct {
	jwtManager *JWTManager
	authMode   string
}

// NewMiddleware creates the middleware. jwtManager may be nil when authMode
// is none.
func NewMiddleware(jwtManager *JWTManager, authMode string) *Middleware {
	if authMode == "" {
		authMode = AuthModeJWT
	}
	return &Middleware{jwtManager: jwtManager, authMode: authMode}
}

// Authenticate requires a valid bearer token and stores its claims in the
// request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == AuthModeNone {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), anonymousClaims())))
			return
		}

		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pakload"`)
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		if m.jwtManager == nil {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token validation unavailable")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Token validation failed")
			w.Header().Set("WWW-Authenticate", `Bearer realm="pakload", error="invalid_token"`)
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errBadHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

var (
	errMissingToken = errors.New("missing bearer token")
	errBadHeader    = errors.New("invalid authorization header")
)

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}

// SecurityHeaders adds security headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		if r.Header.Get("X-Forwarded-Proto") == "https" || r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Debug().Err(err).Msg("failed to write error response")
	}
}
