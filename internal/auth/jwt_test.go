// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret: testSecret,
		JWTIssuer: "pakload",
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{"valid secret", &config.SecurityConfig{JWTSecret: testSecret, TokenTTL: time.Hour}, false},
		{"empty secret", &config.SecurityConfig{JWTSecret: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewJWTManager(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewJWTManager() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && m == nil {
				t.Error("NewJWTManager() returned nil manager")
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name, subject, role, device string
	}{
		{"driver with device", "driver-17", RoleDriver, "truck-17"},
		{"dispatcher", "ops-1", RoleDispatcher, ""},
		{"admin", "root", RoleAdmin, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.GenerateToken(tt.subject, tt.role, tt.device)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}
			claims, err := m.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.Subject != tt.subject || claims.Role != tt.role || claims.DeviceID != tt.device {
				t.Errorf("claims = %+v", claims)
			}
			if claims.Issuer != "pakload" {
				t.Errorf("issuer = %q", claims.Issuer)
			}
		})
	}
}

func TestGenerateToken_RejectsBadInput(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.GenerateToken("x", "superuser", ""); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("unknown role error = %v", err)
	}
	if _, err := m.GenerateToken("", RoleDriver, ""); err == nil {
		t.Error("empty subject should fail")
	}
}

func TestValidateToken_Failures(t *testing.T) {
	m := newTestManager(t)

	expired, err := m.GenerateTokenWithTTL("d", RoleDriver, "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 40), JWTIssuer: "pakload"})
	foreign, err := other.GenerateToken("d", RoleDriver, "")
	if err != nil {
		t.Fatal(err)
	}

	wrongIssuer, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, JWTIssuer: "elsewhere"})
	misissued, err := wrongIssuer.GenerateToken("d", RoleDriver, "")
	if err != nil {
		t.Fatal(err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"wrong issuer", misissued},
		{"alg none", unsigned},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() expected error")
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleDriver, RoleDispatcher, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("%s should be valid", r)
		}
	}
	if ValidRole("viewer") {
		t.Error("viewer is not a role here")
	}
}
