// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath and PolicyPath override the embedded files when set.
	ModelPath  string
	PolicyPath string

	// CacheTTL caches decisions; zero disables the cache.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig uses the embedded model and policy with a one
// minute decision cache.
func DefaultEnforcerConfig() EnforcerConfig {
	return EnforcerConfig{CacheTTL: time.Minute}
}

// ConfigFromApp maps the application configuration.
func ConfigFromApp(c config.CasbinConfig) EnforcerConfig {
	cfg := DefaultEnforcerConfig()
	cfg.ModelPath = c.ModelPath
	cfg.PolicyPath = c.PolicyPath
	return cfg
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer loads the model and policy.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	var m model.Model
	var err error
	if cfg.ModelPath != "" {
		if !fileExists(cfg.ModelPath) {
			return nil, fmt.Errorf("casbin model %s not found", cfg.ModelPath)
		}
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		if !fileExists(cfg.PolicyPath) {
			return nil, fmt.Errorf("casbin policy %s not found", cfg.PolicyPath)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	if cfg.CacheTTL > 0 {
		e.cache = newDecisionCache(cfg.CacheTTL)
	}
	return e, nil
}

// loadEmbeddedPolicy parses the policy CSV: "p, role, path, action" and
// "g, role, parent" lines; # starts a comment.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("invalid policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether role may perform action on path.
func (e *Enforcer) Enforce(role, path, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(role, path, action); ok {
			return allowed, nil
		}
	}
	allowed, err := e.enforcer.Enforce(role, path, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.set(role, path, action, allowed)
	}
	return allowed, nil
}

// RolesFor returns the roles role inherits, itself excluded.
func (e *Enforcer) RolesFor(role string) ([]string, error) {
	return e.enforcer.GetImplicitRolesForUser(role)
}

// Close stops the cache janitor.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
