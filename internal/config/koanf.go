// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pakload/config.yaml",
	"/etc/pakload/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Component names the binary whose sections are validated.
type Component string

const (
	ComponentServer    Component = "server"
	ComponentAgent     Component = "agent"
	ComponentDashboard Component = "dashboard"
	ComponentCtl       Component = "ctl"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
			MaxBodyBytes:    1 << 20,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTIssuer:       "pakload",
			TokenTTL:        30 * 24 * time.Hour,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/pakload-tracking.duckdb",
			MaxMemory: "512MB",
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "/data/nats",
			MaxMemory:      64 << 20,
			MaxStore:       1 << 30,
			StreamName:     "TRACKING",
			MaxReconnects:  -1,
			TrackMsgID:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Agent: AgentConfig{
			ServerURL:      "http://127.0.0.1:8080",
			ControlAddr:    "127.0.0.1:8765",
			RequestTimeout: 15 * time.Second,
		},
		Capture: CaptureConfig{
			MinInterval:       30 * time.Second,
			MinDistanceMeters: 100,
			Source:            "none",
			ReplayInterval:    time.Second,
		},
		Sync: SyncConfig{
			Interval:                  60 * time.Second,
			DeliveryTimeout:           10 * time.Second,
			ConnectivityProbeInterval: 15 * time.Second,
			ManualSyncMinGap:          2 * time.Second,
			BreakerFailures:           5,
			BreakerOpenTimeout:        30 * time.Second,
		},
		Queue: QueueConfig{
			Path:               "/data/queue",
			MaxLocationEntries: 500,
			MaxStatusEntries:   0,
			StatusRetention:    24 * time.Hour,
			TrimInterval:       5 * time.Minute,
			SyncWrites:         true,
			MemTableSize:       16 << 20,
			ValueLogFileSize:   64 << 20,
		},
		Dashboard: DashboardConfig{
			ServerURL:    "http://127.0.0.1:8080",
			PollInterval: 30 * time.Second,
		},
	}
}

// Default returns the built-in defaults without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration through all layers and validates the sections
// used by component.
func Load(component Component) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.ValidateFor(component); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are accepted as comma-separated strings from env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",
	"max_body_bytes":        "server.max_body_bytes",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.jwt_issuer",
	"token_ttl":           "security.token_ttl",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"casbin_model_path":   "security.casbin.model_path",
	"casbin_policy_path":  "security.casbin.policy_path",

	"database_driver":   "database.driver",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_store_dir":      "nats.store_dir",
	"nats_max_memory":     "nats.max_memory",
	"nats_max_store":      "nats.max_store",
	"nats_stream_name":    "nats.stream_name",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_track_msg_id":   "nats.track_msg_id",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"agent_device_id":       "agent.device_id",
	"agent_subject_id":      "agent.subject_id",
	"agent_server_url":      "agent.server_url",
	"agent_token":           "agent.token",
	"agent_control_addr":    "agent.control_addr",
	"agent_request_timeout": "agent.request_timeout",

	"capture_min_interval":    "capture.min_interval",
	"capture_min_distance":    "capture.min_distance_meters",
	"capture_source":          "capture.source",
	"capture_track_file":      "capture.track_file",
	"capture_replay_interval": "capture.replay_interval",

	"sync_interval":             "sync.interval",
	"sync_delivery_timeout":     "sync.delivery_timeout",
	"sync_probe_interval":       "sync.connectivity_probe_interval",
	"sync_manual_min_gap":       "sync.manual_sync_min_gap",
	"sync_breaker_failures":     "sync.breaker_failures",
	"sync_breaker_open_timeout": "sync.breaker_open_timeout",

	"queue_path":                 "queue.path",
	"queue_max_location_entries": "queue.max_location_entries",
	"queue_max_status_entries":   "queue.max_status_entries",
	"queue_status_retention":     "queue.status_retention",
	"queue_trim_interval":        "queue.trim_interval",
	"queue_sync_writes":          "queue.sync_writes",

	"dashboard_server_url":    "dashboard.server_url",
	"dashboard_token":         "dashboard.token",
	"dashboard_subject_id":    "dashboard.subject_id",
	"dashboard_poll_interval": "dashboard.poll_interval",
	"dashboard_hints":         "dashboard.hints_enabled",
}

// envTransformFunc maps an environment variable to its koanf path, or ""
// to skip it.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
