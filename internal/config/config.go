// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package config loads configuration for every PakLoad binary.
//
// Loading order (koanf v2):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/pakload/config.yaml)
//  3. Environment variables, mapped explicitly in envTransformFunc
//
// The server, the device agent and the dashboard share one Config type but
// validate only the sections they use, see Load.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// It is immutable after Load and safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Agent      AgentConfig      `koanf:"agent"`
	Capture    CaptureConfig    `koanf:"capture"`
	Sync       SyncConfig       `koanf:"sync"`
	Queue      QueueConfig      `koanf:"queue"`
	Dashboard  DashboardConfig  `koanf:"dashboard"`
}

// ServerConfig configures the ingestion and read API HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development or production
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig configures bearer authentication and authorization.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt or none
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig points at optional policy files. Empty paths use the
// embedded model and policy.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// DatabaseConfig configures the server-side event log.
type DatabaseConfig struct {
	Driver    string `koanf:"driver"` // duckdb or memory
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// NATSConfig configures optional fan-out of accepted events.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	StreamName     string `koanf:"stream_name"`
	MaxReconnects  int    `koanf:"max_reconnects"`
	TrackMsgID     bool   `koanf:"track_msg_id"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes restart behaviour of the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// AgentConfig identifies the device and the server it reports to.
type AgentConfig struct {
	DeviceID       string        `koanf:"device_id"`
	SubjectID      string        `koanf:"subject_id"`
	ServerURL      string        `koanf:"server_url"`
	Token          string        `koanf:"token"`
	ControlAddr    string        `koanf:"control_addr"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// CaptureConfig controls position sampling.
type CaptureConfig struct {
	MinInterval       time.Duration `koanf:"min_interval"`
	MinDistanceMeters float64       `koanf:"min_distance_meters"`
	Source            string        `koanf:"source"` // replay or none
	TrackFile         string        `koanf:"track_file"`
	ReplayInterval    time.Duration `koanf:"replay_interval"`
}

// SyncConfig controls the device-side sync engine.
type SyncConfig struct {
	Interval                  time.Duration `koanf:"interval"`
	DeliveryTimeout           time.Duration `koanf:"delivery_timeout"`
	ConnectivityProbeInterval time.Duration `koanf:"connectivity_probe_interval"`
	ManualSyncMinGap          time.Duration `koanf:"manual_sync_min_gap"`
	BreakerFailures           uint32        `koanf:"breaker_failures"`
	BreakerOpenTimeout        time.Duration `koanf:"breaker_open_timeout"`
}

// QueueConfig controls the on-device durable queue.
type QueueConfig struct {
	Path               string        `koanf:"path"`
	MaxLocationEntries int           `koanf:"max_location_entries"`
	MaxStatusEntries   int           `koanf:"max_status_entries"` // 0 = unbounded
	StatusRetention    time.Duration `koanf:"status_retention"`
	TrimInterval       time.Duration `koanf:"trim_interval"`
	SyncWrites         bool          `koanf:"sync_writes"`
	MemTableSize       int64         `koanf:"memtable_size"`
	ValueLogFileSize   int64         `koanf:"vlog_file_size"`
}

// DashboardConfig controls the read-only dashboard.
type DashboardConfig struct {
	ServerURL    string        `koanf:"server_url"`
	Token        string        `koanf:"token"`
	SubjectID    string        `koanf:"subject_id"`
	PollInterval time.Duration `koanf:"poll_interval"`
	HintsEnabled bool          `koanf:"hints_enabled"`
}
