// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Bounds for SYNC_DELIVERY_TIMEOUT.
const (
	MinDeliveryTimeout = time.Second
	MaxDeliveryTimeout = 60 * time.Second
)

// ValidateFor checks the shared sections plus those used by component.
func (c *Config) ValidateFor(component Component) error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSupervisor(); err != nil {
		return err
	}

	switch component {
	case ComponentServer:
		if err := c.validateServer(); err != nil {
			return err
		}
		if err := c.validateSecurity(); err != nil {
			return err
		}
		if err := c.validateDatabase(); err != nil {
			return err
		}
		return c.validateNATS()
	case ComponentAgent:
		if err := c.validateAgent(); err != nil {
			return err
		}
		if err := c.validateCapture(); err != nil {
			return err
		}
		if err := c.validateSync(); err != nil {
			return err
		}
		return c.validateQueue()
	case ComponentDashboard:
		return c.validateDashboard()
	case ComponentCtl:
		return nil
	default:
		return fmt.Errorf("unknown component %q", component)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must be positive")
	}
	if c.Supervisor.ShutdownTimeout <= 0 {
		return fmt.Errorf("SUPERVISOR_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_MODE=jwt")
		}
	case "none":
		if c.Server.Environment == "production" {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or none, got %q", c.Security.AuthMode)
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitReqs <= 0 || c.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT=true")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
		}
	case "memory":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb or memory, got %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME is required when NATS_ENABLED=true")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required for the embedded server")
		}
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED=false")
	}
	return nil
}

func (c *Config) validateAgent() error {
	if c.Agent.DeviceID == "" {
		return fmt.Errorf("AGENT_DEVICE_ID is required")
	}
	if c.Agent.SubjectID == "" {
		return fmt.Errorf("AGENT_SUBJECT_ID is required")
	}
	if err := validateHTTPURL(c.Agent.ServerURL, "AGENT_SERVER_URL"); err != nil {
		return err
	}
	if c.Agent.ControlAddr != "" {
		if _, _, err := net.SplitHostPort(c.Agent.ControlAddr); err != nil {
			return fmt.Errorf("AGENT_CONTROL_ADDR is invalid: %w", err)
		}
	}
	if c.Agent.RequestTimeout <= 0 {
		return fmt.Errorf("AGENT_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.MinInterval <= 0 {
		return fmt.Errorf("CAPTURE_MIN_INTERVAL must be positive")
	}
	if c.Capture.MinDistanceMeters <= 0 {
		return fmt.Errorf("CAPTURE_MIN_DISTANCE must be positive")
	}
	switch c.Capture.Source {
	case "none":
	case "replay":
		if c.Capture.TrackFile == "" {
			return fmt.Errorf("CAPTURE_TRACK_FILE is required when CAPTURE_SOURCE=replay")
		}
	default:
		return fmt.Errorf("CAPTURE_SOURCE must be replay or none, got %q", c.Capture.Source)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.Sync.DeliveryTimeout < MinDeliveryTimeout || c.Sync.DeliveryTimeout > MaxDeliveryTimeout {
		return fmt.Errorf("SYNC_DELIVERY_TIMEOUT must be between %v and %v, got %v",
			MinDeliveryTimeout, MaxDeliveryTimeout, c.Sync.DeliveryTimeout)
	}
	if c.Sync.ConnectivityProbeInterval <= 0 {
		return fmt.Errorf("SYNC_PROBE_INTERVAL must be positive")
	}
	if c.Sync.BreakerFailures == 0 {
		return fmt.Errorf("SYNC_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Path == "" {
		return fmt.Errorf("QUEUE_PATH is required")
	}
	if c.Queue.MaxLocationEntries <= 0 {
		return fmt.Errorf("QUEUE_MAX_LOCATION_ENTRIES must be positive")
	}
	if c.Queue.MaxStatusEntries < 0 {
		return fmt.Errorf("QUEUE_MAX_STATUS_ENTRIES must not be negative")
	}
	if c.Queue.TrimInterval <= 0 {
		return fmt.Errorf("QUEUE_TRIM_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if err := validateHTTPURL(c.Dashboard.ServerURL, "DASHBOARD_SERVER_URL"); err != nil {
		return err
	}
	if c.Dashboard.SubjectID == "" {
		return fmt.Errorf("DASHBOARD_SUBJECT_ID is required")
	}
	if c.Dashboard.PollInterval <= 0 {
		return fmt.Errorf("DASHBOARD_POLL_INTERVAL must be positive")
	}
	return nil
}

// validateHTTPURL accepts a bare http(s) base URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsed.Path)
	}
	return nil
}
