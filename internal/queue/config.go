// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package queue

import (
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Config holds queue storage and retention settings.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string

	// SyncWrites forces fsync after every write. Required for the
	// survives-power-loss guarantee; tests turn it off.
	SyncWrites bool

	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64

	// NumCompactors is the number of BadgerDB compaction workers.
	NumCompactors int

	// GCRatio is the ratio for value log garbage collection.
	GCRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration

	// MaxLocationEntries bounds the location collection (synced + unsynced).
	MaxLocationEntries int

	// MaxStatusEntries bounds the status collection; 0 means unbounded.
	MaxStatusEntries int

	// StatusRetention is how long synced status entries are kept.
	StatusRetention time.Duration

	// TrimInterval is the time between Trimmer runs.
	TrimInterval time.Duration
}

// DefaultConfig returns defaults that prefer durability over throughput.
func DefaultConfig() Config {
	return Config{
		Path:               "/var/lib/pakload/queue",
		SyncWrites:         true,
		MemTableSize:       16 * 1024 * 1024,
		ValueLogFileSize:   64 * 1024 * 1024,
		NumCompactors:      2,
		GCRatio:            0.5,
		CloseTimeout:       30 * time.Second,
		MaxLocationEntries: 500,
		MaxStatusEntries:   0,
		StatusRetention:    24 * time.Hour,
		TrimInterval:       5 * time.Minute,
	}
}

// FromAppConfig maps the application queue section onto a queue Config.
func FromAppConfig(qc config.QueueConfig) Config {
	cfg := DefaultConfig()
	cfg.Path = qc.Path
	cfg.SyncWrites = qc.SyncWrites
	if qc.MemTableSize > 0 {
		cfg.MemTableSize = qc.MemTableSize
	}
	if qc.ValueLogFileSize > 0 {
		cfg.ValueLogFileSize = qc.ValueLogFileSize
	}
	cfg.MaxLocationEntries = qc.MaxLocationEntries
	cfg.MaxStatusEntries = qc.MaxStatusEntries
	cfg.StatusRetention = qc.StatusRetention
	cfg.TrimInterval = qc.TrimInterval
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "queue path is required"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.MaxLocationEntries < 1 {
		return &ConfigError{Field: "MaxLocationEntries", Message: "must be at least 1"}
	}
	if c.MaxStatusEntries < 0 {
		return &ConfigError{Field: "MaxStatusEntries", Message: "must not be negative"}
	}
	if c.TrimInterval <= 0 {
		return &ConfigError{Field: "TrimInterval", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "queue config error: " + e.Field + ": " + e.Message
}

// maxEntries returns the retention bound for kind, 0 meaning unbounded.
func (c *Config) maxEntries(kind models.EventKind) int {
	if kind == models.KindLocation {
		return c.MaxLocationEntries
	}
	return c.MaxStatusEntries
}
