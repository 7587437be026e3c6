// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package config loads and validates Markdoc configuration from defaults,
// an optional YAML file, and environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"time"
)

// Storage backend names accepted by StorageConfig.Backend.
const (
	BackendNone   = "none"
	BackendDisk   = "disk"
	BackendBadger = "badger"
)

// Config is the root configuration for the Markdoc server.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Document  DocumentConfig  `koanf:"document"`
	Retention RetentionConfig `koanf:"retention"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StorageConfig selects the persistence backend and its location.
type StorageConfig struct {
	// Backend is one of "none", "disk" or "badger".
	// "none" keeps documents purely in memory.
	Backend string `koanf:"backend"`

	// DiskDir is the directory for the disk backend's per-document files.
	DiskDir string `koanf:"disk_dir"`

	// BadgerDir is the directory for the badger backend's database.
	BadgerDir string `koanf:"badger_dir"`
}

// DocumentConfig holds the document actor tunables.
type DocumentConfig struct {
	// FlushInterval is the fixed cadence at which a dirty document is
	// persisted regardless of activity.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// IdleFlushDelay is the debounce window after the last update before a
	// one-shot flush fires.
	IdleFlushDelay time.Duration `koanf:"idle_flush_delay"`

	// InactivityTimeout is how long a document may sit with zero subscribers
	// before its actor terminates.
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`

	// SnapshotThreshold is the number of updates accumulated before one
	// subscriber is asked to produce a compaction snapshot.
	SnapshotThreshold int `koanf:"snapshot_threshold"`

	// InboxSize is the buffer size of each actor's message inbox.
	InboxSize int `koanf:"inbox_size"`
}

// RetentionConfig drives the background sweep of stale persisted documents.
type RetentionConfig struct {
	// Window is how long a persisted document is kept after its last update
	// once no actor is live for it.
	Window time.Duration `koanf:"window"`

	// SweepInterval is the fixed cadence between sweep cycles.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// MetricsConfig controls the Prometheus endpoint and stats collector.
type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint.
	// Empty disables the endpoint.
	Addr string `koanf:"addr"`

	// CollectInterval is the cadence of the aggregate stats collector.
	CollectInterval time.Duration `koanf:"collect_interval"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   BackendNone,
			DiskDir:   "/data/markdoc/docs",
			BadgerDir: "/data/markdoc/badger",
		},
		Document: DocumentConfig{
			FlushInterval:     30 * time.Second,
			IdleFlushDelay:    300 * time.Second,
			InactivityTimeout: time.Hour,
			SnapshotThreshold: 100,
			InboxSize:         256,
		},
		Retention: RetentionConfig{
			Window:        168 * time.Hour,
			SweepInterval: time.Hour,
		},
		Metrics: MetricsConfig{
			Addr:            "",
			CollectInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would make the engine
// misbehave rather than merely perform badly.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStorage,
		c.validateDocument,
		c.validateRetention,
		c.validateMetrics,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendNone:
		return nil
	case BackendDisk:
		if c.Storage.DiskDir == "" {
			return fmt.Errorf("storage.disk_dir is required for the disk backend")
		}
		return nil
	case BackendBadger:
		if c.Storage.BadgerDir == "" {
			return fmt.Errorf("storage.badger_dir is required for the badger backend")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend must be one of none, disk, badger (got %q)", c.Storage.Backend)
	}
}

func (c *Config) validateDocument() error {
	if c.Document.FlushInterval <= 0 {
		return fmt.Errorf("document.flush_interval must be positive")
	}
	if c.Document.IdleFlushDelay <= 0 {
		return fmt.Errorf("document.idle_flush_delay must be positive")
	}
	if c.Document.InactivityTimeout <= 0 {
		return fmt.Errorf("document.inactivity_timeout must be positive")
	}
	if c.Document.SnapshotThreshold < 1 {
		return fmt.Errorf("document.snapshot_threshold must be at least 1")
	}
	if c.Document.InboxSize < 1 {
		return fmt.Errorf("document.inbox_size must be at least 1")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.CollectInterval <= 0 {
		return fmt.Errorf("metrics.collect_interval must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.Window <= 0 {
		return fmt.Errorf("retention.window must be positive")
	}
	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention.sweep_interval must be positive")
	}
	return nil
}
