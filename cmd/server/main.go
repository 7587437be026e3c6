// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package main is the entry point for the Markdoc server.
//
// Markdoc hosts collaborative documents as per-document actors. Each
// actor holds an append-only history of opaque CRDT update blobs, fans
// compaction work out to connected clients, and flushes to the
// configured storage backend on debounced and periodic timers.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables; highest priority wins)
//  2. Logging: zerolog, level and format from config
//  3. Storage: noop, disk, or BadgerDB adapter per STORAGE_BACKEND
//  4. Registry: document actor directory
//  5. Supervisor tree: retention sweeper, stats collector, metrics server
//
// # Configuration
//
// Everything is settable via environment variables, e.g.:
//
//	export STORAGE_BACKEND=disk
//	export STORAGE_DISK_DIR=/data/markdoc/docs
//	export DOC_SNAPSHOT_THRESHOLD=100
//	export RETENTION_WINDOW=168h
//	export METRICS_ADDR=:9090
//	export LOG_LEVEL=info
//	./markdoc
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor tree
// stops, then every live actor performs a final flush before the storage
// adapter closes.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/document"
	"github.com/ashishjha-96/Markdoc/internal/logging"
	"github.com/ashishjha-96/Markdoc/internal/metrics"
	"github.com/ashishjha-96/Markdoc/internal/storage"
	"github.com/ashishjha-96/Markdoc/internal/supervisor"
	"github.com/ashishjha-96/Markdoc/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend", cfg.Storage.Backend).
		Dur("flush_interval", cfg.Document.FlushInterval).
		Dur("inactivity_timeout", cfg.Document.InactivityTimeout).
		Int("snapshot_threshold", cfg.Document.SnapshotThreshold).
		Msg("Starting Markdoc")

	adapter, err := storage.Open(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage backend")
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage adapter")
		}
	}()

	registry := document.NewRegistry(adapter, cfg.Document)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Storage.Backend != config.BackendNone {
		tree.AddMaintenanceService(sweeper.New(adapter, registry, cfg.Retention))
	} else {
		logging.Info().Msg("Persistence disabled, retention sweeper not started")
	}
	tree.AddTelemetryService(metrics.NewCollector(registry, cfg.Metrics.CollectInterval))
	if cfg.Metrics.Addr != "" {
		tree.AddTelemetryService(metrics.NewServer(cfg.Metrics.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	treeErr := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-treeErr:
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
	}
	stop()

	// Final flushes for every live actor before the adapter closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Registry shutdown incomplete, some flushes may be lost")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Markdoc stopped")
}
