// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package sweeper deletes persisted documents that have not been updated
// within the retention window.
//
// The sweeper runs as a Suture service. Each cycle asks the storage
// adapter for stale document ids, skips any id with a live actor (an
// active document is never stale, whatever its persisted timestamp says),
// and deletes the rest. Individual delete failures are logged and counted
// but never abort the cycle; a failed listing aborts only that cycle.
package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/document"
	"github.com/ashishjha-96/Markdoc/internal/logging"
	"github.com/ashishjha-96/Markdoc/internal/metrics"
	"github.com/ashishjha-96/Markdoc/internal/storage"
)

// Sweeper periodically removes stale persisted documents.
type Sweeper struct {
	store    storage.Adapter
	registry *document.Registry
	cfg      config.RetentionConfig
	log      zerolog.Logger
}

// New creates a sweeper over the given adapter and registry.
func New(store storage.Adapter, registry *document.Registry, cfg config.RetentionConfig) *Sweeper {
	return &Sweeper{
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      logging.With().Str("component", "sweeper").Logger(),
	}
}

// String names the service in supervisor logs.
func (s *Sweeper) String() string { return "retention-sweeper" }

// Serve implements suture.Service and runs sweep cycles until ctx is
// canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	s.log.Info().
		Dur("window", s.cfg.Window).
		Dur("interval", s.cfg.SweepInterval).
		Msg("retention sweeper started")

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep cycle.
func (s *Sweeper) RunOnce(ctx context.Context) {
	log := s.log.With().Str("sweep_id", uuid.NewString()).Logger()
	cutoff := time.Now().UTC().Add(-s.cfg.Window)

	ids, err := s.store.ListStale(ctx, cutoff)
	if err != nil {
		metrics.SweepErrors.Inc()
		log.Error().Err(err).Time("cutoff", cutoff).Msg("stale listing failed, cycle aborted")
		return
	}
	metrics.SweepCycles.Inc()

	var deleted, skipped, failed int
	for _, id := range ids {
		if _, live := s.registry.Lookup(id); live {
			skipped++
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil {
			metrics.SweepErrors.Inc()
			failed++
			log.Warn().Err(err).Str("doc_id", id).Msg("delete failed")
			continue
		}
		metrics.SweepDeletes.Inc()
		deleted++
	}

	log.Info().
		Time("cutoff", cutoff).
		Int("stale", len(ids)).
		Int("deleted", deleted).
		Int("skipped_live", skipped).
		Int("failed", failed).
		Msg("sweep cycle complete")
}
