// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashishjha-96/Markdoc/internal/logging"
)

// RegistrySampler exposes point-in-time registry totals. Implemented by
// the document registry; an interface here keeps the dependency pointing
// the right way, since actors record their own counters through this
// package.
type RegistrySampler interface {
	Totals(ctx context.Context) (documents, subscribers int)
}

// Collector periodically refreshes process-level gauges and logs registry
// totals. Runs as a Suture service in the telemetry layer.
type Collector struct {
	sampler  RegistrySampler
	interval time.Duration
	log      zerolog.Logger
}

// NewCollector creates a collector sampling at the given interval.
func NewCollector(sampler RegistrySampler, interval time.Duration) *Collector {
	return &Collector{
		sampler:  sampler,
		interval: interval,
		log:      logging.With().Str("component", "collector").Logger(),
	}
}

// String names the service in supervisor logs.
func (c *Collector) String() string { return "stats-collector" }

// Serve implements suture.Service.
func (c *Collector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			UpdateProcessMemory()
			docs, subs := c.sampler.Totals(ctx)
			c.log.Debug().
				Int("active_documents", docs).
				Int("connected_subscribers", subs).
				Msg("registry sample")
		}
	}
}
