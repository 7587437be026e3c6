// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package metrics provides Prometheus instrumentation for the document
// engine: actor population, subscriber counts, flush outcomes and the
// retention sweep.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Document actor metrics
	ActiveDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markdoc_active_documents",
			Help: "Current number of live document actors",
		},
	)

	ConnectedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markdoc_connected_subscribers",
			Help: "Total subscribers across all live document actors",
		},
	)

	UpdatesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_updates_received_total",
			Help: "Total update blobs appended to document histories",
		},
	)

	SnapshotRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_snapshot_requests_total",
			Help: "Total compaction requests sent to subscribers",
		},
	)

	SnapshotsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_snapshots_applied_total",
			Help: "Total compaction snapshots that replaced a history",
		},
	)

	// Persistence metrics
	FlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markdoc_flush_total",
			Help: "Total document flushes by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "markdoc_flush_duration_seconds",
			Help:    "Duration of document flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HydrationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markdoc_hydration_total",
			Help: "Total actor hydrations by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)

	// Retention sweep metrics
	SweepCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_sweep_cycles_total",
			Help: "Total retention sweep cycles completed",
		},
	)

	SweepDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_sweep_deletes_total",
			Help: "Total stale documents deleted by the retention sweep",
		},
	)

	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "markdoc_sweep_errors_total",
			Help: "Total retention sweep errors (listing or per-document delete)",
		},
	)

	// Process metrics
	ProcessMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markdoc_process_memory_bytes",
			Help: "Process heap memory currently allocated",
		},
	)
)

// RecordFlush records one flush outcome with its duration.
func RecordFlush(err error, elapsed time.Duration) {
	if err != nil {
		FlushTotal.WithLabelValues("error").Inc()
		return
	}
	FlushTotal.WithLabelValues("ok").Inc()
	FlushDuration.Observe(elapsed.Seconds())
}

// UpdateProcessMemory samples the runtime heap gauge.
func UpdateProcessMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ProcessMemoryBytes.Set(float64(ms.HeapAlloc))
}
