// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package metrics

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashishjha-96/Markdoc/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// Counters are process-global, so tests assert deltas rather than
// absolute values.
func TestRecordFlushOutcomes(t *testing.T) {
	okBefore := testutil.ToFloat64(FlushTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(FlushTotal.WithLabelValues("error"))

	RecordFlush(nil, 5*time.Millisecond)
	RecordFlush(errors.New("disk full"), 5*time.Millisecond)
	RecordFlush(nil, time.Millisecond)

	if got := testutil.ToFloat64(FlushTotal.WithLabelValues("ok")) - okBefore; got != 2 {
		t.Errorf("ok flush delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(FlushTotal.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("error flush delta = %v, want 1", got)
	}
}

func TestUpdateProcessMemory(t *testing.T) {
	UpdateProcessMemory()
	if got := testutil.ToFloat64(ProcessMemoryBytes); got <= 0 {
		t.Errorf("process memory gauge = %v, want > 0", got)
	}
}

type fakeSampler struct {
	calls atomic.Int64
}

func (f *fakeSampler) Totals(context.Context) (int, int) {
	f.calls.Add(1)
	return 3, 7
}

func TestCollectorSamplesOnInterval(t *testing.T) {
	sampler := &fakeSampler{}
	c := NewCollector(sampler, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sampler.calls.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop on context cancel")
	}

	if sampler.calls.Load() < 2 {
		t.Errorf("sampler called %d times, want at least 2", sampler.calls.Load())
	}
}
