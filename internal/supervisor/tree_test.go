// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingService runs until its context is canceled and records that it
// ran.
type blockingService struct {
	name   string
	served atomic.Bool
}

func (s *blockingService) String() string { return s.name }

func (s *blockingService) Serve(ctx context.Context) error {
	s.served.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeAppliesDefaultsForZeroConfig(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %f, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %f, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeStartsAndStopsServices(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	maintenance := &blockingService{name: "maintenance-probe"}
	telemetry := &blockingService{name: "telemetry-probe"}
	tree.AddMaintenanceService(maintenance)
	tree.AddTelemetryService(telemetry)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if maintenance.served.Load() && telemetry.served.Load() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !maintenance.served.Load() || !telemetry.served.Load() {
		cancel()
		t.Fatal("services did not start under the tree")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled or nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}
