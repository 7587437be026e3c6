// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package sweeper

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/document"
	"github.com/ashishjha-96/Markdoc/internal/logging"
	"github.com/ashishjha-96/Markdoc/internal/storage"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func retentionCfg() config.RetentionConfig {
	return config.RetentionConfig{
		Window:        time.Hour,
		SweepInterval: time.Hour,
	}
}

func docCfg() config.DocumentConfig {
	return config.DocumentConfig{
		FlushInterval:     time.Hour,
		IdleFlushDelay:    time.Hour,
		InactivityTimeout: time.Hour,
		SnapshotThreshold: 100,
		InboxSize:         16,
	}
}

func seed(t *testing.T, adapter storage.Adapter, id string, lastUpdated time.Time) {
	t.Helper()
	err := adapter.Persist(context.Background(), &storage.Payload{
		DocID:         id,
		CreatedAt:     lastUpdated,
		LastUpdatedAt: lastUpdated,
		History:       [][]byte{[]byte("blob")},
		Version:       storage.PayloadVersion,
	})
	if err != nil {
		t.Fatalf("Persist(%q): %v", id, err)
	}
}

func TestSweepDeletesStaleSkipsFreshAndLive(t *testing.T) {
	adapter, err := storage.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer adapter.Close()

	reg := document.NewRegistry(adapter, docCfg())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	}()

	now := time.Now().UTC().Truncate(time.Second)
	seed(t, adapter, "stale-dead", now.Add(-2*time.Hour))
	seed(t, adapter, "stale-live", now.Add(-2*time.Hour))
	seed(t, adapter, "fresh", now)

	// A live actor shields its document even when the persisted
	// timestamp is past the window.
	if _, err := reg.FindOrStart("stale-live"); err != nil {
		t.Fatalf("FindOrStart: %v", err)
	}

	New(adapter, reg, retentionCfg()).RunOnce(context.Background())

	if _, err := adapter.Load(context.Background(), "stale-dead"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stale-dead: Load = %v, want ErrNotFound", err)
	}
	if _, err := adapter.Load(context.Background(), "stale-live"); err != nil {
		t.Errorf("stale-live was deleted despite a live actor: %v", err)
	}
	if _, err := adapter.Load(context.Background(), "fresh"); err != nil {
		t.Errorf("fresh document was deleted: %v", err)
	}
}

func TestSweepCycleIsIdempotent(t *testing.T) {
	adapter, err := storage.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer adapter.Close()

	reg := document.NewRegistry(adapter, docCfg())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	}()

	seed(t, adapter, "old", time.Now().UTC().Add(-2*time.Hour).Truncate(time.Second))

	sw := New(adapter, reg, retentionCfg())
	sw.RunOnce(context.Background())
	sw.RunOnce(context.Background())

	if _, err := adapter.Load(context.Background(), "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load after double sweep = %v, want ErrNotFound", err)
	}
}

// failingLister wraps an adapter and fails every stale listing.
type failingLister struct {
	storage.Adapter
}

func (f *failingLister) ListStale(context.Context, time.Time) ([]string, error) {
	return nil, errors.New("listing unavailable")
}

func TestSweepAbortsCycleOnListingError(t *testing.T) {
	adapter, err := storage.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	defer adapter.Close()

	reg := document.NewRegistry(adapter, docCfg())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	}()

	seed(t, adapter, "old", time.Now().UTC().Add(-2*time.Hour).Truncate(time.Second))

	New(&failingLister{adapter}, reg, retentionCfg()).RunOnce(context.Background())

	// Nothing is deleted when the listing itself failed.
	if _, err := adapter.Load(context.Background(), "old"); err != nil {
		t.Errorf("Load after failed cycle = %v, want document intact", err)
	}
}
