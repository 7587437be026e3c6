// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package storage

import (
	"context"
	"time"
)

// NoopAdapter is the adapter used when persistence is disabled. Documents
// exist only in actor memory and vanish when their actor terminates.
type NoopAdapter struct{}

// NewNoop returns the disabled-persistence adapter.
func NewNoop() *NoopAdapter {
	return &NoopAdapter{}
}

// Load always reports the document as not persisted.
func (a *NoopAdapter) Load(_ context.Context, _ string) (*Payload, error) {
	return nil, ErrNotFound
}

// Persist accepts and discards the payload.
func (a *NoopAdapter) Persist(_ context.Context, _ *Payload) error {
	return nil
}

// Delete succeeds without doing anything.
func (a *NoopAdapter) Delete(_ context.Context, _ string) error {
	return nil
}

// ListStale never reports stale documents.
func (a *NoopAdapter) ListStale(_ context.Context, _ time.Time) ([]string, error) {
	return []string{}, nil
}

// Close is a no-op.
func (a *NoopAdapter) Close() error {
	return nil
}
