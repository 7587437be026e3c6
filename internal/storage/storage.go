// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package storage provides tiered persistence for document histories.
//
// A document is persisted as a Payload: its id, creation and last-update
// timestamps, the ordered list of opaque update blobs, and a schema version.
// Three adapters implement the contract:
//
//   - Noop: persistence disabled, documents are purely in-memory
//   - Disk: two JSON files per document, written via temp-file + atomic rename
//   - Badger: payload plus a sortable staleness-marker key in BadgerDB
//
// Adapters are safe for concurrent use across different document ids. Per id,
// the document actor is the only writer, so adapters need no per-document
// locking for correctness of a given document's data.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PayloadVersion is the current schema version written by all adapters.
const PayloadVersion = 1

// ErrNotFound is returned by Load when no document is persisted under the
// given id, or when the persisted state is structurally incomplete.
var ErrNotFound = errors.New("storage: document not found")

// ErrInvalidDocID is returned when a document id cannot serve as a
// persistence key for the adapter (e.g. contains a path separator on disk).
var ErrInvalidDocID = errors.New("storage: invalid document id")

// ValidateDocID rejects ids that cannot serve as a persistence key on any
// backend. The id is the key, so bad ids are rejected rather than silently
// rewritten. Ids ending in ".meta" are rejected because on disk the data
// file of "x.meta" would be the metadata file of "x".
func ValidateDocID(docID string) error {
	if docID == "" ||
		strings.ContainsAny(docID, "/\\\x00") ||
		docID == "." || docID == ".." ||
		strings.HasSuffix(docID, ".meta") {
		return fmt.Errorf("%w: %q", ErrInvalidDocID, docID)
	}
	return nil
}

// Payload is the persisted unit for one document.
type Payload struct {
	// DocID is the document's identity and the persistence key.
	DocID string `json:"doc_id"`

	// CreatedAt is set once at first persist and never changes.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdatedAt monotonically increases on every persisted mutation.
	LastUpdatedAt time.Time `json:"last_updated_at"`

	// History is the ordered sequence of opaque update blobs. Replaying it
	// through the client-side merge routine reconstructs the document.
	History [][]byte `json:"history"`

	// Version is a schema tag for forward compatibility.
	Version int `json:"version"`
}

// Clone returns a deep copy of the payload. Adapters that hold payloads in
// memory use it so callers cannot alias stored state.
func (p *Payload) Clone() *Payload {
	cp := *p
	cp.History = make([][]byte, len(p.History))
	for i, blob := range p.History {
		b := make([]byte, len(blob))
		copy(b, blob)
		cp.History[i] = b
	}
	return &cp
}

// Adapter is the persistence contract shared by all backends.
//
// Persist and Delete are idempotent. Load never returns a payload mixing
// state from two different writes.
type Adapter interface {
	// Load retrieves the payload for a document id.
	// Returns ErrNotFound when nothing (or nothing complete) is persisted.
	Load(ctx context.Context, docID string) (*Payload, error)

	// Persist durably stores the payload, replacing any previous state.
	Persist(ctx context.Context, payload *Payload) error

	// Delete removes all persisted state for a document id.
	// Deleting a missing document is not an error.
	Delete(ctx context.Context, docID string) error

	// ListStale returns ids of documents whose last update is at or before
	// the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)

	// Close releases any resources held by the adapter.
	Close() error
}
