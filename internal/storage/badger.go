// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key layout in BadgerDB:
//
//	doc:<id>                      payload JSON
//	stale:<padded-unix>/<id>      zero-byte staleness marker
//	marker-of:<id>                current marker key for the id
//
// The marker key embeds the last-update timestamp, zero-padded so that
// lexicographic iteration order equals chronological order. The staleness
// scan iterates the stale: prefix in order and stops at the first key past
// the cutoff.
const (
	prefixDoc      = "doc:"
	prefixStale    = "stale:"
	prefixMarkerOf = "marker-of:"
)

// BadgerAdapter persists payloads in an embedded BadgerDB, using sortable
// marker keys as the staleness index.
type BadgerAdapter struct {
	db *badger.DB
}

// NewBadger opens (or creates) a BadgerDB database at dir.
func NewBadger(dir string) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &BadgerAdapter{db: db}, nil
}

// NewBadgerInMemory opens an in-memory BadgerDB, for tests.
func NewBadgerInMemory() (*BadgerAdapter, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory BadgerDB: %w", err)
	}
	return &BadgerAdapter{db: db}, nil
}

func docKey(docID string) []byte {
	return []byte(prefixDoc + docID)
}

func markerOfKey(docID string) []byte {
	return []byte(prefixMarkerOf + docID)
}

func markerKey(ts time.Time, docID string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", prefixStale, ts.Unix(), docID))
}

// Load retrieves the payload stored under the document's content key.
func (a *BadgerAdapter) Load(_ context.Context, docID string) (*Payload, error) {
	var payload *Payload

	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(docID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}

		return item.Value(func(val []byte) error {
			var p Payload
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("parse document payload: %w", err)
			}
			if p.DocID != docID {
				return fmt.Errorf("payload doc_id %q does not match %q", p.DocID, docID)
			}
			if p.History == nil {
				p.History = [][]byte{}
			}
			payload = &p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Persist writes the payload and its staleness marker in one transaction,
// replacing the marker from the previous persist so each document has
// exactly one marker at any time.
func (a *BadgerAdapter) Persist(_ context.Context, payload *Payload) error {
	if err := ValidateDocID(payload.DocID); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	marker := markerKey(payload.LastUpdatedAt, payload.DocID)

	return a.db.Update(func(txn *badger.Txn) error {
		if err := a.dropMarkerLocked(txn, payload.DocID); err != nil {
			return err
		}
		if err := txn.Set(docKey(payload.DocID), raw); err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		if err := txn.Set(marker, nil); err != nil {
			return fmt.Errorf("set staleness marker: %w", err)
		}
		if err := txn.Set(markerOfKey(payload.DocID), marker); err != nil {
			return fmt.Errorf("set marker index: %w", err)
		}
		return nil
	})
}

// dropMarkerLocked removes the document's current marker, if any, inside an
// open write transaction.
func (a *BadgerAdapter) dropMarkerLocked(txn *badger.Txn, docID string) error {
	item, err := txn.Get(markerOfKey(docID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get marker index: %w", err)
	}

	var old []byte
	if err := item.Value(func(val []byte) error {
		old = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return fmt.Errorf("read marker index: %w", err)
	}

	if err := txn.Delete(old); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete stale marker: %w", err)
	}
	return nil
}

// Delete removes the payload, its indexed marker, and — defensively — any
// other marker key ending in /<docID> left behind by an earlier schema.
func (a *BadgerAdapter) Delete(_ context.Context, docID string) error {
	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(docKey(docID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete document: %w", err)
		}
		if err := a.dropMarkerLocked(txn, docID); err != nil {
			return err
		}
		if err := txn.Delete(markerOfKey(docID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete marker index: %w", err)
		}

		// Defensive sweep for orphaned markers of this id.
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		suffix := []byte("/" + docID)
		prefix := []byte(prefixStale)
		var orphans [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.HasSuffix(key, suffix) {
				orphans = append(orphans, key)
			}
		}
		it.Close()

		for _, key := range orphans {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete orphaned marker: %w", err)
			}
		}
		return nil
	})
}

// ListStale iterates the marker prefix in key order and collects document
// ids whose marker timestamp is at or before the cutoff. The iteration stops
// at the first marker past the cutoff, since markers sort chronologically.
func (a *BadgerAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	cutoffPart := fmt.Sprintf("%020d", cutoff.Unix())
	stale := []string{}

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixStale)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, prefixStale)
			tsPart, docID, ok := strings.Cut(rest, "/")
			if !ok || docID == "" {
				continue
			}
			if tsPart > cutoffPart {
				break
			}
			stale = append(stale, docID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// Close releases the BadgerDB handle.
func (a *BadgerAdapter) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
