// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ashishjha-96/Markdoc/internal/logging"
)

const (
	dataFileSuffix = ".json"
	metaFileSuffix = ".meta.json"
)

// diskMeta is the metadata file: {doc_id}.meta.json.
type diskMeta struct {
	DocID         string    `json:"doc_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Version       int       `json:"version"`
}

// diskData is the data file: {doc_id}.json. Blobs are base64-encoded by the
// JSON codec.
type diskData struct {
	History [][]byte `json:"history"`
}

// DiskAdapter persists each document as a metadata file and a data file in a
// single directory, written via temp-file then atomic rename.
type DiskAdapter struct {
	dir string

	// mu serializes file operations so a Load racing a Persist observes
	// either the fully-old or fully-new file pair, never a torn one. The
	// two renames are individually atomic but not jointly; within the
	// process this lock closes that window.
	mu sync.Mutex
}

// NewDisk creates a disk adapter rooted at dir, creating it if needed.
func NewDisk(dir string) (*DiskAdapter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskAdapter{dir: dir}, nil
}

func (a *DiskAdapter) dataPath(docID string) string {
	return filepath.Join(a.dir, docID+dataFileSuffix)
}

func (a *DiskAdapter) metaPath(docID string) string {
	return filepath.Join(a.dir, docID+metaFileSuffix)
}

// Load reads both files for the document. A missing file is ErrNotFound; a
// file that exists but fails to parse is an error, never a partial payload.
func (a *DiskAdapter) Load(_ context.Context, docID string) (*Payload, error) {
	if err := ValidateDocID(docID); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	metaRaw, err := os.ReadFile(a.metaPath(docID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	dataRaw, err := os.ReadFile(a.dataPath(docID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var meta diskMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata file: %w", err)
	}
	if meta.DocID != docID {
		return nil, fmt.Errorf("metadata doc_id %q does not match %q", meta.DocID, docID)
	}

	var data diskData
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return nil, fmt.Errorf("parse data file: %w", err)
	}
	if data.History == nil {
		data.History = [][]byte{}
	}

	return &Payload{
		DocID:         meta.DocID,
		CreatedAt:     meta.CreatedAt,
		LastUpdatedAt: meta.LastUpdatedAt,
		History:       data.History,
		Version:       meta.Version,
	}, nil
}

// Persist writes both files to temp names, then renames them into place.
// On any failure partway through, the temp files are removed and the
// previously persisted pair stays intact.
func (a *DiskAdapter) Persist(_ context.Context, payload *Payload) error {
	if err := ValidateDocID(payload.DocID); err != nil {
		return err
	}

	history := payload.History
	if history == nil {
		history = [][]byte{}
	}
	dataRaw, err := json.Marshal(diskData{History: history})
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	metaRaw, err := json.Marshal(diskMeta{
		DocID:         payload.DocID,
		CreatedAt:     payload.CreatedAt,
		LastUpdatedAt: payload.LastUpdatedAt,
		Version:       payload.Version,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	suffix := ".tmp-" + uuid.New().String()
	dataTmp := a.dataPath(payload.DocID) + suffix
	metaTmp := a.metaPath(payload.DocID) + suffix

	cleanup := func() {
		_ = os.Remove(dataTmp)
		_ = os.Remove(metaTmp)
	}

	if err := os.WriteFile(dataTmp, dataRaw, 0o640); err != nil {
		cleanup()
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := os.WriteFile(metaTmp, metaRaw, 0o640); err != nil {
		cleanup()
		return fmt.Errorf("write temp metadata file: %w", err)
	}

	if err := os.Rename(dataTmp, a.dataPath(payload.DocID)); err != nil {
		cleanup()
		return fmt.Errorf("rename data file: %w", err)
	}
	if err := os.Rename(metaTmp, a.metaPath(payload.DocID)); err != nil {
		cleanup()
		return fmt.Errorf("rename metadata file: %w", err)
	}

	return nil
}

// Delete removes both files. A missing document deletes cleanly.
func (a *DiskAdapter) Delete(_ context.Context, docID string) error {
	if err := ValidateDocID(docID); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(a.dataPath(docID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove data file: %w", err)
	}
	if err := os.Remove(a.metaPath(docID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata file: %w", err)
	}
	return nil
}

// ListStale scans the metadata files and collects ids whose last update is
// at or before the cutoff. Unreadable or unparseable metadata files are
// skipped, not fatal to the scan.
func (a *DiskAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("scan storage dir: %w", err)
	}

	stale := []string{}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, metaFileSuffix) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(a.dir, name))
		if err != nil {
			logging.Warn().Err(err).Str("file", name).Msg("skipping unreadable metadata file")
			continue
		}
		var meta diskMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			logging.Warn().Err(err).Str("file", name).Msg("skipping unparseable metadata file")
			continue
		}
		if meta.DocID == "" {
			continue
		}
		if !meta.LastUpdatedAt.After(cutoff) {
			stale = append(stale, meta.DocID)
		}
	}

	return stale, nil
}

// Close is a no-op; the adapter holds no open handles between calls.
func (a *DiskAdapter) Close() error {
	return nil
}
