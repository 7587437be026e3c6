// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package storage

import (
	"fmt"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/logging"
)

// Open resolves the configured backend to an adapter.
func Open(cfg config.StorageConfig) (Adapter, error) {
	switch cfg.Backend {
	case config.BackendNone:
		logging.Info().Msg("persistence disabled, documents are in-memory only")
		return NewNoop(), nil

	case config.BackendDisk:
		adapter, err := NewDisk(cfg.DiskDir)
		if err != nil {
			return nil, fmt.Errorf("open disk storage: %w", err)
		}
		logging.Info().Str("dir", cfg.DiskDir).Msg("disk storage opened")
		return adapter, nil

	case config.BackendBadger:
		adapter, err := NewBadger(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("open badger storage: %w", err)
		}
		logging.Info().Str("dir", cfg.BadgerDir).Msg("badger storage opened")
		return adapter, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
