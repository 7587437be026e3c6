// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package document

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/logging"
	"github.com/ashishjha-96/Markdoc/internal/storage"
)

// Registry maps document ids to their live actors and guarantees at most
// one actor per id. Actors unregister themselves on termination, so a
// lookup after an idle cleanup respawns a fresh actor that rehydrates
// from storage.
type Registry struct {
	store storage.Adapter
	cfg   config.DocumentConfig
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewRegistry creates a registry whose actors run until Shutdown.
func NewRegistry(store storage.Adapter, cfg config.DocumentConfig) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:  store,
		cfg:    cfg,
		log:    logging.With().Str("component", "registry").Logger(),
		ctx:    ctx,
		cancel: cancel,
		actors: make(map[string]*Actor),
	}
}

// FindOrStart returns the live actor for docID, spawning one if none
// exists. The check and spawn happen under one lock, so concurrent calls
// for the same id converge on a single actor.
func (r *Registry) FindOrStart(docID string) (*Actor, error) {
	if err := storage.ValidateDocID(docID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[docID]; ok && a.Alive() {
		return a, nil
	}
	a := newActor(docID, r.store, r.cfg, r.remove)
	r.actors[docID] = a
	go a.run(r.ctx)
	r.log.Debug().Str("doc_id", docID).Msg("actor started")
	return a, nil
}

// remove is the actor's onTerminate hook. The identity check keeps a
// terminating actor from evicting its own replacement.
func (r *Registry) remove(a *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.actors[a.docID]; ok && cur == a {
		delete(r.actors, a.docID)
	}
}

// Lookup returns the live actor for docID without spawning one.
func (r *Registry) Lookup(docID string) (*Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[docID]
	if !ok || !a.Alive() {
		return nil, false
	}
	return a, true
}

// Count returns the number of registered actors.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// List returns all registered actors.
func (r *Registry) List() []*Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

// Totals samples actor and subscriber counts across the registry. Actors
// that terminate mid-sample are skipped.
func (r *Registry) Totals(ctx context.Context) (documents, subscribers int) {
	actors := r.List()
	for _, a := range actors {
		s, err := a.Stats(ctx)
		if err != nil {
			continue
		}
		documents++
		subscribers += s.Subscribers
	}
	return documents, subscribers
}

// Shutdown stops every actor and waits for their final flushes, bounded
// by ctx.
func (r *Registry) Shutdown(ctx context.Context) error {
	actors := r.List()
	r.log.Info().Int("actors", len(actors)).Msg("shutting down")
	r.cancel()
	for _, a := range actors {
		select {
		case <-a.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// WaitIdle blocks until the registry has no actors or ctx expires. Used
// by tests to observe cleanup without polling internals.
func (r *Registry) WaitIdle(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if r.Count() == 0 {
			return nil
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
