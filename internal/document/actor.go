// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package document

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashishjha-96/Markdoc/internal/config"
	"github.com/ashishjha-96/Markdoc/internal/logging"
	"github.com/ashishjha-96/Markdoc/internal/metrics"
	"github.com/ashishjha-96/Markdoc/internal/storage"
)

// ErrStopped is returned by actor calls made after the actor terminated.
// Callers should go back through Registry.FindOrStart, which respawns the
// actor and rehydrates it from storage.
var ErrStopped = errors.New("document: actor stopped")

// Stats is a point-in-time sample of a single actor's state.
type Stats struct {
	DocID                string
	Subscribers          int
	HistoryLen           int
	UpdatesSinceSnapshot int
	Dirty                bool
	CreatedAt            time.Time
	LastUpdatedAt        time.Time
	LastFlushedAt        time.Time
}

// inbox messages, processed strictly in arrival order.
type (
	joinMsg       struct{ sub Subscriber }
	leaveMsg      struct{ sub Subscriber }
	addUpdateMsg  struct{ blob []byte }
	saveSnapMsg   struct{ blob []byte }
	getHistoryMsg struct{ reply chan [][]byte }
	flushMsg      struct{ reply chan error }
	statsMsg      struct{ reply chan Stats }
)

// Actor owns a single document. All fields below the inbox are touched
// only by the run goroutine.
type Actor struct {
	docID string
	store storage.Adapter
	cfg   config.DocumentConfig
	log   zerolog.Logger

	inbox chan any
	done  chan struct{}

	// onTerminate unregisters this actor; called exactly once, before
	// done is closed.
	onTerminate func(*Actor)

	history              [][]byte
	subs                 map[Subscriber]chan struct{}
	updatesSinceSnapshot int
	dirty                bool
	createdAt            time.Time
	lastUpdatedAt        time.Time
	lastFlushedAt        time.Time

	idleFlush   *time.Timer
	idleCleanup *time.Timer
}

func newActor(docID string, store storage.Adapter, cfg config.DocumentConfig, onTerminate func(*Actor)) *Actor {
	return &Actor{
		docID:       docID,
		store:       store,
		cfg:         cfg,
		log:         logging.With().Str("component", "document").Str("doc_id", docID).Logger(),
		inbox:       make(chan any, cfg.InboxSize),
		done:        make(chan struct{}),
		onTerminate: onTerminate,
		subs:        make(map[Subscriber]chan struct{}),
	}
}

// DocID returns the document id this actor owns.
func (a *Actor) DocID() string { return a.docID }

// Done is closed when the actor's goroutine has exited.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Alive reports whether the actor is still accepting messages.
func (a *Actor) Alive() bool {
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// send enqueues msg, blocking while the inbox is full. It fails only once
// the actor has terminated.
func (a *Actor) send(msg any) error {
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.inbox <- msg:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Join adds sub to the subscriber set and cancels any pending idle
// cleanup. Joining twice is a no-op.
func (a *Actor) Join(sub Subscriber) error {
	return a.send(joinMsg{sub})
}

// Leave removes sub from the subscriber set. Removing an unknown
// subscriber is a no-op.
func (a *Actor) Leave(sub Subscriber) error {
	return a.send(leaveMsg{sub})
}

// AddUpdate appends one opaque update blob to the document history.
func (a *Actor) AddUpdate(blob []byte) error {
	return a.send(addUpdateMsg{blob})
}

// SaveSnapshot replaces the entire history with a single client-merged
// snapshot blob and resets the compaction counter.
func (a *Actor) SaveSnapshot(blob []byte) error {
	return a.send(saveSnapMsg{blob})
}

// History returns the current ordered history. The call is serialized
// through the inbox, so it observes every update enqueued before it.
func (a *Actor) History(ctx context.Context) ([][]byte, error) {
	reply := make(chan [][]byte, 1)
	if err := a.send(getHistoryMsg{reply}); err != nil {
		return nil, err
	}
	select {
	case h := <-reply:
		return h, nil
	case <-a.done:
		// The reply may have landed just before termination.
		select {
		case h := <-reply:
			return h, nil
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush persists the document now if it has unflushed changes.
func (a *Actor) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.send(flushMsg{reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-a.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats samples the actor's current state.
func (a *Actor) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := a.send(statsMsg{reply}); err != nil {
		return Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-a.done:
		select {
		case s := <-reply:
			return s, nil
		default:
			return Stats{}, ErrStopped
		}
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// run is the actor's single-writer loop. ctx canceling triggers a final
// flush and exit; the registry uses this for graceful shutdown.
func (a *Actor) run(ctx context.Context) {
	defer func() {
		a.stopTimers()
		if a.onTerminate != nil {
			a.onTerminate(a)
		}
		close(a.done)
		metrics.ActiveDocuments.Dec()
	}()
	metrics.ActiveDocuments.Inc()

	a.hydrate(ctx)

	flushTick := time.NewTicker(a.cfg.FlushInterval)
	defer flushTick.Stop()
	inactivityTick := time.NewTicker(a.cfg.InactivityTimeout)
	defer inactivityTick.Stop()

	for {
		select {
		case msg := <-a.inbox:
			a.handle(msg)
		case <-flushTick.C:
			a.flushIfDirty("periodic")
		case <-inactivityTick.C:
			if len(a.subs) > 0 {
				continue
			}
			if a.abortTermination() {
				continue
			}
			a.teardown()
			if a.abortTermination() {
				continue
			}
			a.log.Info().Msg("no subscribers at inactivity check, terminating")
			return
		case <-timerC(a.idleFlush):
			a.idleFlush = nil
			a.flushIfDirty("idle")
		case <-timerC(a.idleCleanup):
			a.idleCleanup = nil
			if a.abortTermination() {
				continue
			}
			a.teardown()
			if a.abortTermination() {
				continue
			}
			a.log.Info().Msg("idle cleanup fired, terminating")
			return
		case <-ctx.Done():
			a.drainInbox()
			a.teardown()
			return
		}
	}
}

// drainInbox processes every message already accepted into the inbox
// without blocking. Termination paths call it so a send that returned
// nil is never silently discarded.
func (a *Actor) drainInbox() {
	for {
		select {
		case msg := <-a.inbox:
			a.handle(msg)
		default:
			return
		}
	}
}

// abortTermination drains the inbox and reports whether the actor must
// stay alive: a drained join repopulated the subscriber set, or a
// drained leave armed a fresh cleanup timer that deserves its full
// duration.
func (a *Actor) abortTermination() bool {
	a.drainInbox()
	return len(a.subs) > 0 || a.idleCleanup != nil
}

// timerC exposes a timer's channel, or a nil channel (never ready) when
// the timer is not armed.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (a *Actor) handle(msg any) {
	switch m := msg.(type) {
	case joinMsg:
		a.handleJoin(m.sub)
	case leaveMsg:
		a.handleLeave(m.sub)
	case addUpdateMsg:
		a.handleAddUpdate(m.blob)
	case saveSnapMsg:
		a.handleSaveSnapshot(m.blob)
	case getHistoryMsg:
		h := make([][]byte, len(a.history))
		copy(h, a.history)
		m.reply <- h
	case flushMsg:
		m.reply <- a.flushIfDirty("explicit")
	case statsMsg:
		m.reply <- Stats{
			DocID:                a.docID,
			Subscribers:          len(a.subs),
			HistoryLen:           len(a.history),
			UpdatesSinceSnapshot: a.updatesSinceSnapshot,
			Dirty:                a.dirty,
			CreatedAt:            a.createdAt,
			LastUpdatedAt:        a.lastUpdatedAt,
			LastFlushedAt:        a.lastFlushedAt,
		}
	}
}

func (a *Actor) handleJoin(sub Subscriber) {
	if _, ok := a.subs[sub]; ok {
		return
	}
	stop := make(chan struct{})
	a.subs[sub] = stop
	metrics.ConnectedSubscribers.Inc()
	if a.idleCleanup != nil {
		a.idleCleanup.Stop()
		a.idleCleanup = nil
	}
	a.log.Debug().Str("subscriber", sub.ID()).Int("subscribers", len(a.subs)).Msg("subscriber joined")
	go a.watch(sub, stop)
}

// watch turns a dying session into a leave message so crashed clients do
// not pin the actor open. An explicit leave closes stop so join/leave
// churn does not pile up watchers.
func (a *Actor) watch(sub Subscriber, stop <-chan struct{}) {
	select {
	case <-sub.Done():
		_ = a.send(leaveMsg{sub})
	case <-stop:
	case <-a.done:
	}
}

func (a *Actor) handleLeave(sub Subscriber) {
	stop, ok := a.subs[sub]
	if !ok {
		return
	}
	close(stop)
	delete(a.subs, sub)
	metrics.ConnectedSubscribers.Dec()
	a.log.Debug().Str("subscriber", sub.ID()).Int("subscribers", len(a.subs)).Msg("subscriber left")
	if len(a.subs) == 0 && a.idleCleanup == nil {
		a.idleCleanup = time.NewTimer(a.cfg.InactivityTimeout)
	}
}

func (a *Actor) handleAddUpdate(blob []byte) {
	// Own the bytes; transports are free to reuse their read buffers.
	owned := make([]byte, len(blob))
	copy(owned, blob)
	a.history = append(a.history, owned)
	a.updatesSinceSnapshot++
	a.touch()
	metrics.UpdatesReceived.Inc()

	if a.updatesSinceSnapshot >= a.cfg.SnapshotThreshold {
		a.requestSnapshot()
		// Reset regardless of whether a subscriber was available, so a
		// subscriberless burst does not re-fire on every later update.
		a.updatesSinceSnapshot = 0
	}
}

// requestSnapshot picks one connected subscriber and asks it to compact
// the history. Map iteration order makes the pick arbitrary, which is all
// the protocol needs.
func (a *Actor) requestSnapshot() {
	for sub := range a.subs {
		a.log.Debug().Str("subscriber", sub.ID()).Int("history_len", len(a.history)).Msg("requesting snapshot")
		sub.RequestSnapshot()
		metrics.SnapshotRequests.Inc()
		return
	}
	a.log.Debug().Int("history_len", len(a.history)).Msg("snapshot threshold reached with no subscribers")
}

func (a *Actor) handleSaveSnapshot(blob []byte) {
	a.log.Debug().Int("replaced", len(a.history)).Msg("snapshot replaces history")
	owned := make([]byte, len(blob))
	copy(owned, blob)
	a.history = [][]byte{owned}
	a.updatesSinceSnapshot = 0
	a.touch()
	metrics.SnapshotsApplied.Inc()
}

func (a *Actor) touch() {
	a.dirty = true
	a.lastUpdatedAt = time.Now().UTC()
	if a.idleFlush != nil {
		a.idleFlush.Stop()
	}
	a.idleFlush = time.NewTimer(a.cfg.IdleFlushDelay)
}

// hydrate loads persisted state at spawn. Missing documents and load
// errors both start empty; an error never prevents the actor from serving.
func (a *Actor) hydrate(ctx context.Context) {
	now := time.Now().UTC()
	payload, err := a.store.Load(ctx, a.docID)
	switch {
	case err == nil:
		a.history = payload.History
		a.createdAt = payload.CreatedAt
		a.lastUpdatedAt = payload.LastUpdatedAt
		a.lastFlushedAt = now
		metrics.HydrationTotal.WithLabelValues("hit").Inc()
		a.log.Info().Int("history_len", len(a.history)).Msg("hydrated from storage")
	case errors.Is(err, storage.ErrNotFound):
		a.history = [][]byte{}
		a.createdAt = now
		a.lastUpdatedAt = now
		metrics.HydrationTotal.WithLabelValues("miss").Inc()
		a.log.Debug().Msg("no persisted state, starting empty")
	default:
		a.history = [][]byte{}
		a.createdAt = now
		a.lastUpdatedAt = now
		metrics.HydrationTotal.WithLabelValues("error").Inc()
		a.log.Error().Err(err).Msg("hydration failed, starting empty")
	}
}

func (a *Actor) flushIfDirty(reason string) error {
	if !a.dirty {
		return nil
	}
	start := time.Now()
	payload := &storage.Payload{
		DocID:         a.docID,
		CreatedAt:     a.createdAt,
		LastUpdatedAt: a.lastUpdatedAt,
		History:       a.history,
		Version:       storage.PayloadVersion,
	}
	err := a.store.Persist(context.Background(), payload)
	metrics.RecordFlush(err, time.Since(start))
	if err != nil {
		// Stay dirty so the next trigger retries; the periodic timer is
		// the retry cadence.
		a.log.Error().Err(err).Str("reason", reason).Msg("flush failed")
		return err
	}
	a.dirty = false
	a.lastFlushedAt = time.Now().UTC()
	a.log.Debug().Str("reason", reason).Int("history_len", len(a.history)).Msg("flushed")
	return nil
}

// teardown runs once on the way out: a last flush so terminating an idle
// actor never loses acknowledged updates.
func (a *Actor) teardown() {
	if err := a.flushIfDirty("teardown"); err != nil {
		a.log.Error().Err(err).Msg("final flush failed, unflushed updates lost")
	}
}

func (a *Actor) stopTimers() {
	if a.idleFlush != nil {
		a.idleFlush.Stop()
		a.idleFlush = nil
	}
	if a.idleCleanup != nil {
		a.idleCleanup.Stop()
		a.idleCleanup = nil
	}
	// Departing subscribers were already counted out; account for the
	// ones still attached at termination.
	if n := len(a.subs); n > 0 {
		metrics.ConnectedSubscribers.Sub(float64(n))
	}
}
