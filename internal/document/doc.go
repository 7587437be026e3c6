// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

// Package document implements the per-document actor and its registry.
//
// Each active document is owned by exactly one actor goroutine. The actor
// holds the document's in-memory history (an ordered list of opaque CRDT
// update blobs), its subscriber set and its timers, and is the only writer
// of that state. All interaction goes through the actor's inbox and is
// processed strictly in arrival order, so a History call enqueued after an
// AddUpdate always observes that update.
//
// # Timers
//
// Two timers fire on a fixed cadence and reschedule themselves
// unconditionally:
//
//   - periodic flush: persists the document if dirty
//   - inactivity check: terminates the actor if the subscriber set is empty
//
// Two timers are debounced, canceled and restarted by the relevant event:
//
//   - idle flush: one-shot flush after the last update settles
//   - idle cleanup: scheduled when the subscriber set empties, canceled by
//     any join, terminates the actor when it fires
//
// # Snapshot compaction
//
// The server never merges CRDT updates. When a document accumulates the
// configured number of updates, one connected subscriber is asked to produce
// a merged snapshot; the snapshot it sends back replaces the entire history.
// An update racing the in-flight compaction may be discarded by the replace;
// this is a documented best-effort property of the protocol, because request
// and snapshot production happen on the same client's event loop in the
// common case. Compaction never blocks the update path.
//
// # Registry
//
// The Registry maps document ids to live actors with an atomic
// check-then-spawn, guaranteeing at most one actor per id. Entries are
// removed when their actor terminates so a later lookup respawns and
// rehydrates.
package document
