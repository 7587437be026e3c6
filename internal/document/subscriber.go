// Markdoc - Collaborative Document Engine
// Copyright 2026 Ashish Jha (ashishjha-96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashishjha-96/Markdoc

package document

// Subscriber is a live client session attached to a document actor.
//
// The actor monitors Done and removes the subscriber automatically when
// the channel closes, so transports only have to call Leave on clean
// disconnects; crashes are handled by the watch.
type Subscriber interface {
	// ID identifies the session for logging.
	ID() string

	// RequestSnapshot asks the client to merge the document's current
	// history into a single snapshot blob and send it back via
	// Actor.SaveSnapshot. Called from the actor's loop; implementations
	// must not block (relay the request to the connection's writer and
	// return).
	RequestSnapshot()

	// Done is closed when the session ends for any reason.
	Done() <-chan struct{}
}
