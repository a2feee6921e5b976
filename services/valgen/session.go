// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import (
	"time"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/exetree"
	"github.com/google/uuid"
)

// Session is one fuzzing run's worth of request/reply exchanges, from the
// first generation call to the exit notification.
//
// A session is owned by exactly one connection handler goroutine and is
// never shared; the cursor it carries is only dereferenced while the service
// holds the tree mutation boundary. After exit the session is terminal:
// further generation requests are rejected as malformed.
type Session struct {
	// ID identifies the session in logs and metrics.
	ID string

	// StartedAt is when the client connected.
	StartedAt time.Time

	cursor *exetree.Node
	closed bool
}

// NewSession creates a session with its cursor at the tree root.
func (s *Service) NewSession() *Session {
	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		cursor:    s.tree.Root(),
	}
	s.sessionsTotal.Add(1)
	s.activeSessions.Add(1)
	return sess
}

// EndSession releases a session's accounting. Called by the connection
// handler when the socket closes, whether or not the client exited cleanly.
// A session that never exited leaves its path unlabeled.
func (s *Service) EndSession(sess *Session) {
	s.activeSessions.Add(-1)
}

// Closed reports whether the session has processed its exit message.
func (sess *Session) Closed() bool { return sess.closed }
