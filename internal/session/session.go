// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks per-run chat statistics for the exit summary.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION STATS
// =============================================================================

// Session accumulates counters for one chat run.
type Session struct {
	ID        string
	StartTime time.Time

	Turns       int
	Blocked     int
	Interrupted int
}

// New creates a session with a fresh identifier.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
	}
}

// RecordTurn counts one completed exchange.
func (s *Session) RecordTurn() {
	s.Turns++
}

// RecordBlocked counts a turn stopped by the guardrail.
func (s *Session) RecordBlocked() {
	s.Blocked++
}

// RecordInterrupted counts a response stopped by the user.
func (s *Session) RecordInterrupted() {
	s.Interrupted++
}

// Duration returns the elapsed wall time.
func (s *Session) Duration() time.Duration {
	return time.Since(s.StartTime)
}

// Summary renders the exit summary line.
func (s *Session) Summary() string {
	d := s.Duration().Round(time.Second)
	out := fmt.Sprintf("Session %s | %d turns in %s", shortID(s.ID), s.Turns, d)
	if s.Blocked > 0 {
		out += fmt.Sprintf(" | %d blocked", s.Blocked)
	}
	if s.Interrupted > 0 {
		out += fmt.Sprintf(" | %d interrupted", s.Interrupted)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
