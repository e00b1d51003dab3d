// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"testing"
)

func TestNewSessionHasID(t *testing.T) {
	a := New()
	b := New()
	if a.ID == "" {
		t.Fatal("empty session ID")
	}
	if a.ID == b.ID {
		t.Error("two sessions share an ID")
	}
}

func TestCounters(t *testing.T) {
	s := New()
	s.RecordTurn()
	s.RecordTurn()
	s.RecordBlocked()
	s.RecordInterrupted()

	if s.Turns != 2 || s.Blocked != 1 || s.Interrupted != 1 {
		t.Errorf("counters = %d/%d/%d", s.Turns, s.Blocked, s.Interrupted)
	}
}

func TestSummary(t *testing.T) {
	s := New()
	s.RecordTurn()

	got := s.Summary()
	if !strings.Contains(got, "1 turns") {
		t.Errorf("Summary() = %q", got)
	}
	if strings.Contains(got, "blocked") || strings.Contains(got, "interrupted") {
		t.Errorf("Summary() = %q, zero counters should be omitted", got)
	}

	s.RecordBlocked()
	s.RecordInterrupted()
	got = s.Summary()
	if !strings.Contains(got, "1 blocked") || !strings.Contains(got, "1 interrupted") {
		t.Errorf("Summary() = %q", got)
	}
}
