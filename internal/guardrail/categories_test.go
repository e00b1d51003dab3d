// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guardrail

import (
	"strconv"
	"testing"
)

func TestFormatReason(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"code on second line", "unsafe\nS9", "Indiscriminate Weapons (S9)"},
		{"code inline", "unsafe S1", "Violent Crimes (S1)"},
		{"two digit code", "unsafe\nS14", "Code Interpreter Abuse (S14)"},
		{"unknown code", "unsafe\nS99", "Unknown Category (S99)"},
		{"named category keeps its own wording", "unsafe\nS10: Hate speech detected", "S10: Hate speech detected"},
		{"renamed categories", "unsafe\nS7", "Privacy Violations (S7)"},
		{"no code keeps cleaned text", "unsafe\npolicy violation", "policy violation"},
		{"nothing useful", "unsafe", "Content blocked by safety guardrail"},
		{"empty", "", "Content blocked by safety guardrail"},
		{"case insensitive unsafe strip", "UNSAFE\nbad stuff", "bad stuff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatReason(tt.raw); got != tt.want {
				t.Errorf("FormatReason(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCategoryTableComplete(t *testing.T) {
	// S1 through S14 all resolve.
	for i := 1; i <= 14; i++ {
		code := "S" + strconv.Itoa(i)
		if _, ok := llamaGuardCategories[code]; !ok {
			t.Errorf("missing category for %s", code)
		}
	}
}
