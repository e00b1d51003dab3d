// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guardrail

import "testing"

func TestParseIntentAllowed(t *testing.T) {
	resp := `{"intent": "weather question", "appropriate": true, "reason": "benign"}
It will be sunny tomorrow.`

	res := ParseIntentResponse(resp)
	if !res.Allowed {
		t.Fatal("expected allowed")
	}
	if res.Intent != "weather question" {
		t.Errorf("intent = %q", res.Intent)
	}
	if res.Answer != "It will be sunny tomorrow." {
		t.Errorf("answer = %q, want assessment stripped", res.Answer)
	}
}

func TestParseIntentBlocked(t *testing.T) {
	resp := `{"intent": "requesting exploit code", "appropriate": false, "reason": "harmful request"}
I cannot help with that.`

	res := ParseIntentResponse(resp)
	if res.Allowed {
		t.Fatal("expected blocked")
	}
	if res.Reason != "requesting exploit code. Reason: harmful request" {
		t.Errorf("reason = %q", res.Reason)
	}
	if res.Answer != "" {
		t.Errorf("answer = %q, want withheld on block", res.Answer)
	}
}

func TestParseIntentBlockedNoReason(t *testing.T) {
	resp := `{"intent": "x", "appropriate": false}`
	res := ParseIntentResponse(resp)
	if res.Allowed {
		t.Fatal("expected blocked")
	}
	if res.Reason != "x" {
		t.Errorf("reason = %q, want the intent summary alone", res.Reason)
	}

	// No summary and no reason still yields something displayable.
	res = ParseIntentResponse(`{"intent": "", "appropriate": false}`)
	if res.Reason == "" {
		t.Error("expected a fallback reason")
	}
}

func TestParseIntentNotFound(t *testing.T) {
	resp := "Just a plain answer without any assessment."
	res := ParseIntentResponse(resp)
	if !res.Allowed {
		t.Fatal("missing assessment must fail open")
	}
	if res.Answer != resp {
		t.Errorf("answer = %q, want full response preserved", res.Answer)
	}
	if res.Intent != "Intent analysis not found" {
		t.Errorf("intent = %q", res.Intent)
	}
}

func TestParseIntentMalformedJSON(t *testing.T) {
	// Matches the pattern but is not valid JSON.
	resp := `{"intent": oops, "appropriate": true} answer text`
	res := ParseIntentResponse(resp)
	if !res.Allowed {
		t.Fatal("malformed assessment must fail open")
	}
	if res.Answer != resp {
		t.Errorf("answer = %q, want full response preserved", res.Answer)
	}
	if res.Intent != "Intent parsing failed" {
		t.Errorf("intent = %q", res.Intent)
	}
}

func TestParseIntentAppropriateTypes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		allowed bool
	}{
		{"true bool", `{"intent": "a", "appropriate": true}`, true},
		{"false bool", `{"intent": "a", "appropriate": false}`, false},
		{"zero number", `{"intent": "a", "appropriate": 0}`, false},
		{"one number", `{"intent": "a", "appropriate": 1}`, true},
		// Strings are not coerced; an ambiguous verdict defaults open.
		{"string false not coerced", `{"intent": "a", "appropriate": "false"}`, true},
		{"null defaults open", `{"intent": "a", "appropriate": null}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseIntentResponse(tt.payload + "\nanswer")
			if res.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", res.Allowed, tt.allowed)
			}
		})
	}
}

func TestParseIntentFirstObjectWins(t *testing.T) {
	resp := `{"intent": "first", "appropriate": true} middle {"intent": "second", "appropriate": false}`
	res := ParseIntentResponse(resp)
	if !res.Allowed {
		t.Error("expected first assessment to win")
	}
	if res.Intent != "first" {
		t.Errorf("intent = %q, want %q", res.Intent, "first")
	}
}
