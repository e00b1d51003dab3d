// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guardrail

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// INTENT SELF-ASSESSMENT
// =============================================================================

// intentJSONRe finds the first JSON object carrying both "intent" and
// "appropriate" keys. Flat objects only; the assessment prompt asks
// for exactly that shape.
var intentJSONRe = regexp.MustCompile(`\{[^}]*"intent"[^}]*"appropriate"[^}]*\}`)

// IntentResult is the parsed outcome of an intent-strategy response.
type IntentResult struct {
	// Allowed is false only when the assessment explicitly marked the
	// request inappropriate.
	Allowed bool
	// Intent is the model's one-line summary of what the user wanted,
	// or a marker noting a parse fallback.
	Intent string
	// Reason explains a block. Empty when allowed.
	Reason string
	// Answer is the response text with the assessment stripped. When
	// no assessment was found it is the full response; when blocked it
	// is empty.
	Answer string
}

// intentPayload is the expected assessment object. Appropriate is
// decoded loosely because models do not always emit a real boolean.
type intentPayload struct {
	Intent      string `json:"intent"`
	Appropriate any    `json:"appropriate"`
	Reason      string `json:"reason"`
}

// ParseIntentResponse extracts the self-assessment from a completed
// response. Parsing is fail-open: a missing or malformed assessment
// yields an allowed result carrying the untouched response, since
// punishing the user for a model formatting slip helps nobody.
func ParseIntentResponse(response string) IntentResult {
	loc := intentJSONRe.FindStringIndex(response)
	if loc == nil {
		return IntentResult{
			Allowed: true,
			Intent:  "Intent analysis not found",
			Answer:  response,
		}
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(response[loc[0]:loc[1]]), &payload); err != nil {
		return IntentResult{
			Allowed: true,
			Intent:  "Intent parsing failed",
			Answer:  response,
		}
	}

	if appropriateAllows(payload.Appropriate) {
		return IntentResult{
			Allowed: true,
			Intent:  payload.Intent,
			Answer:  strings.TrimSpace(response[loc[1]:]),
		}
	}

	// Blocked: the answer body is withheld; the reason leads with the
	// model's own intent summary.
	summary := strings.TrimSpace(payload.Intent)
	reason := strings.TrimSpace(payload.Reason)
	blockReason := summary
	switch {
	case summary != "" && reason != "":
		blockReason = summary + ". Reason: " + reason
	case reason != "":
		blockReason = reason
	case summary == "":
		blockReason = "Request assessed as inappropriate"
	}
	return IntentResult{
		Allowed: false,
		Intent:  payload.Intent,
		Reason:  blockReason,
	}
}

// appropriateAllows interprets the "appropriate" field. Only a genuine
// JSON false (or zero) blocks; strings like "false" are not coerced,
// and a missing field defaults to allowed.
func appropriateAllows(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}
