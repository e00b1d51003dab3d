// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guardrail

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// LLAMA GUARD HAZARD CATEGORIES
// =============================================================================

// llamaGuardCategories maps MLCommons hazard codes to their names, as
// emitted by the Llama Guard model family.
var llamaGuardCategories = map[string]string{
	"S1":  "Violent Crimes",
	"S2":  "Non-Violent Crimes",
	"S3":  "Sex-Related Crimes",
	"S4":  "Child Sexual Exploitation",
	"S5":  "Defamation",
	"S6":  "Specialized Advice",
	"S7":  "Privacy Violations",
	"S8":  "Intellectual Property Violations",
	"S9":  "Indiscriminate Weapons",
	"S10": "Hate Speech",
	"S11": "Suicide & Self-Harm",
	"S12": "Sexual Content",
	"S13": "Elections",
	"S14": "Code Interpreter Abuse",
}

// defaultBlockReason is shown when the classifier verdict carries no
// usable detail.
const defaultBlockReason = "Content blocked by safety guardrail"

var (
	hazardCodeRe   = regexp.MustCompile(`S(\d+)`)
	unsafePrefixRe = regexp.MustCompile(`(?i)^\s*unsafe\s*\n?\s*`)
)

// FormatReason turns a raw classifier verdict (typically "unsafe\nS9")
// into a human-readable reason like "Indiscriminate Weapons (S9)".
// Verdicts that already spell out the category name keep their own
// wording; codes outside the table format as "Unknown Category (Sn)".
// Codeless verdicts fall back to the cleaned raw text, or to a
// generic message when nothing useful remains.
func FormatReason(raw string) string {
	cleaned := strings.TrimSpace(unsafePrefixRe.ReplaceAllString(raw, ""))
	if m := hazardCodeRe.FindString(raw); m != "" {
		name, ok := llamaGuardCategories[m]
		if !ok {
			return fmt.Sprintf("Unknown Category (%s)", m)
		}
		if strings.Contains(strings.ToLower(cleaned), strings.ToLower(name)) {
			return cleaned
		}
		return fmt.Sprintf("%s (%s)", name, m)
	}
	if cleaned == "" {
		return defaultBlockReason
	}
	return cleaned
}
