// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"regexp"
	"strings"
)

// =============================================================================
// SECRET REDACTION
// =============================================================================

// SECURITY: Error text from the HTTP layer can echo request headers or
// URLs. Everything user-visible goes through Redact first so a token
// never lands in the terminal scrollback.
var (
	apiKeyRe     = regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`)
	bearerRe     = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_\-.]+`)
	queryParamRe = regexp.MustCompile(`([?&])(api_key|token|key|auth)=[^&\s]+`)
)

// Redact masks API credentials in a message before display. token, if
// non-empty, is additionally masked verbatim in case it does not match
// the generic patterns.
func Redact(msg, token string) string {
	if token != "" {
		msg = strings.ReplaceAll(msg, token, "[REDACTED_API_KEY]")
	}
	msg = apiKeyRe.ReplaceAllString(msg, "[REDACTED_API_KEY]")
	msg = bearerRe.ReplaceAllString(msg, "Bearer [REDACTED_TOKEN]")
	msg = queryParamRe.ReplaceAllString(msg, "$1$2=[REDACTED]")
	return msg
}
