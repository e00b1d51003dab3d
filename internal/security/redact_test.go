// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactAPIKey(t *testing.T) {
	msg := "request failed for key sk-or-v1-abcdefghijklmnopqrstuvwxyz123456"
	got := Redact(msg, "")
	assert.NotContains(t, got, "abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, got, "[REDACTED_API_KEY]")
}

func TestRedactBearerToken(t *testing.T) {
	msg := `header was "Authorization: Bearer abc123_xyz-987" in the dump`
	got := Redact(msg, "")
	assert.NotContains(t, got, "abc123_xyz-987")
	assert.Contains(t, got, "Bearer [REDACTED_TOKEN]")
}

func TestRedactQueryParams(t *testing.T) {
	msg := "GET https://example.com/v1?api_key=secret123&foo=bar&token=tok456 failed"
	got := Redact(msg, "")
	assert.NotContains(t, got, "secret123")
	assert.NotContains(t, got, "tok456")
	assert.Contains(t, got, "api_key=[REDACTED]")
	assert.Contains(t, got, "token=[REDACTED]")
	assert.Contains(t, got, "foo=bar")
}

func TestRedactVerbatimToken(t *testing.T) {
	// Tokens that match none of the generic patterns still get masked
	// when passed explicitly.
	msg := "odd provider token weird$token*shape leaked"
	got := Redact(msg, "weird$token*shape")
	assert.NotContains(t, got, "weird$token*shape")
	assert.Contains(t, got, "[REDACTED_API_KEY]")
}

func TestRedactLeavesCleanTextAlone(t *testing.T) {
	msg := "connection refused: dial tcp 127.0.0.1:443"
	assert.Equal(t, msg, Redact(msg, ""))
}
