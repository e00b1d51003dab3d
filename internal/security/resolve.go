// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"os"
	"strings"
)

// =============================================================================
// TOKEN RESOLUTION
// =============================================================================

// EnvTokenVar is the environment variable consulted for the API token.
const EnvTokenVar = "TERMCHAT_API_TOKEN"

// TokenSource identifies where the active API token came from.
type TokenSource string

const (
	SourceKeystore TokenSource = "encrypted keystore"
	SourceEnv      TokenSource = "environment"
	SourceConfig   TokenSource = "config file"
	SourceNone     TokenSource = "none"
)

// ResolveToken finds the API token, preferring the encrypted keystore,
// then the environment, then the plaintext config value. configToken
// may be empty.
func ResolveToken(store *TokenStore, configToken string) (string, TokenSource) {
	if store != nil && store.Exists() {
		if token, err := store.Load(); err == nil && token != "" {
			return token, SourceKeystore
		}
		// Unreadable keystore falls through to the other sources
		// rather than locking the user out.
	}
	if token := strings.TrimSpace(os.Getenv(EnvTokenVar)); token != "" {
		return token, SourceEnv
	}
	if token := strings.TrimSpace(configToken); token != "" {
		return token, SourceConfig
	}
	return "", SourceNone
}
