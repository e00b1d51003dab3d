// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openrouter implements the HTTP client for the OpenRouter
// chat completions API, including the SSE streaming decoder used for
// live response rendering.
package openrouter
