// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guardrail implements the safety gate that screens user input
// and model output. Four strategies are supported: none (no checks),
// system (delegated to the primary model's system prompt), external
// (a separate Llama Guard classifier call), and intent (structured
// self-assessment parsed out of the response).
package guardrail
