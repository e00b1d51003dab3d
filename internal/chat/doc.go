// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds per-session conversation state: the sliding-window
// message buffer sent to the API and the token usage ledger.
package chat
