// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive termchat terminal interface:
// the chat loop with input history, the first-run setup wizard, and
// terminal-aware rendering (markdown, panels, colors).
//
// # Key Types
//
//   - ChatSession: one interactive run and everything it needs
//   - ChatCLI: liner-backed input with persisted history
//
// # Usage
//
//	cfg, token, source, err := cli.EnsureReady()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = cli.RunChat(cfg, token, source, "")
package cli
