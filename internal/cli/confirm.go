// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Interactive yes/no prompts for the termchat CLI.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// CONFIRMATION PROMPTS
// =============================================================================

// PromptYesNo asks a yes/no question and returns the answer. An empty
// response takes defaultYes. When stdin is not a TTY the default is
// returned without prompting.
func PromptYesNo(question string, defaultYes bool) bool {
	// USABILITY: TTY detection for proper terminal handling
	if !IsTTY() {
		return defaultYes
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", question, suffix)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}

// PromptChoice asks the user to pick from numbered options and returns
// the 0-based index, or -1 on invalid input or a non-TTY stdin.
func PromptChoice(question string, options []string) int {
	if !IsTTY() {
		return -1
	}

	fmt.Println()
	fmt.Println(question)
	fmt.Println()
	for i, option := range options {
		fmt.Printf("  %d) %s\n", i+1, option)
	}
	fmt.Println()
	fmt.Printf("Enter choice (1-%d): ", len(options))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return -1
	}

	var choice int
	if _, err := fmt.Sscanf(strings.TrimSpace(input), "%d", &choice); err != nil {
		return -1
	}
	if choice < 1 || choice > len(options) {
		return -1
	}
	return choice - 1
}

// PromptLine reads one line of input with a label. Returns "" on a
// non-TTY stdin or read error.
func PromptLine(label string) string {
	if !IsTTY() {
		return ""
	}
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}
