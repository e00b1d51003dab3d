// termchat - A terminal chat client for OpenRouter models.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/termchat/internal/cli"
	"github.com/jeranaias/termchat/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]

	switch {
	case hasFlag(args, "--help", "-h"):
		printUsage()
		return
	case hasFlag(args, "--version", "-v"):
		fmt.Printf("termchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	case hasFlag(args, "--setup", "-s"):
		cfg, err := config.Load()
		if err != nil {
			fatal(err)
		}
		if _, err := cli.RunSetup(cfg); err != nil {
			fatal(err)
		}
		return
	}

	cfg, token, source, err := cli.EnsureReady()
	if err != nil {
		fatal(err)
	}

	// Everything that is not a flag becomes the first message.
	initial := strings.Join(args, " ")
	if err := cli.RunChat(cfg, token, source, initial); err != nil {
		fatal(err)
	}
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`termchat - chat with OpenRouter models from the terminal

Usage:
  termchat                 Start an interactive chat
  termchat <message>       Start a chat with an initial message
  termchat --setup         Run the setup wizard
  termchat --version       Show version
  termchat --help          Show this help

Environment:
  TERMCHAT_API_TOKEN       API token (overridden by the encrypted keystore)
  TERMCHAT_MODEL           Model override
  TERMCHAT_GUARDRAIL       Guardrail strategy: none, system, external, intent

Configuration lives at ~/.termchat/config.toml and reloads on change.`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
