// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Response rendering for the termchat CLI.

package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the global glamour renderer for markdown output.
// USABILITY: Renders markdown responses with syntax highlighting and formatting.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(DefaultTerminalWidth),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or the renderer is
// unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a completed response, applying markdown
// rendering and the panel border per UI config. Markdown and panels
// are skipped for piped output so downstream tools get clean text.
func displayResponse(response string, renderMd, panel bool) {
	if !IsStdoutTTY() {
		fmt.Println(response)
		return
	}

	out := response
	if renderMd {
		out = renderMarkdown(response)
	}
	if panel {
		width := GetTerminalWidth()
		if width > 100 {
			width = 100
		}
		out = PanelStyle.Width(width - 2).Render(out)
	}
	fmt.Println(out)
}
