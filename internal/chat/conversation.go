// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/termchat/internal/openrouter"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// DefaultMaxMessages is the sliding-window capacity for conversation
// history. Keeps prompts bounded without losing the system prompt.
const DefaultMaxMessages = 20

// Conversation is the ordered message history sent with each request.
//
// It enforces a sliding window after every append: when the history
// exceeds capacity and the first message is a system prompt, the system
// prompt is kept and the oldest non-system messages are evicted;
// otherwise only the newest messages are kept. The window never
// reorders messages.
//
// Conversation is owned by the single REPL goroutine and is not
// self-locking.
type Conversation struct {
	messages    []openrouter.Message
	maxMessages int
}

// NewConversation creates a conversation with the given window capacity.
// Non-positive capacities fall back to DefaultMaxMessages.
func NewConversation(maxMessages int) *Conversation {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Conversation{maxMessages: maxMessages}
}

// SetSystem installs or replaces the system prompt at position 0.
// An empty prompt removes it.
func (c *Conversation) SetSystem(content string) {
	hasSystem := len(c.messages) > 0 && c.messages[0].Role == openrouter.RoleSystem
	switch {
	case content == "" && hasSystem:
		c.messages = c.messages[1:]
	case content != "" && hasSystem:
		c.messages[0].Content = content
	case content != "":
		c.messages = append([]openrouter.Message{{
			Role:    openrouter.RoleSystem,
			Content: content,
		}}, c.messages...)
	}
	c.applyWindow()
}

// AddUser appends a user message and applies the sliding window.
func (c *Conversation) AddUser(content string) {
	c.append(openrouter.RoleUser, content)
}

// AddAssistant appends an assistant message and applies the sliding window.
func (c *Conversation) AddAssistant(content string) {
	c.append(openrouter.RoleAssistant, content)
}

func (c *Conversation) append(role, content string) {
	c.messages = append(c.messages, openrouter.Message{Role: role, Content: content})
	c.applyWindow()
}

// applyWindow evicts oldest messages beyond capacity, preserving a
// leading system prompt when one exists.
func (c *Conversation) applyWindow() {
	if len(c.messages) <= c.maxMessages {
		return
	}
	if c.messages[0].Role == openrouter.RoleSystem {
		keep := c.maxMessages - 1
		tail := c.messages[len(c.messages)-keep:]
		pruned := make([]openrouter.Message, 0, c.maxMessages)
		pruned = append(pruned, c.messages[0])
		pruned = append(pruned, tail...)
		c.messages = pruned
		return
	}
	c.messages = append([]openrouter.Message(nil), c.messages[len(c.messages)-c.maxMessages:]...)
}

// Messages returns a copy of the current history in order.
func (c *Conversation) Messages() []openrouter.Message {
	out := make([]openrouter.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages currently held.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// RemoveLast drops the newest message. Used to unwind a user message
// when the request it belongs to failed, so a retry does not duplicate
// it.
func (c *Conversation) RemoveLast() {
	if len(c.messages) > 0 {
		c.messages = c.messages[:len(c.messages)-1]
	}
}

// Clear drops the entire history, including the system prompt.
func (c *Conversation) Clear() {
	c.messages = nil
}

// HasSystem reports whether a system prompt is installed.
func (c *Conversation) HasSystem() bool {
	return len(c.messages) > 0 && c.messages[0].Role == openrouter.RoleSystem
}
