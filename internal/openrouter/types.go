// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"errors"
	"fmt"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Chat roles recognized by the API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message in API wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ChatRequest is the request body for the chat completions endpoint.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

// Usage reports token consumption for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChoice is one completion alternative in a non-streaming response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the body of a non-streaming chat completion.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// Content returns the text of the first choice, or "" when empty.
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamDelta carries the incremental content of one streamed event.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is one choice inside a streamed chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// StreamChunk is the decoded payload of a single SSE data event.
type StreamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// Fragment returns the content delta of the first choice, or "".
func (c *StreamChunk) Fragment() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrNetwork indicates the request never produced an HTTP response
	// (DNS failure, refused connection, timeout).
	ErrNetwork = errors.New("network error")
	// ErrAuthFailed indicates the API rejected the credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrRateLimited indicates the API returned 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoToken indicates the client was constructed without an API token.
	ErrNoToken = errors.New("no API token configured")
)

// APIError is a non-2xx response from the gateway, with the message
// extracted from the JSON error envelope when present.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d)", e.Status)
}

// Is maps well-known statuses onto the sentinel errors so callers can
// use errors.Is without inspecting status codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == 401 || e.Status == 403
	case ErrRateLimited:
		return e.Status == 429
	}
	return false
}

// errorEnvelope is the JSON error body the gateway returns.
// Format: {"error": {"message": "...", "code": ...}}
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}
