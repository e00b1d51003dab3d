// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds non-streaming requests end to end.
	DefaultTimeout = 30 * time.Second

	// responseHeaderTimeout bounds how long a streaming request may wait
	// for the first byte of the response. The body itself is unbounded;
	// long generations are legitimate.
	responseHeaderTimeout = 30 * time.Second

	// maxErrorBodySize caps how much of an error response body is read.
	maxErrorBodySize = 64 * 1024

	// Attribution headers recommended by OpenRouter.
	refererHeader = "https://github.com/jeranaias/termchat"
	titleHeader   = "termchat"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the OpenRouter chat completions API.
//
// A single Client is safe for concurrent use; per-conversation state
// (interrupt flag, last usage) lives in StreamDecoder instead.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	// streamClient has no overall timeout so long generations are not
	// cut off mid-stream. Header timeout still bounds the initial wait.
	streamClient *http.Client
	limiter      *rate.Limiter
}

// NewClient creates an OpenRouter client with the given API token.
func NewClient(apiToken string) *Client {
	return &Client{
		baseURL:  DefaultBaseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: responseHeaderTimeout,
			},
		},
		// USABILITY: Smooth out accidental request bursts (guardrail
		// check + primary call per turn) without delaying normal use.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// WithBaseURL overrides the API endpoint. Used for tests and proxies.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// WithTimeout overrides the non-streaming request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// setHeaders sets authentication and attribution headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", refererHeader)
	req.Header.Set("X-Title", titleHeader)
}

// =============================================================================
// NON-STREAMING CHAT
// =============================================================================

// Chat performs a non-streaming chat completion. It is used for the
// guardrail classifier calls, which need the full verdict at once.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if c.apiToken == "" {
		return nil, ErrNoToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

// handleErrorResponse turns a non-2xx response into an *APIError,
// extracting the message from the JSON error envelope when the body
// parses, falling back to the raw body otherwise.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	apiErr := &APIError{Status: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		if env.Error.Code != nil {
			apiErr.Code = fmt.Sprint(env.Error.Code)
		}
	} else if len(body) > 0 {
		apiErr.Message = string(body)
	}

	return apiErr
}
