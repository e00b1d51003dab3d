// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// =============================================================================
// STREAM STATE
// =============================================================================

// StreamState tracks where the decoder is in its lifecycle.
type StreamState int

const (
	// StateIdle means no stream has been started yet.
	StateIdle StreamState = iota
	// StateOpening means the HTTP request is in flight, no events yet.
	StateOpening
	// StateStreaming means events are being consumed.
	StateStreaming
	// StateDone means the stream completed normally ([DONE] or EOF).
	StateDone
	// StateInterrupted means the user stopped the stream mid-response.
	StateInterrupted
	// StateFailed means the stream ended with a transport or API error.
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// =============================================================================
// STREAM DECODER
// =============================================================================

// sseDataPrefix marks SSE data lines; everything else is ignored.
const sseDataPrefix = "data: "

// sseDone is the terminator payload sent after the last content event.
const sseDone = "[DONE]"

// FragmentFunc receives each non-empty content fragment as it arrives.
type FragmentFunc func(fragment string)

// StreamDecoder consumes one streaming chat completion at a time and
// exposes an interrupt flag that other goroutines may set to stop
// consumption at the next fragment boundary.
//
// A decoder is reusable across sequential calls; each Stream call
// resets the interrupt flag and the recorded usage.
type StreamDecoder struct {
	client      *Client
	interrupted atomic.Bool

	mu        sync.Mutex
	state     StreamState
	lastUsage *Usage
}

// NewStreamDecoder creates a decoder bound to the given client.
func NewStreamDecoder(client *Client) *StreamDecoder {
	return &StreamDecoder{client: client, state: StateIdle}
}

// Interrupt requests the current stream to stop. Safe to call from any
// goroutine; takes effect at the next fragment boundary.
func (d *StreamDecoder) Interrupt() {
	d.interrupted.Store(true)
}

// Interrupted reports whether the last stream was stopped by Interrupt.
func (d *StreamDecoder) Interrupted() bool {
	return d.interrupted.Load()
}

// State returns the decoder's current lifecycle state.
func (d *StreamDecoder) State() StreamState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LastUsage returns the usage record from the most recent stream, or
// nil when the provider sent none. When multiple usage records arrive,
// the last one wins.
func (d *StreamDecoder) LastUsage() *Usage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastUsage
}

func (d *StreamDecoder) setState(s StreamState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream performs a streaming chat completion, invoking fn for each
// content fragment in arrival order. It returns the accumulated
// response text.
//
// An interrupt is not an error: Stream returns the partial text with a
// nil error and Interrupted() reports true. Transport failures wrap
// ErrNetwork; non-2xx responses return *APIError.
func (d *StreamDecoder) Stream(ctx context.Context, req *ChatRequest, fn FragmentFunc) (string, error) {
	if d.client.apiToken == "" {
		d.setState(StateFailed)
		return "", ErrNoToken
	}

	// Fresh stream: clear leftovers from the previous call.
	d.interrupted.Store(false)
	d.mu.Lock()
	d.lastUsage = nil
	d.state = StateOpening
	d.mu.Unlock()

	if err := d.client.limiter.Wait(ctx); err != nil {
		d.setState(StateFailed)
		return "", err
	}

	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		d.setState(StateFailed)
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.client.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		d.setState(StateFailed)
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	d.client.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := d.client.streamClient.Do(httpReq)
	if err != nil {
		d.setState(StateFailed)
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.setState(StateFailed)
		return "", d.client.handleErrorResponse(resp)
	}

	d.setState(StateStreaming)
	text, err := d.consume(resp, fn)
	if err != nil {
		d.setState(StateFailed)
		return text, err
	}
	if d.Interrupted() {
		d.setState(StateInterrupted)
	} else {
		d.setState(StateDone)
	}
	return text, nil
}

// consume reads SSE lines until [DONE], EOF, or interrupt.
func (d *StreamDecoder) consume(resp *http.Response, fn FragmentFunc) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	// Some providers pack large deltas into a single event.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		// Interrupt check at the event boundary: stop before consuming
		// the next fragment, keep what was already emitted.
		if d.interrupted.Load() {
			return sb.String(), nil
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue // comments, blank keep-alives, event names
		}
		payload := strings.TrimSpace(line[len(sseDataPrefix):])
		if payload == sseDone {
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// RELIABILITY: A malformed event never kills the stream;
			// skip it and keep reading.
			continue
		}

		if chunk.Usage != nil {
			d.mu.Lock()
			d.lastUsage = chunk.Usage
			d.mu.Unlock()
		}

		if frag := chunk.Fragment(); frag != "" {
			sb.WriteString(frag)
			if fn != nil {
				fn(frag)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// Stream broke mid-body. Partial text is returned so the
		// caller can decide what to do with it.
		return sb.String(), fmt.Errorf("%w: stream read: %v", ErrNetwork, err)
	}
	return sb.String(), nil
}
