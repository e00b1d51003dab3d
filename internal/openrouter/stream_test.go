// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// sseServer serves the given SSE lines and closes the stream.
func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func contentEvent(s string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, s)
}

func newTestDecoder(url string) *StreamDecoder {
	return NewStreamDecoder(NewClient("tok").WithBaseURL(url))
}

func TestStreamAccumulatesFragments(t *testing.T) {
	server := sseServer(t, []string{
		contentEvent("Hello"),
		contentEvent(" World"),
		"data: [DONE]",
	})
	defer server.Close()

	d := newTestDecoder(server.URL)
	var frags []string
	text, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, func(f string) {
		frags = append(frags, f)
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if text != "Hello World" {
		t.Errorf("text = %q, want %q", text, "Hello World")
	}
	if len(frags) != 2 || frags[0] != "Hello" || frags[1] != " World" {
		t.Errorf("fragments = %v, want in arrival order", frags)
	}
	if d.State() != StateDone {
		t.Errorf("state = %v, want done", d.State())
	}
}

func TestStreamSkipsMalformedEvents(t *testing.T) {
	server := sseServer(t, []string{
		contentEvent("A"),
		"data: {not json at all",
		": keep-alive comment",
		"event: ping",
		contentEvent("B"),
		"data: [DONE]",
	})
	defer server.Close()

	d := newTestDecoder(server.URL)
	text, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil)
	if err != nil {
		t.Fatalf("Stream failed on skippable garbage: %v", err)
	}
	if text != "AB" {
		t.Errorf("text = %q, want %q", text, "AB")
	}
}

func TestStreamExtractsUsageLastWins(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"x"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
		`data: {"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`,
		"data: [DONE]",
	})
	defer server.Close()

	d := newTestDecoder(server.URL)
	if _, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	u := d.LastUsage()
	if u == nil {
		t.Fatal("expected usage record")
	}
	if u.PromptTokens != 10 || u.CompletionTokens != 20 {
		t.Errorf("usage = %+v, want last record to win", u)
	}
}

func TestStreamNoUsage(t *testing.T) {
	server := sseServer(t, []string{contentEvent("x"), "data: [DONE]"})
	defer server.Close()

	d := newTestDecoder(server.URL)
	if _, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if d.LastUsage() != nil {
		t.Error("expected nil usage when provider sent none")
	}
}

func TestStreamInterrupt(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, contentEvent("x"))
	}
	lines = append(lines, "data: [DONE]")
	server := sseServer(t, lines)
	defer server.Close()

	d := newTestDecoder(server.URL)
	count := 0
	text, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, func(string) {
		count++
		if count == 3 {
			d.Interrupt()
		}
	})
	// Interruption is not an error.
	if err != nil {
		t.Fatalf("Stream returned error on interrupt: %v", err)
	}
	if !d.Interrupted() {
		t.Error("Interrupted() = false after Interrupt")
	}
	if count >= 100 {
		t.Errorf("consumed %d fragments, interrupt did not stop consumption", count)
	}
	if len(text) != count {
		t.Errorf("partial text length %d != fragments seen %d", len(text), count)
	}
	if d.State() != StateInterrupted {
		t.Errorf("state = %v, want interrupted", d.State())
	}
}

func TestStreamResetBetweenCalls(t *testing.T) {
	server := sseServer(t, []string{
		contentEvent("a"),
		`data: {"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":5,"total_tokens":10}}`,
		"data: [DONE]",
	})
	defer server.Close()

	d := newTestDecoder(server.URL)
	d.Interrupt() // leftover flag from an imaginary previous turn
	if _, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if d.Interrupted() {
		t.Error("interrupt flag not reset at stream start")
	}

	// Second stream against a no-usage server clears the old usage.
	server2 := sseServer(t, []string{contentEvent("b"), "data: [DONE]"})
	defer server2.Close()
	d2 := NewStreamDecoder(NewClient("tok").WithBaseURL(server2.URL))
	d2.mu.Lock()
	d2.lastUsage = &Usage{PromptTokens: 99}
	d2.mu.Unlock()
	if _, err := d2.Stream(context.Background(), &ChatRequest{Model: "m"}, nil); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if d2.LastUsage() != nil {
		t.Error("stale usage survived a fresh stream")
	}
}

func TestStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"Insufficient credits"}}`))
	}))
	defer server.Close()

	d := newTestDecoder(server.URL)
	_, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "Insufficient credits" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if d.State() != StateFailed {
		t.Errorf("state = %v, want failed", d.State())
	}
}

func TestStreamEOFWithoutDone(t *testing.T) {
	// Provider hangs up without a [DONE]; accumulated text still wins.
	server := sseServer(t, []string{contentEvent("partial")})
	defer server.Close()

	d := newTestDecoder(server.URL)
	text, err := d.Stream(context.Background(), &ChatRequest{Model: "m"}, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if text != "partial" {
		t.Errorf("text = %q, want %q", text, "partial")
	}
}
