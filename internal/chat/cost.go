// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// PRICING
// =============================================================================

// Pricing is a model's price in dollars per million tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// pricingTable maps model identifiers to their published per-million
// token prices. Models not listed here get token counts but no dollar
// estimate.
var pricingTable = map[string]Pricing{
	"anthropic/claude-haiku-4.5": {Input: 1.00, Output: 5.00},
	"openai/gpt-5-mini":          {Input: 0.25, Output: 2.00},
	"google/gemini-2.5-flash":    {Input: 0.30, Output: 2.50},
}

// LookupPricing returns the pricing for a model, and whether it is known.
func LookupPricing(model string) (Pricing, bool) {
	p, ok := pricingTable[model]
	return p, ok
}

// =============================================================================
// USAGE LEDGER
// =============================================================================

// Cost is a point-in-time snapshot of accumulated spend.
type Cost struct {
	InputTokens  int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// UsageLedger accumulates token usage across a session and estimates
// cost from the static pricing table. Estimates are informational;
// billing authority stays with the provider.
type UsageLedger struct {
	model        string
	inputTokens  int
	outputTokens int
}

// NewUsageLedger creates a ledger for the given model.
func NewUsageLedger(model string) *UsageLedger {
	return &UsageLedger{model: model}
}

// SetModel re-points the ledger at a different model. Accumulated
// token counts carry over; only the pricing lookup changes.
func (l *UsageLedger) SetModel(model string) {
	l.model = model
}

// Add records one request's token usage. Negative counts are clamped
// to zero so a misbehaving provider cannot drive totals backwards.
func (l *UsageLedger) Add(inputTokens, outputTokens int) {
	if inputTokens > 0 {
		l.inputTokens += inputTokens
	}
	if outputTokens > 0 {
		l.outputTokens += outputTokens
	}
}

// Tokens returns the accumulated input and output token counts.
func (l *UsageLedger) Tokens() (input, output int) {
	return l.inputTokens, l.outputTokens
}

// Cost returns the current cost snapshot, or nil when the model has no
// pricing entry.
func (l *UsageLedger) Cost() *Cost {
	p, ok := pricingTable[l.model]
	if !ok {
		return nil
	}
	in := float64(l.inputTokens) / 1_000_000 * p.Input
	out := float64(l.outputTokens) / 1_000_000 * p.Output
	return &Cost{
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		InputCost:    in,
		OutputCost:   out,
		TotalCost:    in + out,
	}
}

// Format renders a one-line usage summary for display after a turn or
// at exit. With pricing:
//
//	Tokens: 1,500 in / 300 out | Cost: $0.0030 ($0.0015 in + $0.0015 out)
//
// Without pricing the dollar part is replaced by a note.
func (l *UsageLedger) Format() string {
	tokens := fmt.Sprintf("Tokens: %s in / %s out",
		groupDigits(l.inputTokens), groupDigits(l.outputTokens))
	c := l.Cost()
	if c == nil {
		return tokens + " | Cost: unavailable (unknown model pricing)"
	}
	return fmt.Sprintf("%s | Cost: $%.4f ($%.4f in + $%.4f out)",
		tokens, c.TotalCost, c.InputCost, c.OutputCost)
}

// groupDigits formats n with thousands separators.
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
