// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guardrail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/termchat/internal/openrouter"
)

// =============================================================================
// STRATEGY
// =============================================================================

// Strategy selects how content is screened.
type Strategy int

const (
	// StrategyNone performs no safety checks.
	StrategyNone Strategy = iota
	// StrategySystem delegates safety to the primary model's system
	// prompt; the gate itself always allows.
	StrategySystem
	// StrategyExternal calls a separate classifier model per check.
	StrategyExternal
	// StrategyIntent expects the model to prepend a structured
	// self-assessment, parsed after the response completes.
	StrategyIntent
)

// ParseStrategy maps a config string to a Strategy. Unrecognized
// values fall back to StrategySystem, the safe default.
func ParseStrategy(s string) Strategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return StrategyNone
	case "system":
		return StrategySystem
	case "external":
		return StrategyExternal
	case "intent":
		return StrategyIntent
	}
	return StrategySystem
}

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategySystem:
		return "system"
	case StrategyExternal:
		return "external"
	case StrategyIntent:
		return "intent"
	}
	return "system"
}

// Direction selects which sides of the conversation the external
// classifier screens.
type Direction int

const (
	// DirectionBoth screens user input and model output.
	DirectionBoth Direction = iota
	// DirectionInput screens user input only.
	DirectionInput
	// DirectionOutput screens model output only.
	DirectionOutput
)

// ParseDirection maps a config string to a Direction, defaulting to
// DirectionBoth.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input":
		return DirectionInput
	case "output":
		return DirectionOutput
	case "both":
		return DirectionBoth
	}
	return DirectionBoth
}

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	}
	return "both"
}

// =============================================================================
// GATE
// =============================================================================

const (
	// DefaultModel is the classifier used by the external strategy.
	DefaultModel = "meta-llama/llama-guard-4-12b"

	// checkTimeout bounds one classifier call. A slow safety check
	// must not stall the conversation indefinitely.
	checkTimeout = 10 * time.Second

	// classifierMaxTokens caps the verdict length; Llama Guard answers
	// in one or two short lines.
	classifierMaxTokens = 100

	// safeVerdict is the prefix Llama Guard emits for clean content.
	safeVerdict = "safe"
)

// llamaGuardTemplate wraps content in the Llama Guard chat template.
// Input checks present the text as a user turn, output checks as an
// assistant turn, so the classifier scores the right side of the
// conversation.
const llamaGuardTemplate = "<|begin_of_text|><|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>"

// Verdict is the outcome of one safety check.
type Verdict struct {
	Allowed bool
	Reason  string
}

// allowed is the zero-friction verdict returned by pass-through paths.
var allowed = Verdict{Allowed: true}

// ConsentFunc asks the user whether to proceed after a failed
// classifier call. checkType is "input" or "output"; detail describes
// the failure. Returning false keeps the content blocked.
type ConsentFunc func(checkType, detail string) bool

// Gate screens conversation content according to the configured
// strategy.
type Gate struct {
	strategy  Strategy
	model     string
	direction Direction
	client    *openrouter.Client
	consent   ConsentFunc
}

// New creates a gate. client may be nil for the none, system, and
// intent strategies, which never call out. consent may be nil, in
// which case classifier failures block without asking.
func New(strategy Strategy, model string, direction Direction, client *openrouter.Client, consent ConsentFunc) *Gate {
	if model == "" {
		model = DefaultModel
	}
	return &Gate{
		strategy:  strategy,
		model:     model,
		direction: direction,
		client:    client,
		consent:   consent,
	}
}

// Strategy returns the gate's configured strategy.
func (g *Gate) Strategy() Strategy {
	return g.strategy
}

// CheckInput screens user input before it is sent to the model.
func (g *Gate) CheckInput(ctx context.Context, text string) Verdict {
	if g.strategy != StrategyExternal {
		return allowed
	}
	if g.direction == DirectionOutput {
		return allowed
	}
	return g.checkExternal(ctx, text, "input")
}

// CheckOutput screens a completed model response before it is added to
// the conversation.
func (g *Gate) CheckOutput(ctx context.Context, text string) Verdict {
	if g.strategy != StrategyExternal {
		return allowed
	}
	if g.direction == DirectionInput {
		return allowed
	}
	return g.checkExternal(ctx, text, "output")
}

// =============================================================================
// EXTERNAL CLASSIFIER
// =============================================================================

// checkExternal calls the classifier model and interprets its verdict.
// A response starting with "safe" (case-insensitive) allows the
// content; anything else blocks with a formatted reason.
func (g *Gate) checkExternal(ctx context.Context, text, checkType string) Verdict {
	if g.client == nil {
		return g.handleFailure(checkType, "no classifier client configured")
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	templateRole := "user"
	if checkType == "output" {
		templateRole = "assistant"
	}
	resp, err := g.client.Chat(checkCtx, &openrouter.ChatRequest{
		Model: g.model,
		Messages: []openrouter.Message{{
			Role:    openrouter.RoleUser,
			Content: fmt.Sprintf(llamaGuardTemplate, templateRole, text),
		}},
		MaxTokens: classifierMaxTokens,
	})
	if err != nil {
		return g.handleFailure(checkType, err.Error())
	}

	verdict := strings.TrimSpace(resp.Content())
	if verdict == "" {
		return g.handleFailure(checkType, "classifier returned an empty verdict")
	}
	if strings.HasPrefix(strings.ToLower(verdict), safeVerdict) {
		return allowed
	}
	return Verdict{Allowed: false, Reason: FormatReason(verdict)}
}

// handleFailure implements fail-open-with-consent: when the classifier
// is unavailable the user decides whether to proceed unchecked.
// Without a consent hook the failure blocks. An allowed verdict
// carries no reason; the consent hook already told the user what
// failed.
func (g *Gate) handleFailure(checkType, detail string) Verdict {
	if g.consent != nil && g.consent(checkType, detail) {
		return allowed
	}
	return Verdict{
		Allowed: false,
		Reason:  fmt.Sprintf("Guardrail %s check failed and user declined to proceed", checkType),
	}
}
