// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat loop for the termchat CLI.
//
// The loop reads input with history support, runs every turn through
// the guardrail gate, streams the response with ESC interruption, and
// records token usage after each exchange.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/peterh/liner"

	"github.com/jeranaias/termchat/internal/chat"
	"github.com/jeranaias/termchat/internal/config"
	"github.com/jeranaias/termchat/internal/guardrail"
	"github.com/jeranaias/termchat/internal/keyboard"
	"github.com/jeranaias/termchat/internal/openrouter"
	"github.com/jeranaias/termchat/internal/security"
	"github.com/jeranaias/termchat/internal/session"
	"github.com/jeranaias/termchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// exitWords end the session when typed on their own.
var exitWords = map[string]bool{
	"bye":  true,
	"quit": true,
	"exit": true,
}

// interruptPollInterval is how often the turn loop propagates the ESC
// flag from the keyboard monitor to the stream decoder.
const interruptPollInterval = 100 * time.Millisecond

// inputLength measures input in characters, not bytes, so multibyte
// text is not penalized by the configured limit.
func inputLength(text string) int {
	return utf8.RuneCountInString(text)
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.Dir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with secure permissions.
func (c *ChatCLI) SaveHistory() {
	dir := filepath.Dir(c.historyFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession holds everything one interactive run needs.
type ChatSession struct {
	cfg          *config.Config
	client       *openrouter.Client
	decoder      *openrouter.StreamDecoder
	conversation *chat.Conversation
	ledger       *chat.UsageLedger
	gate         *guardrail.Gate
	monitor      *keyboard.Monitor
	stats        *session.Session
	token        string
	tokenSource  security.TokenSource

	// reloaded carries configs from the file watcher goroutine to the
	// REPL goroutine, applied between turns.
	reloaded chan *config.Config
}

// NewChatSession wires up a session from resolved config and token.
func NewChatSession(cfg *config.Config, token string, source security.TokenSource) *ChatSession {
	client := openrouter.NewClient(token)

	strategy := guardrail.ParseStrategy(cfg.Guardrail.Strategy)
	direction := guardrail.ParseDirection(cfg.Guardrail.CheckDirection)
	gate := guardrail.New(strategy, cfg.Guardrail.Model, direction, client, consentPrompt)

	s := &ChatSession{
		cfg:          cfg,
		client:       client,
		decoder:      openrouter.NewStreamDecoder(client),
		conversation: chat.NewConversation(chat.DefaultMaxMessages),
		ledger:       chat.NewUsageLedger(cfg.Model),
		gate:         gate,
		monitor:      keyboard.NewMonitor(),
		stats:        session.New(),
		token:        token,
		tokenSource:  source,
		reloaded:     make(chan *config.Config, 1),
	}
	s.installSystemPrompt()
	return s
}

// consentPrompt implements fail-open-with-consent for classifier
// failures. Defaults to no: an unreachable guardrail should not wave
// content through silently.
func consentPrompt(checkType, detail string) bool {
	fmt.Println()
	fmt.Println(WarningStyle.Render("Warning: guardrail "+checkType+" check failed: ") + security.Redact(detail, ""))
	return PromptYesNo("Proceed without the "+checkType+" safety check?", false)
}

// installSystemPrompt seeds the conversation for the active strategy.
// The system strategy carries the safety prompt; the intent strategy
// carries the self-assessment prompt; none and external send no system
// message at all.
func (s *ChatSession) installSystemPrompt() {
	switch s.gate.Strategy() {
	case guardrail.StrategySystem:
		s.conversation.SetSystem(s.cfg.SystemPrompt)
	case guardrail.StrategyIntent:
		s.conversation.SetSystem(s.cfg.IntentSystemPrompt)
	}
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// RunChat runs the interactive loop until the user leaves. An optional
// initial message is processed before the first prompt.
func RunChat(cfg *config.Config, token string, source security.TokenSource, initialMessage string) error {
	s := NewChatSession(cfg, token, source)

	if path, err := config.Path(); err == nil {
		if w, werr := config.NewWatcher(path, s.queueReload); werr == nil {
			defer w.Close()
		}
	}

	input := NewChatCLI()
	defer input.Close()

	printWelcome(s)

	if msg := strings.TrimSpace(initialMessage); msg != "" {
		s.processTurn(msg)
	}

	for {
		s.applyReload()

		line, err := input.ReadInput(PromptStyle.Render(s.cfg.UI.InputPrefix))
		if err != nil {
			// Ctrl+C, EOF, and a lost terminal all end the session.
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			break
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if exitWords[strings.ToLower(text)] {
			break
		}
		if strings.HasPrefix(text, "/") {
			if quit := s.handleSlashCommand(text); quit {
				break
			}
			continue
		}
		if n := inputLength(text); n > s.cfg.MaxInputLength {
			fmt.Println(WarningStyle.Render(fmt.Sprintf(
				"Input too long (%d characters, limit %d).", n, s.cfg.MaxInputLength)))
			continue
		}

		s.processTurn(text)
	}

	printExitSummary(s)
	return nil
}

// queueReload hands a freshly loaded config to the REPL goroutine.
func (s *ChatSession) queueReload(cfg *config.Config) {
	select {
	case s.reloaded <- cfg:
	default:
		// A newer reload is already queued; drop the stale one.
		select {
		case <-s.reloaded:
		default:
		}
		s.reloaded <- cfg
	}
}

// applyReload applies a pending config reload between turns.
func (s *ChatSession) applyReload() {
	select {
	case cfg := <-s.reloaded:
		oldModel := s.cfg.Model
		s.cfg = cfg
		if cfg.Model != oldModel {
			s.ledger.SetModel(cfg.Model)
			fmt.Println(DimStyle.Render("Config reloaded: model is now " + cfg.Model))
		} else {
			fmt.Println(DimStyle.Render("Config reloaded."))
		}
	default:
	}
}

// =============================================================================
// TURN PIPELINE
// =============================================================================

// processTurn runs one exchange: input gate, streamed completion with
// ESC interruption, output gate or intent parse, usage accounting.
func (s *ChatSession) processTurn(text string) {
	ctx := context.Background()

	if verdict := s.gate.CheckInput(ctx, text); !verdict.Allowed {
		s.printBlocked(verdict.Reason)
		return
	}

	s.conversation.AddUser(text)

	// Streaming live to the terminal is skipped when the final text
	// gets post-processed (markdown rendering, intent stripping).
	streamLive := !s.cfg.UI.RenderMarkdown || !IsStdoutTTY()
	if s.gate.Strategy() == guardrail.StrategyIntent {
		streamLive = false
	}

	if IsTTY() && IsStdoutTTY() {
		fmt.Println(DimStyle.Render("(press ESC to interrupt)"))
	}
	_ = s.monitor.Start()
	defer s.monitor.Stop()
	stopPoll := s.propagateInterrupts()

	var printed bool
	response, err := s.decoder.Stream(ctx, &openrouter.ChatRequest{
		Model:     s.cfg.Model,
		Messages:  s.conversation.Messages(),
		MaxTokens: s.cfg.MaxTokens,
	}, func(fragment string) {
		if s.monitor.Interrupted() {
			s.decoder.Interrupt()
			return
		}
		if streamLive {
			// The terminal is in raw mode while the ESC monitor runs,
			// so LF needs an explicit CR to avoid staircased output.
			fmt.Print(strings.ReplaceAll(fragment, "\n", "\r\n"))
			printed = true
		}
	})
	stopPoll()
	s.monitor.Stop()
	if printed {
		fmt.Println()
	}

	if err != nil {
		// Unwind the user message so a retry does not duplicate it.
		s.conversation.RemoveLast()
		s.printError(err)
		return
	}

	if s.decoder.Interrupted() {
		// The partial text is discarded; the user message stays so the
		// user can rephrase or resend.
		fmt.Println(WarningStyle.Render("[Response interrupted]"))
		s.stats.RecordInterrupted()
		s.recordUsage()
		return
	}

	if response == "" {
		s.conversation.RemoveLast()
		fmt.Println(WarningStyle.Render("Empty response from model."))
		s.recordUsage()
		return
	}

	if s.gate.Strategy() == guardrail.StrategyIntent {
		s.finishIntentTurn(response)
	} else {
		s.finishCheckedTurn(ctx, response, streamLive && printed)
	}
	s.recordUsage()
}

// finishIntentTurn parses the self-assessment and displays the answer.
func (s *ChatSession) finishIntentTurn(response string) {
	res := guardrail.ParseIntentResponse(response)

	if s.cfg.UI.ShowIntent && res.Intent != "" {
		fmt.Println(IntentStyle.Render("Intent: " + res.Intent))
	}
	if !res.Allowed {
		s.printBlocked(res.Reason)
		return
	}

	answer := res.Answer
	if answer == "" {
		answer = response
	}
	displayResponse(answer, s.cfg.UI.RenderMarkdown, s.cfg.UI.ShowPanels)
	s.conversation.AddAssistant(answer)
	s.stats.RecordTurn()
}

// finishCheckedTurn runs the output gate and displays the response.
func (s *ChatSession) finishCheckedTurn(ctx context.Context, response string, alreadyShown bool) {
	if verdict := s.gate.CheckOutput(ctx, response); !verdict.Allowed {
		s.printBlocked(verdict.Reason)
		return
	}
	if !alreadyShown {
		displayResponse(response, s.cfg.UI.RenderMarkdown, s.cfg.UI.ShowPanels)
	}
	s.conversation.AddAssistant(response)
	s.stats.RecordTurn()
}

// propagateInterrupts forwards the ESC flag to the decoder even while
// no fragments are arriving, so a stalled stream stays interruptible.
func (s *ChatSession) propagateInterrupts() (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interruptPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if s.monitor.Interrupted() {
					s.decoder.Interrupt()
					return
				}
			}
		}
	}()
	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}

// recordUsage folds the stream's usage record into the ledger. Usage
// is billed by the provider even when the guardrail blocked display,
// so it is recorded regardless of the turn's outcome.
func (s *ChatSession) recordUsage() {
	u := s.decoder.LastUsage()
	if u == nil {
		return
	}
	s.ledger.Add(u.PromptTokens, u.CompletionTokens)
	if s.cfg.UI.ShowCost {
		fmt.Println(CostStyle.Render(s.ledger.Format()))
	}
}

// printBlocked reports a guardrail block.
func (s *ChatSession) printBlocked(reason string) {
	if reason == "" {
		reason = "Content blocked by safety guardrail"
	}
	fmt.Println(BlockedStyle.Render("Blocked: ") + reason)
	s.stats.RecordBlocked()
}

// printError reports a failed request with secrets redacted.
// SECURITY: Never echo raw error text; it can contain the API token.
func (s *ChatSession) printError(err error) {
	msg := security.Redact(err.Error(), s.token)

	var apiErr *openrouter.APIError
	switch {
	case errors.As(err, &apiErr):
		fmt.Println(ErrorStyle.Render("API error: ") + security.Redact(apiErr.Message, s.token) +
			DimStyle.Render(fmt.Sprintf(" (HTTP %d)", apiErr.Status)))
	case errors.Is(err, openrouter.ErrNetwork):
		fmt.Println(ErrorStyle.Render("Network error: ") + msg)
		fmt.Println(DimStyle.Render("Check your connection and try again."))
	default:
		fmt.Println(ErrorStyle.Render("Error: ") + msg)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand dispatches /commands. Returns true to quit.
func (s *ChatSession) handleSlashCommand(input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		printHelp()
	case "/clear":
		s.conversation.Clear()
		s.installSystemPrompt()
		fmt.Println(DimStyle.Render("Conversation history cleared."))
	case "/model":
		s.handleModelCommand(args)
	case "/status":
		printStatus(s)
	case "/history":
		printHistory(s)
	case "/quit", "/exit":
		return true
	default:
		fmt.Println(WarningStyle.Render("Unknown command: " + cmd))
		fmt.Println(DimStyle.Render("Type /help for available commands."))
	}
	return false
}

// handleModelCommand shows or switches the active model.
func (s *ChatSession) handleModelCommand(args []string) {
	if len(args) == 0 {
		fmt.Println("Current model: " + TitleStyle.Render(s.cfg.Model))
		return
	}
	model := args[0]
	s.cfg.Model = model
	s.ledger.SetModel(model)
	fmt.Println(SuccessStyle.Render("✓") + " Switched to " + TitleStyle.Render(model))
	if _, known := chat.LookupPricing(model); !known {
		fmt.Println(DimStyle.Render("No pricing data for this model; cost estimates unavailable."))
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

func printWelcome(s *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("termchat") + DimStyle.Render(" · "+s.cfg.Model))
	fmt.Println(DimStyle.Render(fmt.Sprintf("Guardrail: %s · token from %s",
		s.gate.Strategy(), s.tokenSource)))
	fmt.Println(DimStyle.Render("Type /help for commands, ESC interrupts a response, bye exits."))
	fmt.Println(RenderSeparator(min(GetTerminalWidth(), 60)))
	fmt.Println()
}

func printHelp() {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Commands"))
	fmt.Println("  /help      Show this help")
	fmt.Println("  /clear     Clear conversation history")
	fmt.Println("  /model     Show or switch the active model (/model provider/name)")
	fmt.Println("  /status    Show session status and usage")
	fmt.Println("  /history   Show conversation history")
	fmt.Println("  /quit      End the session (also: bye, quit, exit)")
	fmt.Println()
}

func printStatus(s *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Session status"))
	fmt.Printf("  Model:      %s\n", s.cfg.Model)
	fmt.Printf("  Guardrail:  %s", s.gate.Strategy())
	if s.gate.Strategy() == guardrail.StrategyExternal {
		fmt.Printf(" (%s, checks %s)", s.cfg.Guardrail.Model, s.cfg.Guardrail.CheckDirection)
	}
	fmt.Println()
	fmt.Printf("  Token:      %s\n", s.tokenSource)
	fmt.Printf("  Messages:   %d in window\n", s.conversation.Len())
	fmt.Printf("  %s\n", s.ledger.Format())
	fmt.Printf("  %s\n", s.stats.Summary())
	fmt.Println()
}

func printHistory(s *ChatSession) {
	msgs := s.conversation.Messages()
	if len(msgs) == 0 {
		fmt.Println(DimStyle.Render("No messages yet."))
		return
	}
	width := GetTerminalWidth() - 14
	fmt.Println()
	for i, m := range msgs {
		role := m.Role
		line := strings.ReplaceAll(m.Content, "\n", " ")
		fmt.Printf("  %2d %s %s\n", i+1,
			DimStyle.Render(fmt.Sprintf("%-9s", role)),
			util.TruncateWidth(line, width))
	}
	fmt.Println()
}

func printExitSummary(s *ChatSession) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("Goodbye!"))
	fmt.Println(DimStyle.Render(s.stats.Summary()))
	fmt.Println(CostStyle.Render(s.ledger.Format()))
	fmt.Println()
}
