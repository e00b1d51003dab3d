// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run wizard for termchat.
//
// The setup wizard walks through:
//   1. OpenRouter API token entry
//   2. Model selection
//   3. Saving the token to the encrypted keystore

package cli

import (
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/jeranaias/termchat/internal/config"
	"github.com/jeranaias/termchat/internal/security"
)

// =============================================================================
// SETUP WIZARD
// =============================================================================

// setupModels are the suggested choices; the last entry opens a free
// text prompt for any provider/model pair OpenRouter serves.
var setupModels = []string{
	"anthropic/claude-haiku-4.5",
	"openai/gpt-5-mini",
	"google/gemini-2.5-flash",
	"other (enter a model name)",
}

// RunSetup walks the user through first-run configuration: token,
// model, and keystore. Returns the saved config.
func RunSetup(cfg *config.Config) (*config.Config, error) {
	if !IsTTY() {
		return nil, fmt.Errorf("%w: setup requires an interactive terminal; set %s and TERMCHAT_MODEL instead",
			config.ErrIncomplete, security.EnvTokenVar)
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("termchat setup"))
	fmt.Println(DimStyle.Render("Get an API token at https://openrouter.ai/keys"))
	fmt.Println()

	if cfg == nil {
		cfg = config.Default()
	}

	// A plaintext token already in the config file can be reused and
	// migrated into the keystore instead of re-entered.
	var token string
	if cfg.APIToken != "" && PromptYesNo("Found an API token in the config file. Keep it and move it to the encrypted keystore?", true) {
		token = cfg.APIToken
	} else {
		var err error
		token, err = readToken()
		if err != nil {
			return nil, err
		}
	}

	model := ""
	choice := PromptChoice("Choose a default model:", setupModels)
	switch {
	case choice < 0:
		return nil, fmt.Errorf("no model selected")
	case choice == len(setupModels)-1:
		model = PromptLine("Model name (format: provider/model)")
		if model == "" {
			return nil, fmt.Errorf("no model selected")
		}
	default:
		model = setupModels[choice]
	}
	cfg.Model = model

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	// Token goes to the encrypted keystore; the config file only gets
	// a plaintext copy when sealing fails.
	store := security.NewTokenStore(dir)
	if err := store.Save(token); err != nil {
		fmt.Println(WarningStyle.Render("Warning: could not store token in keystore: " + security.Redact(err.Error(), token)))
		fmt.Println(DimStyle.Render("Saving token to the config file instead (0600 permissions)."))
		cfg.APIToken = token
	} else {
		fmt.Println(SuccessStyle.Render("✓") + " API token stored in encrypted keystore")
		cfg.APIToken = ""
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	path, _ := config.Path()
	fmt.Println(SuccessStyle.Render("✓") + " Configuration saved to " + path)
	fmt.Println()
	fmt.Println(SuccessStyle.Render("Setup complete!") + " Start chatting with " + TitleStyle.Render("termchat") + ".")
	fmt.Println()
	return cfg, nil
}

// readToken reads the API token with echo disabled.
func readToken() (string, error) {
	fmt.Print("OpenRouter API token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := string(raw)
	if token == "" {
		return "", fmt.Errorf("no token entered")
	}
	return token, nil
}

// migrateToken seals a plaintext config token into the keystore and
// clears the config copy. Persisting the config is the caller's job.
func migrateToken(cfg *config.Config, store *security.TokenStore, token string) error {
	if err := store.Save(token); err != nil {
		return err
	}
	cfg.APIToken = ""
	return nil
}

// offerTokenMigration warns about a plaintext token in the config file
// and, on an interactive terminal, offers to move it into the
// keystore. Returns the token's source after the offer.
func offerTokenMigration(cfg *config.Config, store *security.TokenStore, token string) security.TokenSource {
	// SECURITY: A plaintext token on disk outlives shell history and
	// backups; nudge toward the keystore every run until it moves.
	fmt.Println(WarningStyle.Render("Security notice: ") + "your API token is stored in plaintext in the config file.")
	if !IsTTY() {
		fmt.Println(DimStyle.Render("Run termchat --setup to move it into the encrypted keystore."))
		return security.SourceConfig
	}
	if !PromptYesNo("Move it to the encrypted keystore now?", true) {
		return security.SourceConfig
	}
	if err := migrateToken(cfg, store, token); err != nil {
		fmt.Println(WarningStyle.Render("Warning: could not migrate token: " + security.Redact(err.Error(), token)))
		return security.SourceConfig
	}
	if err := cfg.Save(); err != nil {
		fmt.Println(WarningStyle.Render("Warning: could not update config: " + security.Redact(err.Error(), token)))
	}
	fmt.Println(SuccessStyle.Render("✓") + " API token moved to the encrypted keystore")
	return security.SourceKeystore
}

// EnsureReady loads config and resolves the token, running setup when
// either is missing. Returns the config and the resolved token.
func EnsureReady() (*config.Config, string, security.TokenSource, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", security.SourceNone, err
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, "", security.SourceNone, err
	}
	store := security.NewTokenStore(dir)

	token, source := security.ResolveToken(store, cfg.APIToken)
	if cfg.Complete() && token != "" {
		if source == security.SourceConfig {
			source = offerTokenMigration(cfg, store, token)
		}
		return cfg, token, source, nil
	}

	cfg, err = RunSetup(cfg)
	if err != nil {
		return nil, "", security.SourceNone, err
	}
	token, source = security.ResolveToken(store, cfg.APIToken)
	if token == "" {
		return nil, "", security.SourceNone, fmt.Errorf("no API token available after setup")
	}
	return cfg, token, source, nil
}
