// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.MaxTokens)
	}
	if cfg.MaxInputLength != 10000 {
		t.Errorf("MaxInputLength = %d, want 10000", cfg.MaxInputLength)
	}
	if cfg.Guardrail.Strategy != "system" {
		t.Errorf("Guardrail.Strategy = %q, want system", cfg.Guardrail.Strategy)
	}
	if cfg.Guardrail.Model != DefaultGuardrailModel {
		t.Errorf("Guardrail.Model = %q", cfg.Guardrail.Model)
	}
	if cfg.Guardrail.CheckDirection != "both" {
		t.Errorf("CheckDirection = %q, want both", cfg.Guardrail.CheckDirection)
	}
	if !cfg.UI.RenderMarkdown || !cfg.UI.ShowPanels || cfg.UI.ShowCost {
		t.Error("UI defaults wrong")
	}
	if cfg.Complete() {
		t.Error("default config must not be complete (no model)")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath on missing file: %v", err)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want defaults", cfg.MaxTokens)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Model = "openai/gpt-5-mini"
	cfg.MaxTokens = 1234
	cfg.Guardrail.Strategy = "external"
	cfg.UI.ShowCost = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Model != "openai/gpt-5-mini" {
		t.Errorf("Model = %q", loaded.Model)
	}
	if loaded.MaxTokens != 1234 {
		t.Errorf("MaxTokens = %d", loaded.MaxTokens)
	}
	if loaded.Guardrail.Strategy != "external" {
		t.Errorf("Strategy = %q", loaded.Guardrail.Strategy)
	}
	if !loaded.UI.ShowCost {
		t.Error("ShowCost lost in roundtrip")
	}
}

func TestSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 0600", perm)
	}
}

func TestValidateFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Guardrail.Strategy = "turbo"
	cfg.Guardrail.CheckDirection = "sideways"
	cfg.MaxTokens = -1
	cfg.Validate()

	if cfg.Guardrail.Strategy != "system" {
		t.Errorf("invalid strategy = %q, want system fallback", cfg.Guardrail.Strategy)
	}
	if cfg.Guardrail.CheckDirection != "both" {
		t.Errorf("invalid direction = %q, want both fallback", cfg.Guardrail.CheckDirection)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want clamped default", cfg.MaxTokens)
	}
}

func TestValidateNormalizesCase(t *testing.T) {
	cfg := Default()
	cfg.Guardrail.Strategy = "External"
	cfg.Validate()
	if cfg.Guardrail.Strategy != "external" {
		t.Errorf("Strategy = %q, want lowercased", cfg.Guardrail.Strategy)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TERMCHAT_MODEL", "env/model")
	t.Setenv("TERMCHAT_GUARDRAIL", "none")
	t.Setenv("TERMCHAT_MAX_TOKENS", "2048")

	cfg := Default()
	cfg.Model = "file/model"
	cfg.ApplyEnvOverrides()

	if cfg.Model != "env/model" {
		t.Errorf("Model = %q, want env override", cfg.Model)
	}
	if cfg.Guardrail.Strategy != "none" {
		t.Errorf("Strategy = %q", cfg.Guardrail.Strategy)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d", cfg.MaxTokens)
	}
}

func TestEnvOverrideBadNumberIgnored(t *testing.T) {
	t.Setenv("TERMCHAT_MAX_TOKENS", "lots")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want default kept on bad env value", cfg.MaxTokens)
	}
}

func TestPartialFileBackfilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("model = \"openai/gpt-5-mini\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Model != "openai/gpt-5-mini" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.SystemPrompt == "" || cfg.Guardrail.Strategy != "system" {
		t.Error("unset fields not backfilled with defaults")
	}
	if !cfg.Complete() {
		t.Error("config with model should be complete")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("model = \"a/one\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case got <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("model = \"b/two\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Model != "b/two" {
			t.Errorf("reloaded model = %q, want b/two", cfg.Model)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within timeout")
	}
}
