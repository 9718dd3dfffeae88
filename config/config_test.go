package config

import (
	"os"
	"path/filepath"
	"testing"

	"parley/toolhub"
)

func TestExpandPath(t *testing.T) {
	home := GetHomeDir()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde prefix", "~/data", filepath.Join(home, "data")},
		{"absolute untouched", "/var/lib/parley", "/var/lib/parley"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultUserConfig()
	cfg.DefaultProvider = "anthropic"
	cfg.DefaultModel = "claude-sonnet-4-5"
	cfg.ToolServers = []toolhub.ServerConfig{
		{
			ID:      "brave",
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-brave-search"},
			Env:     map[string]string{"BRAVE_API_KEY": "test"},
		},
		{
			ID:      "remote",
			URL:     "https://mcp.example.com/stream",
			Headers: map[string]string{"Authorization": "Bearer test"},
		},
	}

	if err := SaveUserConfig(cfg, dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if perms := info.Mode().Perm(); perms != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perms)
	}

	loaded, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DefaultProvider != "anthropic" {
		t.Errorf("default provider not preserved: %q", loaded.DefaultProvider)
	}
	if loaded.HistoryCharBudget != cfg.HistoryCharBudget || loaded.HistoryCharBudget <= 0 {
		t.Errorf("history budget not preserved: %d", loaded.HistoryCharBudget)
	}
	if len(loaded.ToolServers) != 2 {
		t.Fatalf("expected 2 tool servers, got %d", len(loaded.ToolServers))
	}
	if loaded.ToolServers[0].Command != "npx" {
		t.Errorf("stdio server command lost: %q", loaded.ToolServers[0].Command)
	}
	if loaded.ToolServers[1].URL == "" {
		t.Error("remote server URL lost")
	}
}

func TestLoadUserConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("unexpected default provider: %q", cfg.DefaultProvider)
	}
	if !FileExists(filepath.Join(dir, "config.toml")) {
		t.Error("first load must write the defaults to disk")
	}
}

func TestConfigProviderLookup(t *testing.T) {
	cfg := &Config{User: DefaultUserConfig()}

	p := cfg.Provider("ollama")
	if p == nil || !p.Enabled {
		t.Fatalf("ollama settings missing or disabled: %+v", p)
	}
	if cfg.Provider("nonexistent") != nil {
		t.Error("unknown provider must return nil")
	}

	enabled := cfg.EnabledProviders()
	if len(enabled) != 1 || enabled[0].ID != "ollama" {
		t.Errorf("expected only ollama enabled by default, got %+v", enabled)
	}
}
