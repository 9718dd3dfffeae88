// Package config loads and persists parley's on-disk configuration: the
// system settings file pointing at the data directory, the user config with
// provider and tool server definitions, and the credential store.
package config

import (
	"fmt"
	"os"

	"parley/toolhub"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderSettings is the per-provider block of the user config. API keys
// live in the credential store, never here.
type ProviderSettings struct {
	ID      string `toml:"id"`
	Name    string `toml:"name,omitempty"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

type SecuritySettings struct {
	Method     string `toml:"method,omitempty"` // "plaintext" or "ssh_key"
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	DefaultProvider     string                 `toml:"default_provider"`
	DefaultModel        string                 `toml:"default_model"`
	DefaultSystemPrompt string                 `toml:"default_system_prompt,omitempty"`
	MaxTokens           int                    `toml:"max_tokens,omitempty"`
	Temperature         float64                `toml:"temperature,omitempty"`
	ThinkingEffort      string                 `toml:"thinking_effort,omitempty"`
	HistoryCharBudget   int                    `toml:"history_char_budget,omitempty"`
	Security            SecuritySettings       `toml:"security"`
	Providers           []ProviderSettings     `toml:"providers"`
	ToolServers         []toolhub.ServerConfig `toml:"tool_servers"`
}

// Config is the resolved runtime configuration after merging the system
// settings, the user config, and environment overrides.
type Config struct {
	DataDirectory string
	User          *UserConfig
	Credentials   *CredentialStore
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Provider returns the settings block for a provider id, or nil.
func (c *Config) Provider(id string) *ProviderSettings {
	for i := range c.User.Providers {
		if c.User.Providers[i].ID == id {
			return &c.User.Providers[i]
		}
	}
	return nil
}

// EnabledProviders returns the providers the user has switched on.
func (c *Config) EnabledProviders() []ProviderSettings {
	var out []ProviderSettings
	for _, p := range c.User.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("PARLEY_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if prov := os.Getenv("PARLEY_PROVIDER"); prov != "" {
		c.User.DefaultProvider = prov
	}
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.User.DefaultModel = model
	}
	if host := os.Getenv("PARLEY_OLLAMA_HOST"); host != "" {
		if p := c.Provider("ollama"); p != nil {
			p.BaseURL = host
		}
	}
}

// Load reads the system settings and user config, creating defaults on first
// run, and opens the credential store. Env vars override the file values.
func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	if dataDir := os.Getenv("PARLEY_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.User = userCfg
	cfg.applyEnvOverrides()

	method := SecurityMethod(userCfg.Security.Method)
	if method == "" {
		method = SecurityPlainText
	}
	creds := NewCredentialStore(method, ExpandPath(userCfg.Security.SSHKeyPath))
	if err := creds.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.Credentials = creds

	return cfg, nil
}
