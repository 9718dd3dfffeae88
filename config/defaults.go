package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/parley",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DefaultProvider: "ollama",
		DefaultModel:    "llama3.1:latest",
		// Roughly 30k tokens of history per request.
		HistoryCharBudget: 120000,
		Security: SecuritySettings{
			Method: string(SecurityPlainText),
		},
		Providers: []ProviderSettings{
			{
				ID:      "ollama",
				Name:    "Ollama",
				Enabled: true,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1:latest",
			},
			{
				ID:      "anthropic",
				Name:    "Anthropic",
				Enabled: false,
				BaseURL: "https://api.anthropic.com",
			},
			{
				ID:      "openai",
				Name:    "OpenAI",
				Enabled: false,
				BaseURL: "https://api.openai.com/v1",
			},
			{
				ID:      "openrouter",
				Name:    "OpenRouter",
				Enabled: false,
				BaseURL: "https://openrouter.ai/api/v1",
			},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Parley System Configuration
# Location: ~/.config/parley/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations and user config are stored
data_directory = "~/.local/share/parley"
`
}
