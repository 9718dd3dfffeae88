// Package provider implements the model.Provider contract for each
// supported LLM backend: Ollama, OpenAI, OpenRouter, and Anthropic.
//
// Every adapter translates between parley's provider-agnostic message
// and event types and the backend's SDK types, and streams responses
// over a channel of model.StreamEvent. The interface itself lives in
// the model package to avoid import cycles.
package provider

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}
