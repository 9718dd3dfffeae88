package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI,
// OpenRouter, Anthropic) using provider-agnostic types from this package.
//
// The interface lives here rather than in the provider package to avoid
// import cycles: provider implementations import model, and the engine
// uses Provider without importing the provider package.
type Provider interface {
	// SendMessage opens one streaming round. Events arrive in provider
	// order on the returned channel, which is closed at stream end. A
	// provider failure is delivered as a terminal EventError; the channel
	// is closed afterwards either way.
	SendMessage(ctx context.Context, messages []Message, tools []mcptypes.Tool, controls Controls) <-chan StreamEvent

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name (the internal
	// name used for API calls, including any vendor prefix).
	GetModel() string

	// GetDisplayName returns the model name formatted for UI display.
	// OpenRouter strips the vendor prefix; others return GetModel().
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Controls are the generation knobs passed through to an adapter.
type Controls struct {
	MaxTokens      int
	Temperature    float64
	ThinkingEffort string // "", "low", "medium", "high"
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	Name         string // display name (vendor prefix stripped for OpenRouter)
	InternalName string // full API name (e.g. "meta-llama/llama-3.2-90b")
	Size         int64
	Provider     string // provider ID: "ollama", "openrouter", "openai", "anthropic"
}
