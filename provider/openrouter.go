package provider

import (
	"context"
	"fmt"
	"strings"

	"parley/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenRouterProvider streams chat turns through OpenRouter's
// OpenAI-compatible API, reusing the OpenAI SDK and stream translation.
// The one wrinkle is tool naming: OpenRouter rejects dots in tool
// names, so namespaced names are mangled on the way out and restored on
// the way back.
type OpenRouterProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

// NewOpenRouterProvider creates an OpenRouter provider. The API key is
// required; baseURL and model fall back to sensible defaults.
func NewOpenRouterProvider(baseURL, apiKey, modelName string) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if modelName == "" {
		modelName = "meta-llama/llama-3.2-90b-instruct"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenRouterProvider{
		client:  client,
		model:   modelName,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// mangleToolNames rewrites "server.tool" to "server__tool" for the
// API's ^[a-zA-Z0-9_-]{1,64}$ tool name constraint.
func mangleToolNames(tools []mcptypes.Tool) []mcptypes.Tool {
	converted := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		converted[i] = tool
		converted[i].Name = strings.ReplaceAll(tool.Name, ".", "__")
	}
	return converted
}

func unmangleToolName(toolName string) string {
	return strings.ReplaceAll(toolName, "__", ".")
}

// SendMessage implements model.Provider.
func (p *OpenRouterProvider) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls) <-chan model.StreamEvent {
	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		streamChatCompletions(ctx, p.client, p.model, messages,
			mangleToolNames(tools), controls, events, unmangleToolName)
	}()
	return events
}

// ListModels implements model.Provider. OpenRouter names carry a
// vendor prefix; the display name strips it while InternalName keeps
// the full API identifier.
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenRouter models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		display := m.ID
		if idx := strings.Index(display, "/"); idx != -1 {
			display = display[idx+1:]
		}
		result = append(result, model.ModelInfo{
			Name:         display,
			InternalName: m.ID,
			Provider:     "openrouter",
		})
	}
	return result, nil
}

// GetModel implements model.Provider.
func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// GetDisplayName strips the vendor prefix for UI display.
func (p *OpenRouterProvider) GetDisplayName() string {
	if idx := strings.Index(p.model, "/"); idx != -1 {
		return p.model[idx+1:]
	}
	return p.model
}

// SetModel implements model.Provider.
func (p *OpenRouterProvider) SetModel(modelName string) {
	p.model = modelName
}

// Ping implements model.Provider by listing models.
func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}
