package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parley/model"
	"parley/toolhub"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

// OllamaProvider streams chat turns through a local Ollama server using
// the official ollama/api client. Ollama does not assign tool call IDs,
// so the adapter synthesizes one per call.
type OllamaProvider struct {
	client  *api.Client
	model   string
	baseURL string
}

// NewOllamaProvider creates an Ollama provider. Both arguments default
// when empty.
func NewOllamaProvider(baseURL, modelName string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// SendMessage implements model.Provider.
func (p *OllamaProvider) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls) <-chan model.StreamEvent {
	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		p.stream(ctx, messages, tools, controls, events)
	}()
	return events
}

func (p *OllamaProvider) stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls, events chan<- model.StreamEvent) {
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: toOllamaMessages(messages),
		Stream:   func(b bool) *bool { return &b }(true),
	}
	if len(tools) > 0 && p.SupportsToolCalling() {
		req.Tools = toolhub.ToOllamaTools(tools)
	}
	if controls.ThinkingEffort != "" {
		req.Think = &api.ThinkValue{Value: controls.ThinkingEffort}
	}

	options := make(map[string]any)
	if controls.Temperature > 0 {
		options["temperature"] = controls.Temperature
	}
	if controls.MaxTokens > 0 {
		options["num_predict"] = controls.MaxTokens
	}
	if len(options) > 0 {
		req.Options = options
	}

	if !emit(ctx, events, model.StreamEvent{Kind: model.EventMessageStart}) {
		return
	}

	respFunc := func(resp api.ChatResponse) error {
		if resp.Message.Thinking != "" {
			ok := emit(ctx, events, model.StreamEvent{
				Kind:     model.EventThinkingDelta,
				Thinking: &model.ThinkingFragment{Text: resp.Message.Thinking},
			})
			if !ok {
				return ctx.Err()
			}
		}
		if resp.Message.Content != "" {
			if !emit(ctx, events, model.StreamEvent{Kind: model.EventContentDelta, Text: resp.Message.Content}) {
				return ctx.Err()
			}
		}
		// Ollama delivers complete calls, never partial fragments.
		for _, call := range resp.Message.ToolCalls {
			ok := emit(ctx, events, model.StreamEvent{
				Kind: model.EventToolCallEnd,
				ToolCall: &model.ToolCallFragment{
					ID:        "ollama-" + uuid.NewString(),
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
			if !ok {
				return ctx.Err()
			}
		}
		return nil
	}

	if err := p.client.Chat(ctx, req, respFunc); err != nil {
		if ctx.Err() != nil {
			return
		}
		emitErr(ctx, events, fmt.Errorf("Ollama streaming error: %w", err))
		return
	}

	emit(ctx, events, model.StreamEvent{Kind: model.EventMessageEnd})
}

// ListModels implements model.Provider.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name,
			Size:         m.Size,
			Provider:     "ollama",
		}
	}
	return models, nil
}

// GetModel implements model.Provider.
func (p *OllamaProvider) GetModel() string {
	return p.model
}

// GetDisplayName implements model.Provider.
func (p *OllamaProvider) GetDisplayName() string {
	return p.model
}

// SetModel implements model.Provider.
func (p *OllamaProvider) SetModel(modelName string) {
	p.model = modelName
}

// Ping implements model.Provider with a bounded list call.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.List(ctx)
	return err
}

// toOllamaMessages converts conversation history to Ollama's format.
// Thinking parts are dropped; local models cannot resume them.
func toOllamaMessages(messages []model.Message) []api.Message {
	var result []api.Message
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleTool:
			for _, res := range msg.ToolRes {
				result = append(result, api.Message{
					Role:     "tool",
					Content:  res.Content,
					ToolName: res.ToolName,
				})
			}
		default:
			out := api.Message{Role: msg.Role, Content: msg.Text()}
			for _, part := range msg.Parts {
				if part.Kind == model.PartImage {
					out.Images = append(out.Images, api.ImageData(part.Data))
				}
			}
			result = append(result, out)
		}
	}
	return result
}

// Tool calling support by model family, curated from Ollama docs and
// community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false,
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// Most specific prefixes first, so llama3.2 is not misread as llama3.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// SupportsToolCalling reports whether the current model is known to
// support Ollama's tool calling API. Unknown models default to false.
func (p *OllamaProvider) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(p.model)
}

// ModelSupportsToolCalling checks a model name against the curated
// support table without needing a provider instance.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}
	return false
}
