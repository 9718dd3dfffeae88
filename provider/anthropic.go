package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"parley/model"
	"parley/toolhub"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// AnthropicProvider streams chat turns through Anthropic's official Go
// SDK. It is the only adapter that surfaces thinking blocks, thinking
// signatures, and server-side web search activity.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	apiKey  string
}

// NewAnthropicProvider creates an Anthropic provider. The API key is
// required; baseURL and model fall back to sensible defaults.
func NewAnthropicProvider(baseURL, apiKey, modelName string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if modelName != "" {
		anthropicModel = anthropic.Model(modelName)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// SendMessage implements model.Provider.
func (p *AnthropicProvider) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls) <-chan model.StreamEvent {
	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		p.stream(ctx, messages, tools, controls, events)
	}()
	return events
}

func (p *AnthropicProvider) stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls, events chan<- model.StreamEvent) {
	anthropicMessages, systemBlocks := toAnthropicMessages(messages)

	maxTokens := int64(controls.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: maxTokens,
	}
	if controls.Temperature > 0 {
		params.Temperature = anthropic.Float(controls.Temperature)
	}
	if budget := thinkingBudget(controls.ThinkingEffort); budget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = toolhub.ToAnthropicTools(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}

	if !emit(ctx, events, model.StreamEvent{Kind: model.EventMessageStart}) {
		return
	}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			emitErr(ctx, events, fmt.Errorf("failed to accumulate message: %w", err))
			return
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			switch block := eventVariant.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				// Arguments come later; announce the call so the UI can
				// show it in flight.
				ok := emit(ctx, events, model.StreamEvent{
					Kind:     model.EventToolCallStart,
					ToolCall: &model.ToolCallFragment{ID: block.ID, Name: block.Name},
				})
				if !ok {
					return
				}
			case anthropic.RedactedThinkingBlock:
				ok := emit(ctx, events, model.StreamEvent{
					Kind:     model.EventThinkingDelta,
					Thinking: &model.ThinkingFragment{Redacted: []byte(block.Data)},
				})
				if !ok {
					return
				}
			case anthropic.ServerToolUseBlock:
				ok := emit(ctx, events, model.StreamEvent{
					Kind: model.EventSearchActivity,
					Activity: &model.SearchActivity{
						ID:     block.ID,
						Type:   string(block.Name),
						Status: model.ActivitySearching,
					},
				})
				if !ok {
					return
				}
			case anthropic.WebSearchToolResultBlock:
				ok := emit(ctx, events, model.StreamEvent{
					Kind: model.EventSearchActivity,
					Activity: &model.SearchActivity{
						ID:     block.ToolUseID,
						Status: model.ActivityCompleted,
					},
				})
				if !ok {
					return
				}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if !emit(ctx, events, model.StreamEvent{Kind: model.EventContentDelta, Text: deltaVariant.Text}) {
					return
				}
			case anthropic.ThinkingDelta:
				ok := emit(ctx, events, model.StreamEvent{
					Kind:     model.EventThinkingDelta,
					Thinking: &model.ThinkingFragment{Text: deltaVariant.Thinking},
				})
				if !ok {
					return
				}
			case anthropic.SignatureDelta:
				ok := emit(ctx, events, model.StreamEvent{
					Kind:     model.EventThinkingDelta,
					Thinking: &model.ThinkingFragment{Signature: deltaVariant.Signature},
				})
				if !ok {
					return
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		emitErr(ctx, events, fmt.Errorf("Anthropic streaming error: %w", err))
		return
	}

	// Tool call arguments stream as partial JSON; the accumulated
	// message carries the complete input, so finalize from there.
	for _, block := range msg.Content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				args = make(map[string]any)
			}
			ok := emit(ctx, events, model.StreamEvent{
				Kind: model.EventToolCallEnd,
				ToolCall: &model.ToolCallFragment{
					ID:        toolUse.ID,
					Name:      toolUse.Name,
					Arguments: args,
				},
			})
			if !ok {
				return
			}
		}
	}

	emit(ctx, events, model.StreamEvent{Kind: model.EventMessageEnd})
}

// thinkingBudget maps an effort level to a thinking token budget.
func thinkingBudget(effort string) int64 {
	switch effort {
	case "low":
		return 1024
	case "medium":
		return 4096
	case "high":
		return 16384
	default:
		return 0
	}
}

// ListModels returns a curated list; Anthropic has no models endpoint.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}
	return result, nil
}

// GetModel implements model.Provider.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// GetDisplayName implements model.Provider.
func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

// SetModel implements model.Provider.
func (p *AnthropicProvider) SetModel(modelName string) {
	p.model = anthropic.Model(modelName)
}

// Ping makes a minimal request; Anthropic has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// toAnthropicMessages converts conversation history to Anthropic's
// format. System messages become system blocks; tool results become
// tool_result blocks inside a user message, as the API requires.
func toAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Text()})

		case model.RoleUser:
			result = append(result, anthropic.NewUserMessage(partsToAnthropicBlocks(msg.Parts)...))

		case model.RoleAssistant:
			blocks := partsToAnthropicBlocks(msg.Parts)
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: call.Arguments,
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			}

		case model.RoleTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolRes))
			for _, res := range msg.ToolRes {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: res.ToolCallID,
						IsError:   anthropic.Bool(res.IsError),
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{OfText: &anthropic.TextBlockParam{Text: res.Content}},
						},
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text())))
		}
	}

	return result, systemBlocks
}

func partsToAnthropicBlocks(parts []model.ContentPart) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch part.Kind {
		case model.PartText:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case model.PartThinking:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfThinking: &anthropic.ThinkingBlockParam{
					Thinking:  part.Text,
					Signature: part.Signature,
				},
			})
		case model.PartRedactedThinking:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfRedactedThinking: &anthropic.RedactedThinkingBlockParam{
					Data: string(part.Data),
				},
			})
		case model.PartImage:
			blocks = append(blocks, anthropic.NewImageBlockBase64(
				part.MimeType,
				base64.StdEncoding.EncodeToString(part.Data),
			))
		}
	}
	return blocks
}
