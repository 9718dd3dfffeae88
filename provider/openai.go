package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"parley/model"
	"parley/toolhub"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider streams chat turns through OpenAI's official Go SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates an OpenAI provider. The API key is
// required; baseURL and model fall back to sensible defaults.
func NewOpenAIProvider(baseURL, apiKey, modelName string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   modelName,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// SendMessage implements model.Provider.
func (p *OpenAIProvider) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls) <-chan model.StreamEvent {
	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		streamChatCompletions(ctx, p.client, p.model, messages, tools, controls, events, nil)
	}()
	return events
}

// streamChatCompletions runs one streaming chat completion and
// translates chunks into stream events. It is shared by the OpenAI and
// OpenRouter adapters; mapToolName reverses any tool name mangling the
// caller applied for API compatibility (nil means no mangling).
func streamChatCompletions(ctx context.Context, client openai.Client, modelName string, messages []model.Message, tools []mcptypes.Tool, controls model.Controls, events chan<- model.StreamEvent, mapToolName func(string) string) {
	if len(tools) > 0 && !shouldSkipToolInstructions(modelName) {
		instruction := model.TextMessage(model.RoleSystem, buildToolInstructions(tools))
		messages = append([]model.Message{instruction}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(messages),
		Model:    openai.ChatModel(modelName),
	}
	if controls.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(controls.MaxTokens))
	}
	if controls.Temperature > 0 {
		params.Temperature = openai.Float(controls.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = toolhub.ToOpenAITools(tools)
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	if !emit(ctx, events, model.StreamEvent{Kind: model.EventMessageStart}) {
		return
	}

	var (
		toolCallsSeen bool
		fullContent   string
		idsByIndex    = make(map[int64]string)
	)

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta

			// Announce new tool calls as the model opens them; the
			// chunk with the ID also carries the tool name.
			for _, tc := range delta.ToolCalls {
				if tc.ID == "" {
					continue
				}
				idsByIndex[tc.Index] = tc.ID
				name := tc.Function.Name
				if mapToolName != nil {
					name = mapToolName(name)
				}
				ok := emit(ctx, events, model.StreamEvent{
					Kind:     model.EventToolCallStart,
					ToolCall: &model.ToolCallFragment{ID: tc.ID, Name: name},
				})
				if !ok {
					return
				}
			}

			if delta.Content != "" {
				fullContent += delta.Content
				if !emit(ctx, events, model.StreamEvent{Kind: model.EventContentDelta, Text: delta.Content}) {
					return
				}
			}
		}

		if tool, ok := acc.JustFinishedToolCall(); ok {
			toolCallsSeen = true
			name := tool.Name
			if mapToolName != nil {
				name = mapToolName(name)
			}
			sent := emit(ctx, events, model.StreamEvent{
				Kind: model.EventToolCallEnd,
				ToolCall: &model.ToolCallFragment{
					ID:        idsByIndex[int64(tool.Index)],
					Name:      name,
					Arguments: ParseToolArguments(tool.Arguments),
				},
			})
			if !sent {
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		emitErr(ctx, events, fmt.Errorf("streaming error: %w", err))
		return
	}

	// Some models write their calls into the text instead of the tool
	// channel. Recover them so the turn can still execute.
	if !toolCallsSeen {
		for _, call := range ParseLeakedToolCalls(fullContent) {
			if mapToolName != nil {
				call.Name = mapToolName(call.Name)
			}
			ok := emit(ctx, events, model.StreamEvent{
				Kind: model.EventToolCallEnd,
				ToolCall: &model.ToolCallFragment{
					ID:        call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
			if !ok {
				return
			}
		}
	}

	emit(ctx, events, model.StreamEvent{Kind: model.EventMessageEnd})
}

// ListModels implements model.Provider.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     "openai",
		})
	}
	return result, nil
}

// GetModel implements model.Provider.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// GetDisplayName implements model.Provider.
func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

// SetModel implements model.Provider.
func (p *OpenAIProvider) SetModel(modelName string) {
	p.model = modelName
}

// Ping implements model.Provider by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}

// toOpenAIMessages converts conversation history to the chat
// completions format. Tool results become tool-role messages keyed by
// call ID; images ride as data URLs in user content parts.
func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Text()))

		case model.RoleUser:
			if hasImages(msg.Parts) {
				var parts []openai.ChatCompletionContentPartUnionParam
				for _, part := range msg.Parts {
					switch part.Kind {
					case model.PartText:
						parts = append(parts, openai.TextContentPart(part.Text))
					case model.PartImage:
						dataURL := "data:" + part.MimeType + ";base64," +
							base64.StdEncoding.EncodeToString(part.Data)
						parts = append(parts, openai.ImageContentPart(
							openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
						))
					}
				}
				result = append(result, openai.UserMessage(parts))
				continue
			}
			result = append(result, openai.UserMessage(msg.Text()))

		case model.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if text := msg.Text(); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			for _, call := range msg.ToolCalls {
				rawArgs, err := json.Marshal(call.Arguments)
				if err != nil {
					rawArgs = []byte("{}")
				}
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: string(rawArgs),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})

		case model.RoleTool:
			for _, res := range msg.ToolRes {
				result = append(result, openai.ToolMessage(res.Content, res.ToolCallID))
			}

		default:
			result = append(result, openai.UserMessage(msg.Text()))
		}
	}

	return result
}

func hasImages(parts []model.ContentPart) bool {
	for _, part := range parts {
		if part.Kind == model.PartImage {
			return true
		}
	}
	return false
}
