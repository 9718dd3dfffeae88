// Package testutil provides scripted provider doubles for exercising
// streaming consumers without a live backend.
package testutil

import (
	"context"
	"sync"

	"parley/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ScriptedProvider plays back pre-recorded event rounds. Each
// SendMessage call consumes the next round; calls beyond the script get
// an empty round. It records the history and tools passed to every
// call so tests can assert on conversation shape.
type ScriptedProvider struct {
	Rounds [][]model.StreamEvent

	mu        sync.Mutex
	calls     int
	Histories [][]model.Message
	Tools     [][]mcptypes.Tool
	ModelName string
}

// SendMessage implements model.Provider.
func (p *ScriptedProvider) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, controls model.Controls) <-chan model.StreamEvent {
	p.mu.Lock()
	round := p.calls
	p.calls++
	history := make([]model.Message, len(messages))
	copy(history, messages)
	p.Histories = append(p.Histories, history)
	p.Tools = append(p.Tools, tools)
	p.mu.Unlock()

	events := make(chan model.StreamEvent)
	go func() {
		defer close(events)
		var script []model.StreamEvent
		if round < len(p.Rounds) {
			script = p.Rounds[round]
		} else {
			script = []model.StreamEvent{
				{Kind: model.EventMessageStart},
				{Kind: model.EventMessageEnd},
			}
		}
		for _, ev := range script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// CallCount returns how many rounds were requested.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// ListModels implements model.Provider.
func (p *ScriptedProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{{Name: p.GetModel(), InternalName: p.GetModel(), Provider: "scripted"}}, nil
}

// GetModel implements model.Provider.
func (p *ScriptedProvider) GetModel() string {
	if p.ModelName == "" {
		return "scripted-model"
	}
	return p.ModelName
}

// GetDisplayName implements model.Provider.
func (p *ScriptedProvider) GetDisplayName() string { return p.GetModel() }

// SetModel implements model.Provider.
func (p *ScriptedProvider) SetModel(m string) { p.ModelName = m }

// Ping implements model.Provider.
func (p *ScriptedProvider) Ping(ctx context.Context) error { return nil }

// TextRound scripts a plain streamed text response.
func TextRound(chunks ...string) []model.StreamEvent {
	events := []model.StreamEvent{{Kind: model.EventMessageStart}}
	for _, c := range chunks {
		events = append(events, model.StreamEvent{Kind: model.EventContentDelta, Text: c})
	}
	return append(events, model.StreamEvent{Kind: model.EventMessageEnd})
}

// ToolRound scripts a response that requests the given tool calls
// after optionally streaming some text.
func ToolRound(text string, calls ...model.ToolCallFragment) []model.StreamEvent {
	events := []model.StreamEvent{{Kind: model.EventMessageStart}}
	if text != "" {
		events = append(events, model.StreamEvent{Kind: model.EventContentDelta, Text: text})
	}
	for i := range calls {
		call := calls[i]
		events = append(events,
			model.StreamEvent{Kind: model.EventToolCallStart, ToolCall: &model.ToolCallFragment{ID: call.ID, Name: call.Name}},
			model.StreamEvent{Kind: model.EventToolCallEnd, ToolCall: &call},
		)
	}
	return append(events, model.StreamEvent{Kind: model.EventMessageEnd})
}

// ErrorRound scripts a stream that fails mid-flight.
func ErrorRound(text string, err error) []model.StreamEvent {
	events := []model.StreamEvent{{Kind: model.EventMessageStart}}
	if text != "" {
		events = append(events, model.StreamEvent{Kind: model.EventContentDelta, Text: text})
	}
	return append(events, model.StreamEvent{Kind: model.EventError, Err: err})
}
