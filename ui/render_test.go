package ui

import (
	"strings"
	"testing"

	"parley/engine"
	"parley/model"
	"parley/storage"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		validate func(t *testing.T, got string)
	}{
		{
			name:  "short line untouched",
			input: "hello world",
			width: 40,
			validate: func(t *testing.T, got string) {
				if got != "hello world" {
					t.Errorf("expected unchanged, got %q", got)
				}
			},
		},
		{
			name:  "long line wraps at word boundary",
			input: "one two three four five six seven eight",
			width: 15,
			validate: func(t *testing.T, got string) {
				for _, line := range strings.Split(got, "\n") {
					if len(line) > 15 {
						t.Errorf("line exceeds width: %q", line)
					}
				}
				if !strings.Contains(got, "\n") {
					t.Error("expected at least one wrap")
				}
			},
		},
		{
			name:  "zero width passthrough",
			input: "anything at all",
			width: 0,
			validate: func(t *testing.T, got string) {
				if got != "anything at all" {
					t.Errorf("expected passthrough, got %q", got)
				}
			},
		},
		{
			name:  "existing newlines preserved",
			input: "first\nsecond",
			width: 40,
			validate: func(t *testing.T, got string) {
				if got != "first\nsecond" {
					t.Errorf("newlines lost: %q", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, wrapText(tt.input, tt.width))
		})
	}
}

func TestSummarizeArgs(t *testing.T) {
	got := summarizeArgs(map[string]any{"query": "go generics", "count": 3})
	// Keys render in sorted order so output is stable.
	if got != "count=3, query=go generics" {
		t.Errorf("unexpected summary: %q", got)
	}

	if summarizeArgs(nil) != "" {
		t.Error("nil args must render empty")
	}

	long := summarizeArgs(map[string]any{"text": strings.Repeat("x", 200)})
	if len(long) > 80 {
		t.Errorf("summary not truncated: %d chars", len(long))
	}
}

func TestRenderConversation(t *testing.T) {
	history := []model.Message{
		model.TextMessage(model.RoleSystem, "be terse"),
		model.TextMessage(model.RoleUser, "what is the weather"),
		{
			Role:  model.RoleAssistant,
			Parts: []model.ContentPart{{Kind: model.PartText, Text: "Let me check."}},
			ToolCalls: []model.ToolCall{
				{ID: "call-1", Name: "srv.get_weather", Arguments: map[string]any{"city": "Oslo"}},
			},
		},
		{
			Role: model.RoleTool,
			ToolRes: []model.ToolResult{
				{ToolCallID: "call-1", ToolName: "srv.get_weather", Content: "12C, rain"},
			},
		},
	}

	out := RenderConversation(history, engine.Snapshot{}, false, 80)

	if !strings.Contains(out, "what is the weather") {
		t.Error("user text missing")
	}
	if !strings.Contains(out, "srv.get_weather(city=Oslo)") {
		t.Errorf("tool call line missing:\n%s", out)
	}
	if !strings.Contains(out, "12C, rain") {
		t.Error("tool result missing")
	}
	if strings.Contains(out, "be terse") {
		t.Error("system prompt must not appear in transcript")
	}
}

func TestRenderConversationLiveSnapshot(t *testing.T) {
	snap := engine.Snapshot{
		Parts: []model.ContentPart{{Kind: model.PartText, Text: "streaming now"}},
		Activities: []model.SearchActivity{
			{ID: "act-1", Type: "web_search", Status: model.ActivitySearching, Arguments: map[string]any{"query": "news"}},
		},
	}

	out := RenderConversation(nil, snap, true, 80)
	if !strings.Contains(out, "streaming now") {
		t.Error("live text missing")
	}
	if !strings.Contains(out, "searching: query=news") {
		t.Errorf("activity line missing:\n%s", out)
	}

	// Not streaming: snapshot suppressed.
	out = RenderConversation(nil, snap, false, 80)
	if strings.Contains(out, "streaming now") {
		t.Error("snapshot rendered while idle")
	}
}

func TestRenderSearchResults(t *testing.T) {
	titles := []storage.ConversationMetadata{
		{ID: "conv-1", Title: "Go concurrency patterns", MessageCount: 4},
	}
	matches := []storage.MessageMatch{
		{ConversationID: "conv-1", MessageID: "m1", Role: model.RoleUser, Preview: "...channel buffering..."},
	}

	out := RenderSearchResults("chan", titles, matches, 80)
	if !strings.Contains(out, "Go concurrency patterns") {
		t.Errorf("title hit missing:\n%s", out)
	}
	if !strings.Contains(out, "channel buffering") {
		t.Errorf("message preview missing:\n%s", out)
	}
	if !strings.Contains(out, model.RoleUser) {
		t.Errorf("hit role missing:\n%s", out)
	}

	out = RenderSearchResults("zzz", nil, nil, 80)
	if !strings.Contains(out, "no matches") {
		t.Errorf("empty result marker missing:\n%s", out)
	}
}
