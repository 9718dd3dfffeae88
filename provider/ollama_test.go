package provider

import (
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:latest", true},
		{"llama3.2:3b", true},
		{"qwen2.5:14b", true},
		{"mistral:7b", true},
		{"llama3:8b", false},          // base llama3 predates tool calling
		{"llama3-gradient:8b", false}, // more specific prefix than llama3
		{"phi3:mini", false},
		{"gemma2:9b", false},
		{"codellama:13b", false},
		{"something-unheard-of", false}, // unknown models default to no tools
		{"LLAMA3.1:70B", true},          // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ModelSupportsToolCalling(tt.model); got != tt.want {
				t.Errorf("ModelSupportsToolCalling(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestBuildToolInstructions(t *testing.T) {
	tools := []mcptypes.Tool{
		{Name: "srv.get_weather"},
		{Name: "srv.web_search"},
	}

	instructions := buildToolInstructions(tools)
	if !strings.Contains(instructions, "srv.get_weather, srv.web_search") {
		t.Errorf("tool names missing from instructions:\n%s", instructions)
	}
	if !strings.Contains(instructions, "IMMEDIATELY") {
		t.Error("execute directive missing")
	}
}

func TestShouldSkipToolInstructions(t *testing.T) {
	if !shouldSkipToolInstructions("qwen2.5:14b") {
		t.Error("qwen must skip explicit tool prompting")
	}
	if shouldSkipToolInstructions("llama3.1:latest") {
		t.Error("llama3.1 should receive tool instructions")
	}
}
