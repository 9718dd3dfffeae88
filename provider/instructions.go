package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions produces a short system preamble nudging the
// model to call tools directly instead of narrating about them.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the user asks for something that requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		"3. If yes: Execute the tool IMMEDIATELY without explanation",
		"4. If no: Ask for the missing parameter ONLY",
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you're about to do",
		"- Ask 'what would you like me to do?'",
	}, "\n")
}

// shouldSkipToolInstructions reports whether a model is known to break
// with explicit tool prompting. qwen understands tools natively and
// starts leaking XML when prompted about them.
func shouldSkipToolInstructions(modelName string) bool {
	modelLower := strings.ToLower(modelName)
	for _, prefix := range []string{"qwen"} {
		if strings.Contains(modelLower, prefix) {
			return true
		}
	}
	return false
}
