package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"parley/model"

	"github.com/google/uuid"
)

// Some models print their tool calls as JSON or XML in the text stream
// instead of using the structured tool-call channel. The patterns below
// recover those calls so the turn can still execute them, and strip the
// leaked text so it never pollutes context or display.
var (
	leakedJSONRegex = regexp.MustCompile(`\{\s*"name"\s*:\s*"[^"]+"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*\{[^}]*\}\s*\}`)
	leakedJSONArray = regexp.MustCompile(`\[\s*\{\s*"name"\s*:\s*"[^"]+"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*\{[^}]*\}\s*\}\s*\]`)
	leakedXMLRegex  = regexp.MustCompile(`<(?:tool_call|function_call)>\s*<name>([^<]+)</name>\s*<arguments>([^<]*)</arguments>\s*</(?:tool_call|function_call)>`)
	leakedQwenXML   = regexp.MustCompile(`(?s)<function=[^>]+><parameter=[^>]+>.*?</parameter></function>(?:</tool_call>)?`)
)

type leakedCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ParseLeakedToolCalls scans response text for tool calls the model
// wrote inline. Each recovered call gets a fresh ID since the model
// never assigned one.
func ParseLeakedToolCalls(content string) []model.ToolCall {
	var calls []model.ToolCall

	for _, match := range leakedJSONRegex.FindAllString(content, -1) {
		var lc leakedCall
		if err := json.Unmarshal([]byte(match), &lc); err != nil || lc.Name == "" {
			continue
		}
		calls = append(calls, model.ToolCall{
			ID:        "recovered-" + uuid.NewString(),
			Name:      lc.Name,
			Arguments: lc.Args,
		})
	}

	for _, match := range leakedXMLRegex.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}
		var args map[string]any
		if raw := strings.TrimSpace(match[2]); raw != "" {
			_ = json.Unmarshal([]byte(raw), &args)
		}
		calls = append(calls, model.ToolCall{
			ID:        "recovered-" + uuid.NewString(),
			Name:      name,
			Arguments: args,
		})
	}

	return calls
}

// CleanLeakedToolCalls strips inline tool call text from a response.
func CleanLeakedToolCalls(content string) string {
	content = leakedJSONArray.ReplaceAllString(content, "")
	content = leakedJSONRegex.ReplaceAllString(content, "")
	content = leakedXMLRegex.ReplaceAllString(content, "")
	content = leakedQwenXML.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
