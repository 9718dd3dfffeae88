package model

import (
	"strings"
	"time"
)

// Role values for Message. Tool-role messages carry the results of the
// tool calls requested by the preceding assistant message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// PartKind tags a ContentPart.
type PartKind string

const (
	PartText             PartKind = "text"
	PartImage            PartKind = "image"
	PartVideo            PartKind = "video"
	PartThinking         PartKind = "thinking"
	PartRedactedThinking PartKind = "redacted_thinking"
)

// ContentPart is one segment of a message's content. Which fields are
// meaningful depends on Kind:
//   - PartText: Text
//   - PartImage/PartVideo: Data (raw bytes or a reference), MimeType
//   - PartThinking: Text, optional Signature
//   - PartRedactedThinking: Data (opaque provider blob)
type ContentPart struct {
	Kind      PartKind `json:"kind"`
	Text      string   `json:"text,omitempty"`
	Data      []byte   `json:"data,omitempty"`
	MimeType  string   `json:"mime_type,omitempty"`
	Signature string   `json:"signature,omitempty"`
}

// ToolCall is a model-issued request to invoke an external capability.
// The ID is provider-assigned and stable within a turn.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// ToolResult is the outcome of exactly one ToolCall from the same round.
type ToolResult struct {
	ToolCallID string        `json:"tool_call_id"`
	ToolName   string        `json:"tool_name"`
	Content    string        `json:"content"`
	IsError    bool          `json:"is_error,omitempty"`
	Signature  string        `json:"signature,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Message is one entry of conversation history. Once persisted it is not
// mutated except by an explicit edit-and-regenerate, which replaces it and
// truncates everything after it (storage.ConversationStore.TruncateFrom).
type Message struct {
	ID         string           `json:"id,omitempty"`
	Role       string           `json:"role"`
	Parts      []ContentPart    `json:"parts"`
	ToolCalls  []ToolCall       `json:"tool_calls,omitempty"`
	ToolRes    []ToolResult     `json:"tool_results,omitempty"`
	Activities []SearchActivity `json:"search_activities,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// TextMessage builds a message holding a single text part.
func TextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Parts:     []ContentPart{{Kind: PartText, Text: text}},
		Timestamp: time.Now(),
	}
}

// Text returns the concatenation of all text parts. Thinking and media
// parts are skipped; providers receive those through their own channels.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
