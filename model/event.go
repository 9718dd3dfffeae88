package model

// EventKind tags a StreamEvent.
type EventKind string

const (
	EventMessageStart   EventKind = "message_start"
	EventContentDelta   EventKind = "content_delta"
	EventThinkingDelta  EventKind = "thinking_delta"
	EventMediaChunk     EventKind = "media_chunk"
	EventToolCallStart  EventKind = "tool_call_start"
	EventToolCallDelta  EventKind = "tool_call_delta"
	EventToolCallEnd    EventKind = "tool_call_end"
	EventSearchActivity EventKind = "search_activity"
	EventMessageEnd     EventKind = "message_end"
	EventError          EventKind = "error"
)

// ThinkingFragment is the payload of an EventThinkingDelta. Providers may
// send the text first and the signature in a later, otherwise-empty
// fragment. Redacted carries an opaque blob and never merges with text.
type ThinkingFragment struct {
	Text      string
	Signature string
	Redacted  []byte
}

// MediaFragment is the payload of an EventMediaChunk.
type MediaFragment struct {
	Kind     PartKind // PartImage or PartVideo
	Data     []byte
	MimeType string
}

// ToolCallFragment is a partial announcement of a tool call. A call may be
// announced (start: id and name), grown (delta: more argument keys), and
// finalized (end: complete arguments); all fragments for one id merge.
type ToolCallFragment struct {
	ID        string
	Name      string
	Arguments map[string]any
	Signature string
}

// StreamEvent is one element of a provider adapter's event stream. Exactly
// the field matching Kind is set; the rest are zero. Consumers ignore
// event kinds they do not recognize rather than failing the stream.
type StreamEvent struct {
	Kind     EventKind
	Text     string // EventContentDelta
	Thinking *ThinkingFragment
	Media    *MediaFragment
	ToolCall *ToolCallFragment
	Activity *SearchActivity
	Err      error // EventError, terminal for the stream
}
