package stream

import (
	"strings"

	"parley/model"
)

// searchToolMarkers are matched case-insensitively as substrings of a
// tool name to decide whether its execution should surface as a search
// activity even when the provider never emitted one.
var searchToolMarkers = []string{"web_search", "web_lookup", "search"}

// IsSearchTool reports whether a tool name looks like a web search.
func IsSearchTool(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range searchToolMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ActivityIDForCall derives a stable activity ID from a tool call ID so
// that a synthesized activity and any provider-emitted one for the same
// call collapse into a single entry.
func ActivityIDForCall(callID string) string {
	return "tool-search-" + callID
}

// ActivityTimeline orders search activities by first appearance and
// merges repeated updates for the same ID. Status transitions are
// forward-only: once an activity reaches a terminal state, later
// non-terminal updates cannot drag it back to "searching".
type ActivityTimeline struct {
	order []string
	byID  map[string]model.SearchActivity
}

// NewActivityTimeline returns an empty timeline.
func NewActivityTimeline() *ActivityTimeline {
	return &ActivityTimeline{byID: make(map[string]model.SearchActivity)}
}

// Record merges one activity update. Updates without an ID are dropped.
func (tl *ActivityTimeline) Record(act model.SearchActivity) {
	if act.ID == "" {
		return
	}
	cur, ok := tl.byID[act.ID]
	if !ok {
		tl.order = append(tl.order, act.ID)
		if act.Status == "" {
			act.Status = model.ActivitySearching
		}
		tl.byID[act.ID] = act
		return
	}
	tl.byID[act.ID] = cur.Merged(act)
}

// RecordToolResult synthesizes a terminal activity from a finished tool
// call when the tool is search-like. Calls to other tools are ignored.
func (tl *ActivityTimeline) RecordToolResult(call model.ToolCall, isErr bool) {
	if !IsSearchTool(call.Name) {
		return
	}
	status := model.ActivityCompleted
	if isErr {
		status = model.ActivityFailed
	}
	tl.Record(model.SearchActivity{
		ID:        ActivityIDForCall(call.ID),
		Type:      call.Name,
		Status:    status,
		Arguments: call.Arguments,
	})
}

// Activities returns the merged activities in first-appearance order.
func (tl *ActivityTimeline) Activities() []model.SearchActivity {
	out := make([]model.SearchActivity, 0, len(tl.order))
	for _, id := range tl.order {
		out = append(out, tl.byID[id])
	}
	return out
}
