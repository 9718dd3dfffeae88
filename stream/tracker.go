package stream

import "parley/model"

// ToolCallTracker collects tool call fragments keyed by call ID,
// merging partial updates into one call per ID while preserving the
// order IDs first appeared in. Providers may announce a call, stream
// argument updates for it, then finalize it; the tracker folds all of
// that into a single entry.
type ToolCallTracker struct {
	order []string
	calls map[string]model.ToolCall
}

// NewToolCallTracker returns an empty tracker.
func NewToolCallTracker() *ToolCallTracker {
	return &ToolCallTracker{calls: make(map[string]model.ToolCall)}
}

// Upsert merges one fragment. Fragments without an ID are dropped:
// there is nothing to correlate later updates or results against.
// On merge, a non-empty name or signature replaces the stored one and
// arguments merge per key, the newer value winning on collisions.
func (t *ToolCallTracker) Upsert(f model.ToolCallFragment) {
	if f.ID == "" {
		return
	}
	cur, ok := t.calls[f.ID]
	if !ok {
		t.order = append(t.order, f.ID)
		cur = model.ToolCall{ID: f.ID}
	}
	if f.Name != "" {
		cur.Name = f.Name
	}
	if f.Arguments != nil {
		merged := make(map[string]any, len(cur.Arguments)+len(f.Arguments))
		for k, v := range cur.Arguments {
			merged[k] = v
		}
		for k, v := range f.Arguments {
			merged[k] = v
		}
		cur.Arguments = merged
	}
	if f.Signature != "" {
		cur.Signature = f.Signature
	}
	t.calls[f.ID] = cur
}

// Calls returns the merged calls in first-arrival order.
func (t *ToolCallTracker) Calls() []model.ToolCall {
	out := make([]model.ToolCall, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.calls[id])
	}
	return out
}

// Len is the number of distinct call IDs seen.
func (t *ToolCallTracker) Len() int {
	return len(t.order)
}
