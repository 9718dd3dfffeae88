package model

// ActivityStatus is the lifecycle state of a search activity.
type ActivityStatus string

const (
	ActivitySearching ActivityStatus = "searching"
	ActivityCompleted ActivityStatus = "completed"
	ActivityFailed    ActivityStatus = "failed"
	ActivityUnknown   ActivityStatus = "unknown"
)

// terminal reports whether a status can no longer change.
func (s ActivityStatus) terminal() bool {
	return s == ActivityCompleted || s == ActivityFailed
}

// SearchActivity is a structured record of a web-search-like action,
// used for provenance display. Activities are keyed by ID; a later
// activity with the same ID merges into the earlier one.
type SearchActivity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    ActivityStatus `json:"status"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Merged combines a newer sighting of the same activity into this one.
// Arguments union with newer keys winning; status only moves forward,
// never back from a terminal state to searching.
func (a SearchActivity) Merged(newer SearchActivity) SearchActivity {
	out := a
	if newer.Type != "" {
		out.Type = newer.Type
	}
	if len(newer.Arguments) > 0 {
		merged := make(map[string]any, len(a.Arguments)+len(newer.Arguments))
		for k, v := range a.Arguments {
			merged[k] = v
		}
		for k, v := range newer.Arguments {
			merged[k] = v
		}
		out.Arguments = merged
	}
	if newer.Status != "" && newer.Status != ActivityUnknown {
		if !a.Status.terminal() || newer.Status.terminal() {
			out.Status = newer.Status
		}
	}
	return out
}
