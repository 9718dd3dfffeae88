// Package stream assembles a provider's incremental deltas into
// well-formed structured content while a round is in flight.
//
// The three accumulating types (ContentAccumulator, ToolCallTracker,
// ActivityTimeline) are driven strictly in arrival order by the engine.
// None of them fail on malformed or unexpected individual deltas; an
// unrecognized delta is ignored so one bad token cannot kill an
// otherwise-working stream.
package stream

import "parley/model"

// ContentAccumulator folds text, thinking, and media deltas into an
// ordered list of content parts, preserving arrival interleaving.
// Adjacent text parts and adjacent thinking parts with the same
// signature are coalesced as they arrive.
type ContentAccumulator struct {
	parts []model.ContentPart
	chars int
}

// AddText appends a text fragment, extending the last part when it is
// already text. Zero-length fragments are no-ops.
func (a *ContentAccumulator) AddText(s string) {
	if s == "" {
		return
	}
	a.chars += len(s)
	if n := len(a.parts); n > 0 && a.parts[n-1].Kind == model.PartText {
		a.parts[n-1].Text += s
		return
	}
	a.parts = append(a.parts, model.ContentPart{Kind: model.PartText, Text: s})
}

// AddThinking applies one thinking fragment.
//
// Redacted fragments always start a new redacted-thinking part. Text
// fragments extend the last part when it is thinking with a matching
// signature (or both are unsigned). A signature-only fragment attaches
// the signature to the last unsigned thinking block: providers send the
// text first and the signature afterwards, so this back-fill is a
// deliberate two-phase write.
func (a *ContentAccumulator) AddThinking(f model.ThinkingFragment) {
	if len(f.Redacted) > 0 {
		a.parts = append(a.parts, model.ContentPart{
			Kind: model.PartRedactedThinking,
			Data: f.Redacted,
		})
		return
	}

	n := len(a.parts)
	if f.Text == "" {
		if f.Signature != "" && n > 0 &&
			a.parts[n-1].Kind == model.PartThinking && a.parts[n-1].Signature == "" {
			a.parts[n-1].Signature = f.Signature
		}
		return
	}

	a.chars += len(f.Text)
	if n > 0 && a.parts[n-1].Kind == model.PartThinking {
		last := &a.parts[n-1]
		if last.Signature == f.Signature || (f.Signature == "" && last.Signature == "") {
			last.Text += f.Text
			return
		}
	}
	a.parts = append(a.parts, model.ContentPart{
		Kind:      model.PartThinking,
		Text:      f.Text,
		Signature: f.Signature,
	})
}

// AddMedia appends an image or video part. Media never merges.
func (a *ContentAccumulator) AddMedia(f model.MediaFragment) {
	if f.Kind != model.PartImage && f.Kind != model.PartVideo {
		return
	}
	a.parts = append(a.parts, model.ContentPart{
		Kind:     f.Kind,
		Data:     f.Data,
		MimeType: f.MimeType,
	})
}

// Parts returns a snapshot of the accumulated parts, safe to read at any
// point during streaming.
func (a *ContentAccumulator) Parts() []model.ContentPart {
	out := make([]model.ContentPart, len(a.parts))
	copy(out, a.parts)
	return out
}

// Chars is the total number of text and thinking characters streamed so
// far, used by the flush throttler to scale its publish interval.
func (a *ContentAccumulator) Chars() int {
	return a.chars
}

// Empty reports whether nothing has been accumulated.
func (a *ContentAccumulator) Empty() bool {
	return len(a.parts) == 0
}
