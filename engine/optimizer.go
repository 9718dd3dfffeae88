package engine

import "parley/model"

// Optimizer is a pure transform applied to the outgoing history and
// controls once, before a turn's first round. Implementations must not
// mutate the input slice.
type Optimizer interface {
	Apply(messages []model.Message, controls model.Controls) ([]model.Message, model.Controls)
}

// NoopOptimizer passes everything through unchanged.
type NoopOptimizer struct{}

// Apply implements Optimizer.
func (NoopOptimizer) Apply(messages []model.Message, controls model.Controls) ([]model.Message, model.Controls) {
	return messages, controls
}

// WindowOptimizer bounds the history sent to the provider. System
// messages always survive; the rest is the most recent suffix whose
// text fits MaxChars. Persisted history is untouched, only the
// outgoing view shrinks.
type WindowOptimizer struct {
	MaxChars int
}

// Apply implements Optimizer.
func (w WindowOptimizer) Apply(messages []model.Message, controls model.Controls) ([]model.Message, model.Controls) {
	if w.MaxChars <= 0 {
		return messages, controls
	}

	var system []model.Message
	var rest []model.Message
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			system = append(system, msg)
			continue
		}
		rest = append(rest, msg)
	}

	total := 0
	cut := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		total += messageChars(rest[i])
		if total > w.MaxChars {
			break
		}
		cut = i
	}

	// Never drop everything; the latest message goes out regardless.
	if cut == len(rest) && len(rest) > 0 {
		cut = len(rest) - 1
	}

	out := make([]model.Message, 0, len(system)+len(rest)-cut)
	out = append(out, system...)
	out = append(out, rest[cut:]...)
	return out, controls
}

func messageChars(msg model.Message) int {
	n := 0
	for _, p := range msg.Parts {
		n += len(p.Text)
	}
	for _, r := range msg.ToolRes {
		n += len(r.Content)
	}
	return n
}
