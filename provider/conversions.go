package provider

import (
	"context"
	"encoding/json"

	"parley/model"
)

// ParseToolArguments parses a JSON arguments payload into a map. A
// payload that does not parse yields an empty map rather than an
// error; the tool itself will reject bad arguments with a proper
// message the model can react to.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// emit delivers one event unless the consumer is gone. Every adapter
// streams through this so a cancelled turn never wedges the producer
// goroutine on a full channel.
func emit(ctx context.Context, ch chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitErr sends a terminal error event, best-effort.
func emitErr(ctx context.Context, ch chan<- model.StreamEvent, err error) {
	emit(ctx, ch, model.StreamEvent{Kind: model.EventError, Err: err})
}
