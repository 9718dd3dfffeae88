package engine

import (
	"context"
	"errors"
	"testing"

	"parley/model"
	"parley/provider/testutil"
)

func TestTitleGenerator(t *testing.T) {
	history := []model.Message{
		model.TextMessage(model.RoleUser, "How do goroutines work?"),
		model.TextMessage(model.RoleAssistant, "They are lightweight threads."),
	}

	t.Run("uses the model's answer", func(t *testing.T) {
		p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
			testutil.TextRound("Goroutine ", "Basics"),
		}}
		got := NewTitleGenerator(p).Generate(context.Background(), history)
		if got != "Goroutine Basics" {
			t.Errorf("unexpected title %q", got)
		}
	})

	t.Run("provider failure falls back to first user message", func(t *testing.T) {
		p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
			testutil.ErrorRound("", errors.New("unavailable")),
		}}
		got := NewTitleGenerator(p).Generate(context.Background(), history)
		if got != "How do goroutines work?" {
			t.Errorf("unexpected fallback title %q", got)
		}
	})

	t.Run("blank answer falls back", func(t *testing.T) {
		p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
			testutil.TextRound("  "),
		}}
		got := NewTitleGenerator(p).Generate(context.Background(), history)
		if got != "How do goroutines work?" {
			t.Errorf("unexpected fallback title %q", got)
		}
	})
}
