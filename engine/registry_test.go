package engine

import (
	"context"
	"errors"
	"testing"

	"parley/model"
)

func TestRegistryAtMostOneSession(t *testing.T) {
	r := NewRegistry()

	if r.IsStreaming("conv") {
		t.Fatal("fresh registry reports streaming")
	}

	s, err := r.Begin("conv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ConversationID != "conv" {
		t.Errorf("unexpected conversation id %q", s.ConversationID)
	}
	if !r.IsStreaming("conv") {
		t.Error("active session not reported")
	}

	if _, err := r.Begin("conv"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second begin must fail with ErrSessionActive, got %v", err)
	}

	// Other conversations stream independently.
	if _, err := r.Begin("other"); err != nil {
		t.Errorf("unrelated conversation blocked: %v", err)
	}

	r.End("conv")
	if r.IsStreaming("conv") {
		t.Error("ended session still reported")
	}
	if _, err := r.Begin("conv"); err != nil {
		t.Errorf("conversation not eligible for a new turn after End: %v", err)
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	if r.Cancel("missing") {
		t.Error("cancel of unknown conversation reported a session")
	}

	_, err := r.Begin("conv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Attach("conv", cancel)

	if !r.Cancel("conv") {
		t.Fatal("cancel did not find the session")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("attached context not cancelled")
	}

	// Cancel does not end the session; the turn does that as it unwinds.
	if !r.IsStreaming("conv") {
		t.Error("cancel must not clear the session")
	}
}

func TestSessionSnapshot(t *testing.T) {
	r := NewRegistry()
	s, err := r.Begin("conv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.Snapshot(); len(got.Parts) != 0 {
		t.Errorf("expected empty initial snapshot, got %+v", got)
	}

	s.Publish(Snapshot{
		Parts: []model.ContentPart{{Kind: model.PartText, Text: "partial"}},
		Round: 2,
	})

	got, ok := r.Lookup("conv")
	if !ok {
		t.Fatal("lookup failed for live session")
	}
	snap := got.Snapshot()
	if snap.Round != 2 || len(snap.Parts) != 1 || snap.Parts[0].Text != "partial" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
