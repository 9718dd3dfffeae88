package storage

import (
	"strings"
	"testing"

	"parley/model"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	store, err := NewConversationStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestConversationAppendOrder(t *testing.T) {
	store := newTestStore(t)
	conv, err := store.Create("test chat", "anthropic", "claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		if err := store.Append(conv.ID, model.TextMessage(model.RoleUser, text)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	history, err := store.History(conv.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range texts {
		if got := history[i].Text(); got != want {
			t.Errorf("message %d: expected %q, got %q", i, want, got)
		}
		if history[i].ID == "" {
			t.Errorf("message %d: id not assigned", i)
		}
	}
}

func TestConversationTruncateFrom(t *testing.T) {
	store := newTestStore(t)
	conv, err := store.Create("edit test", "ollama", "llama3.1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, text := range []string{"keep", "edit me", "reply", "followup"} {
		if err := store.Append(conv.ID, model.TextMessage(model.RoleUser, text)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	history, _ := store.History(conv.ID)
	editTarget := history[1].ID

	if err := store.TruncateFrom(conv.ID, editTarget); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}

	history, _ = store.History(conv.ID)
	if len(history) != 1 {
		t.Fatalf("expected 1 surviving message, got %d", len(history))
	}
	if history[0].Text() != "keep" {
		t.Errorf("wrong message survived: %q", history[0].Text())
	}

	if err := store.TruncateFrom(conv.ID, "no-such-id"); err == nil {
		t.Error("truncating an unknown message must fail")
	}
}

func TestConversationListAndDelete(t *testing.T) {
	store := newTestStore(t)

	first, _ := store.Create("older", "openai", "gpt-4o-mini")
	second, _ := store.Create("newer", "openai", "gpt-4o-mini")

	// Touch the second so it sorts first.
	if err := store.Append(second.ID, model.TextMessage(model.RoleUser, "hi")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(metas))
	}
	if metas[0].ID != second.ID {
		t.Errorf("newest conversation must list first")
	}
	if metas[0].MessageCount != 1 {
		t.Errorf("message count not reported: %d", metas[0].MessageCount)
	}

	if err := store.Delete(first.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Load(first.ID); err == nil {
		t.Error("deleted conversation still loads")
	}
}

func TestSearchTitles(t *testing.T) {
	store := newTestStore(t)
	store.Create("Go concurrency patterns", "openai", "gpt-4o-mini")
	store.Create("Dinner recipes", "openai", "gpt-4o-mini")

	matches, err := store.SearchTitles("conc")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "Go concurrency patterns" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestStoreSearchMessages(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(dir)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer index.Close()

	store, err := NewConversationStore(dir, index)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	conv, _ := store.Create("searchable", "ollama", "llama3.1")
	if err := store.Append(conv.ID, model.TextMessage(model.RoleUser, "explain channel buffering")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	matches, err := store.SearchMessages("buffering", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ConversationID != conv.ID {
		t.Errorf("unexpected matches: %+v", matches)
	}

	// A store without an index finds nothing, not an error.
	plain := newTestStore(t)
	matches, err = plain.SearchMessages("buffering", 10)
	if err != nil || len(matches) != 0 {
		t.Errorf("indexless search must be empty: %v, %v", matches, err)
	}
}

func TestSearchIndex(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(dir)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer index.Close()

	store, err := NewConversationStore(dir, index)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	conv, _ := store.Create("indexed", "ollama", "llama3.1")

	if err := store.Append(conv.ID, model.TextMessage(model.RoleUser, "how do I tune garbage collection?")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(conv.ID, model.TextMessage(model.RoleAssistant, "set GOGC appropriately")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	matches, err := index.Search("garbage", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].ConversationID != conv.ID || matches[0].Role != model.RoleUser {
		t.Errorf("unexpected match: %+v", matches[0])
	}
	if !strings.Contains(matches[0].Preview, "garbage") {
		t.Errorf("preview must contain the hit: %q", matches[0].Preview)
	}

	// Case-insensitive.
	matches, _ = index.Search("GARBAGE", 10)
	if len(matches) != 1 {
		t.Errorf("search must be case-insensitive, got %d matches", len(matches))
	}

	if err := index.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	matches, _ = index.Search("garbage", 10)
	if len(matches) != 0 {
		t.Errorf("index rows survived conversation delete")
	}
}
