package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"parley/model"
	"parley/provider/testutil"
	"parley/toolhub"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// fakeExecutor scripts tool outcomes by tool name and records the
// order calls arrived in.
type fakeExecutor struct {
	mu       sync.Mutex
	results  map[string]toolhub.Result
	errs     map[string]error
	executed []string
}

func (f *fakeExecutor) Definitions() []mcptypes.Tool {
	return []mcptypes.Tool{{Name: "srv.echo"}, {Name: "srv.web_search"}}
}

func (f *fakeExecutor) Execute(ctx context.Context, toolName string, args map[string]any) (toolhub.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, toolName)
	if err, ok := f.errs[toolName]; ok {
		return toolhub.Result{}, err
	}
	return f.results[toolName], nil
}

// memStore records appends and optionally runs a hook per append.
type memStore struct {
	mu       sync.Mutex
	appended []model.Message
	onAppend func(msg model.Message)
	failWith error
}

func (s *memStore) Append(conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.appended = append(s.appended, msg)
	if s.onAppend != nil {
		s.onAppend(msg)
	}
	return nil
}

func (s *memStore) messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.appended))
	copy(out, s.appended)
	return out
}

func newTestController(p model.Provider, tools ToolExecutor, store MessageStore) *Controller {
	return NewController(p, tools, store, nil, model.Controls{}, nil)
}

func userHistory(text string) []model.Message {
	return []model.Message{model.TextMessage(model.RoleUser, text)}
}

func TestRunTurnPlainText(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.TextRound("Hello", ", ", "world"),
	}}
	store := &memStore{}
	c := newTestController(p, nil, store)

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("hi"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(produced) != 1 {
		t.Fatalf("expected 1 message, got %d", len(produced))
	}
	if produced[0].Role != model.RoleAssistant {
		t.Errorf("unexpected role %q", produced[0].Role)
	}
	if got := produced[0].Text(); got != "Hello, world" {
		t.Errorf("deltas not coalesced: %q", got)
	}
	if len(produced[0].Parts) != 1 {
		t.Errorf("expected a single text part, got %d", len(produced[0].Parts))
	}
	if p.CallCount() != 1 {
		t.Errorf("expected 1 provider round, got %d", p.CallCount())
	}
	if len(store.messages()) != 1 {
		t.Errorf("expected 1 persisted message, got %d", len(store.messages()))
	}
}

func TestRunTurnStripsInlineToolCallText(t *testing.T) {
	leaked := `Let me check. {"name": "srv.echo", "arguments": {"text": "a"}}`
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ToolRound(leaked,
			model.ToolCallFragment{ID: "c1", Name: "srv.echo", Arguments: map[string]any{"text": "a"}},
		),
		testutil.TextRound("All done."),
	}}
	exec := &fakeExecutor{results: map[string]toolhub.Result{"srv.echo": {Text: "a"}}}
	store := &memStore{}
	c := newTestController(p, exec, store)

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("go"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(produced) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(produced))
	}
	if got := produced[0].Text(); got != "Let me check." {
		t.Errorf("inline tool call blob not stripped: %q", got)
	}
	if got := store.messages()[0].Text(); got != "Let me check." {
		t.Errorf("blob persisted: %q", got)
	}
	if len(produced[0].ToolCalls) != 1 {
		t.Errorf("structured tool call lost: %+v", produced[0].ToolCalls)
	}
}

func TestRunTurnToolRoundOrdering(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ToolRound("Checking...",
			model.ToolCallFragment{ID: "c1", Name: "srv.echo", Arguments: map[string]any{"text": "a"}},
			model.ToolCallFragment{ID: "c2", Name: "srv.broken"},
		),
		testutil.TextRound("All done."),
	}}
	exec := &fakeExecutor{
		results: map[string]toolhub.Result{"srv.echo": {Text: "a"}},
		errs:    map[string]error{"srv.broken": errors.New("boom")},
	}
	store := &memStore{}
	c := newTestController(p, exec, store)

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("go"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// assistant, tool results, final assistant
	if len(produced) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(produced))
	}
	if produced[0].Role != model.RoleAssistant || produced[1].Role != model.RoleTool {
		t.Fatalf("assistant must be persisted before tool results: %q, %q",
			produced[0].Role, produced[1].Role)
	}

	toolMsg := produced[1]
	if len(toolMsg.ToolRes) != 2 {
		t.Fatalf("expected exactly 2 tool results, got %d", len(toolMsg.ToolRes))
	}
	if toolMsg.ToolRes[0].ToolCallID != "c1" || toolMsg.ToolRes[1].ToolCallID != "c2" {
		t.Errorf("results out of declared order: %+v", toolMsg.ToolRes)
	}
	if toolMsg.ToolRes[0].IsError {
		t.Errorf("successful tool marked as error")
	}
	if !toolMsg.ToolRes[1].IsError {
		t.Errorf("failed tool not marked as error")
	}
	if !strings.Contains(toolMsg.ToolRes[1].Content, "You may retry this tool call") {
		t.Errorf("retry hint missing: %q", toolMsg.ToolRes[1].Content)
	}
	if got := exec.executed; len(got) != 2 || got[0] != "srv.echo" || got[1] != "srv.broken" {
		t.Errorf("tools not executed in order: %v", got)
	}

	// Persisted order must match produced order.
	persisted := store.messages()
	if len(persisted) != 3 || persisted[0].Role != model.RoleAssistant || persisted[1].Role != model.RoleTool {
		t.Errorf("unexpected persisted sequence: %d messages", len(persisted))
	}
}

func TestRunTurnEmptyToolResultPlaceholder(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ToolRound("", model.ToolCallFragment{ID: "c1", Name: "srv.echo"}),
		testutil.TextRound("done"),
	}}
	exec := &fakeExecutor{results: map[string]toolhub.Result{"srv.echo": {Text: ""}}}
	c := newTestController(p, exec, &memStore{})

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("go"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	toolMsg := produced[1]
	if toolMsg.ToolRes[0].Content != "no output" {
		t.Errorf("empty result not replaced with placeholder: %q", toolMsg.ToolRes[0].Content)
	}
}

func TestRunTurnSynthesizesSearchActivity(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ToolRound("", model.ToolCallFragment{
			ID: "c1", Name: "srv.web_search", Arguments: map[string]any{"query": "news"},
		}),
		testutil.TextRound("done"),
	}}
	exec := &fakeExecutor{results: map[string]toolhub.Result{"srv.web_search": {Text: "results"}}}
	c := newTestController(p, exec, &memStore{})

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("search news"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	toolMsg := produced[1]
	if len(toolMsg.Activities) != 1 {
		t.Fatalf("expected 1 synthesized activity, got %d", len(toolMsg.Activities))
	}
	act := toolMsg.Activities[0]
	if act.Status != model.ActivityCompleted {
		t.Errorf("unexpected status %v", act.Status)
	}
	if act.Arguments["query"] != "news" {
		t.Errorf("call arguments not carried: %v", act.Arguments)
	}
}

func TestRunTurnIterationCap(t *testing.T) {
	// A model that never stops asking for tools.
	var rounds [][]model.StreamEvent
	for i := 0; i < 20; i++ {
		rounds = append(rounds, testutil.ToolRound("",
			model.ToolCallFragment{ID: fmt.Sprintf("c%d", i), Name: "srv.echo"}))
	}
	p := &testutil.ScriptedProvider{Rounds: rounds}
	exec := &fakeExecutor{results: map[string]toolhub.Result{"srv.echo": {Text: "ok"}}}
	c := newTestController(p, exec, &memStore{})

	_, err := c.RunTurn(context.Background(), "conv", userHistory("loop"), nil)
	if err != nil {
		t.Fatalf("cap exhaustion must not be an error: %v", err)
	}
	if got := p.CallCount(); got != 8 {
		t.Errorf("expected exactly 8 rounds, got %d", got)
	}
	if got := len(exec.executed); got != 8 {
		t.Errorf("expected 8 tool executions, got %d", got)
	}
}

func TestRunTurnProviderError(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ErrorRound("partial", errors.New("connection reset")),
	}}
	store := &memStore{}
	c := newTestController(p, nil, store)

	produced, err := c.RunTurn(context.Background(), "conv", userHistory("hi"), nil)
	if err == nil {
		t.Fatal("provider stream error must fail the turn")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("cause lost: %v", err)
	}
	if len(produced) != 0 {
		t.Errorf("no message may be fabricated for the failing round, got %d", len(produced))
	}
	if len(store.messages()) != 0 {
		t.Errorf("failing round must not persist, got %d messages", len(store.messages()))
	}
}

func TestRunTurnCancelledBeforeTools(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.ToolRound("Looking...",
			model.ToolCallFragment{ID: "c1", Name: "srv.echo"}),
	}}
	exec := &fakeExecutor{results: map[string]toolhub.Result{"srv.echo": {Text: "ok"}}}

	ctx, cancel := context.WithCancel(context.Background())
	store := &memStore{}
	// Cancel right after the assistant message is persisted.
	store.onAppend = func(msg model.Message) {
		if msg.Role == model.RoleAssistant {
			cancel()
		}
	}
	c := newTestController(p, exec, store)

	produced, err := c.RunTurn(ctx, "conv", userHistory("go"), nil)
	if err != nil {
		t.Fatalf("cancellation must not surface an error: %v", err)
	}
	if len(produced) != 1 || produced[0].Role != model.RoleAssistant {
		t.Fatalf("persisted assistant message must survive cancellation: %+v", produced)
	}
	if len(exec.executed) != 0 {
		t.Errorf("no tool may execute after cancellation, got %v", exec.executed)
	}
}

func TestRunTurnPersistFailure(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.TextRound("hello"),
	}}
	store := &memStore{failWith: errors.New("disk full")}
	c := newTestController(p, nil, store)

	_, err := c.RunTurn(context.Background(), "conv", userHistory("hi"), nil)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("persistence failure must surface: %v", err)
	}
}

func TestRunTurnPublishesFinalSnapshot(t *testing.T) {
	p := &testutil.ScriptedProvider{Rounds: [][]model.StreamEvent{
		testutil.TextRound("streamed text"),
	}}
	c := newTestController(p, nil, &memStore{})

	var snaps []Snapshot
	_, err := c.RunTurn(context.Background(), "conv", userHistory("hi"), func(s Snapshot) {
		snaps = append(snaps, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) < 2 {
		t.Fatalf("expected at least a streaming and a final snapshot, got %d", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if !last.Done {
		t.Errorf("final snapshot must be marked done")
	}
	// The last content-bearing snapshot carries everything streamed.
	content := snaps[len(snaps)-2]
	if len(content.Parts) != 1 || content.Parts[0].Text != "streamed text" {
		t.Errorf("trailing content lost: %+v", content.Parts)
	}
}
