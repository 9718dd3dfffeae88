// Package engine drives conversation turns: it opens provider streams,
// folds stream events into structured partial state, executes requested
// tools, and persists the resulting messages in strict order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parley/model"
	"parley/provider"
	"parley/stream"
	"parley/toolhub"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// A turn stops after this many tool rounds even if the model keeps
// asking for tools. Not an error; partial progress is already persisted.
const maxToolRounds = 8

const (
	emptyResultPlaceholder = "no output"
	toolRetryHint          = "You may retry this tool call with corrected arguments"
)

// ToolExecutor is the tool surface the controller drives. *toolhub.Hub
// satisfies it.
type ToolExecutor interface {
	Definitions() []mcptypes.Tool
	Execute(ctx context.Context, toolName string, args map[string]any) (toolhub.Result, error)
}

// MessageStore persists messages as the turn produces them.
// storage.ConversationStore satisfies it.
type MessageStore interface {
	Append(conversationID string, msg model.Message) error
}

// Snapshot is the observable partial state published to the UI while a
// turn is streaming.
type Snapshot struct {
	Parts      []model.ContentPart
	ToolCalls  []model.ToolCall
	Activities []model.SearchActivity
	Round      int
	Done       bool
}

// Controller runs turns against one provider, tool hub, and store.
// A nil tools or store is allowed; the corresponding step is skipped.
type Controller struct {
	provider  model.Provider
	tools     ToolExecutor
	store     MessageStore
	optimizer Optimizer
	controls  model.Controls
	log       *slog.Logger

	// replaced in tests to avoid real pacing
	newThrottler func() *stream.FlushThrottler
}

// NewController wires a controller. optimizer may be nil (no transform).
func NewController(provider model.Provider, tools ToolExecutor, store MessageStore, optimizer Optimizer, controls model.Controls, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if optimizer == nil {
		optimizer = NoopOptimizer{}
	}
	return &Controller{
		provider:     provider,
		tools:        tools,
		store:        store,
		optimizer:    optimizer,
		controls:     controls,
		log:          log.With("component", "engine"),
		newThrottler: stream.NewFlushThrottler,
	}
}

// RunTurn drives one full turn for a conversation, starting from the
// given history, and returns every message it produced in order.
//
// Outcomes: a nil error with messages (done, cap reached, or cancelled)
// or a non-nil error (provider stream failure or persistence failure).
// Cancellation is deliberately not an error: already-persisted messages
// stay, the in-flight round is abandoned, and no tools run afterwards.
func (c *Controller) RunTurn(ctx context.Context, conversationID string, history []model.Message, publish func(Snapshot)) ([]model.Message, error) {
	var produced []model.Message

	var toolDefs []mcptypes.Tool
	if c.tools != nil {
		toolDefs = c.tools.Definitions()
	}

	messages, controls := c.optimizer.Apply(history, c.controls)

	for round := 0; round < maxToolRounds; round++ {
		if ctx.Err() != nil {
			return produced, nil
		}

		assistant, streamErr, cancelled := c.streamRound(ctx, messages, toolDefs, controls, round, publish)
		if cancelled {
			return produced, nil
		}
		if streamErr != nil {
			return produced, fmt.Errorf("provider stream failed: %w", streamErr)
		}

		if len(assistant.Parts) > 0 || len(assistant.ToolCalls) > 0 {
			if err := c.persist(conversationID, &assistant); err != nil {
				return produced, err
			}
			produced = append(produced, assistant)
			messages = append(messages, assistant)
		}

		if len(assistant.ToolCalls) == 0 {
			break
		}

		toolMsg, cancelled := c.executeTools(ctx, assistant.ToolCalls)
		if cancelled {
			return produced, nil
		}
		if err := c.persist(conversationID, &toolMsg); err != nil {
			return produced, err
		}
		produced = append(produced, toolMsg)
		messages = append(messages, toolMsg)

		c.log.Debug("tool round complete",
			"conversation", conversationID, "round", round, "tools", len(toolMsg.ToolRes))
	}

	if publish != nil {
		publish(Snapshot{Done: true})
	}
	return produced, nil
}

// streamRound opens one provider stream and drains it into fresh
// accumulators, publishing throttled snapshots along the way. It
// returns the finalized assistant message, the provider's terminal
// error if any, and whether the round was abandoned by cancellation.
func (c *Controller) streamRound(ctx context.Context, messages []model.Message, toolDefs []mcptypes.Tool, controls model.Controls, round int, publish func(Snapshot)) (model.Message, error, bool) {
	var (
		acc       stream.ContentAccumulator
		tracker   = stream.NewToolCallTracker()
		timeline  = stream.NewActivityTimeline()
		throttler = c.newThrottler()
		rev       int
		streamErr error
	)

	flush := func(final bool) {
		if publish == nil {
			return
		}
		due := throttler.ShouldFlush(rev, acc.Chars())
		if final {
			due = throttler.ShouldFlushFinal(rev)
		}
		if !due {
			return
		}
		publish(Snapshot{
			Parts:      acc.Parts(),
			ToolCalls:  tracker.Calls(),
			Activities: timeline.Activities(),
			Round:      round,
		})
		throttler.MarkFlushed(rev)
	}

	events := c.provider.SendMessage(ctx, messages, toolDefs, controls)
	for ev := range events {
		if ctx.Err() != nil {
			for range events {
				// drain so the producer goroutine can exit
			}
			return model.Message{}, nil, true
		}

		switch ev.Kind {
		case model.EventContentDelta:
			acc.AddText(ev.Text)
			rev++
		case model.EventThinkingDelta:
			if ev.Thinking != nil {
				acc.AddThinking(*ev.Thinking)
				rev++
			}
		case model.EventMediaChunk:
			if ev.Media != nil {
				acc.AddMedia(*ev.Media)
				rev++
			}
		case model.EventToolCallStart, model.EventToolCallDelta, model.EventToolCallEnd:
			if ev.ToolCall != nil {
				tracker.Upsert(*ev.ToolCall)
				rev++
			}
		case model.EventSearchActivity:
			if ev.Activity != nil {
				timeline.Record(*ev.Activity)
				rev++
			}
		case model.EventError:
			streamErr = ev.Err
		}
		if streamErr != nil {
			break
		}
		flush(false)
	}

	if ctx.Err() != nil {
		return model.Message{}, nil, true
	}
	if streamErr != nil {
		for range events {
			// providers close after a terminal error; drain just in case
		}
		return model.Message{}, streamErr, false
	}

	flush(true)

	return model.Message{
		Role:       model.RoleAssistant,
		Parts:      scrubLeakedText(acc.Parts()),
		ToolCalls:  tracker.Calls(),
		Activities: timeline.Activities(),
	}, nil, false
}

// scrubLeakedText strips inline tool-call blobs from the finalized text
// parts. Adapters that recover leaked calls cannot retract text deltas
// they already emitted, so the cleanup happens here, once, on the
// message that gets persisted. Parts left empty are dropped.
func scrubLeakedText(parts []model.ContentPart) []model.ContentPart {
	out := parts[:0]
	for _, p := range parts {
		if p.Kind == model.PartText {
			p.Text = provider.CleanLeakedToolCalls(p.Text)
			if p.Text == "" {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// executeTools runs a round's tool calls strictly in declared order and
// builds the single tool-role message carrying all results. A
// cancellation between calls abandons the message entirely.
func (c *Controller) executeTools(ctx context.Context, calls []model.ToolCall) (model.Message, bool) {
	timeline := stream.NewActivityTimeline()
	results := make([]model.ToolResult, 0, len(calls))

	for _, call := range calls {
		if ctx.Err() != nil {
			return model.Message{}, true
		}

		start := time.Now()
		result, err := c.runOneTool(ctx, call)
		if ctx.Err() != nil {
			return model.Message{}, true
		}

		res := model.ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Signature:  call.Signature,
			Duration:   time.Since(start),
		}
		switch {
		case err != nil:
			res.Content = fmt.Sprintf("Error: %v. %s", err, toolRetryHint)
			res.IsError = true
		case result.IsError:
			content := result.Text
			if content == "" {
				content = emptyResultPlaceholder
			}
			res.Content = content + "\n" + toolRetryHint
			res.IsError = true
		case result.Text == "":
			res.Content = emptyResultPlaceholder
		default:
			res.Content = result.Text
		}

		timeline.RecordToolResult(call, res.IsError)
		results = append(results, res)

		if res.IsError {
			c.log.Warn("tool execution failed", "tool", call.Name, "error", res.Content)
		}
	}

	return model.Message{
		Role:       model.RoleTool,
		ToolRes:    results,
		Activities: timeline.Activities(),
	}, false
}

func (c *Controller) runOneTool(ctx context.Context, call model.ToolCall) (toolhub.Result, error) {
	if c.tools == nil {
		return toolhub.Result{}, fmt.Errorf("%w: %s", toolhub.ErrNoSuchTool, call.Name)
	}
	return c.tools.Execute(ctx, call.Name, call.Arguments)
}

func (c *Controller) persist(conversationID string, msg *model.Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()
	if c.store == nil {
		return nil
	}
	if err := c.store.Append(conversationID, *msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	return nil
}
