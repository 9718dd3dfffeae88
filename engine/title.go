package engine

import (
	"context"
	"strings"
	"time"

	"parley/model"
)

const titlePrompt = "Summarize this conversation in at most five words. " +
	"Reply with the title only, no quotes or punctuation."

// TitleGenerator derives a short conversation title after the first
// toolless turn. The provider call is best-effort: any failure falls
// back to deriving the title from the first user message.
type TitleGenerator struct {
	provider model.Provider
}

// NewTitleGenerator wires a generator.
func NewTitleGenerator(provider model.Provider) *TitleGenerator {
	return &TitleGenerator{provider: provider}
}

// Generate asks the model for a title over the given context messages.
// It never returns an empty string and never returns an error.
func (g *TitleGenerator) Generate(ctx context.Context, messages []model.Message) string {
	fallback := FallbackTitle(firstUserText(messages))
	if g.provider == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	prompt := append([]model.Message{}, messages...)
	prompt = append(prompt, model.TextMessage(model.RoleUser, titlePrompt))

	var b strings.Builder
	events := g.provider.SendMessage(ctx, prompt, nil, model.Controls{MaxTokens: 32})
	for ev := range events {
		switch ev.Kind {
		case model.EventContentDelta:
			b.WriteString(ev.Text)
		case model.EventError:
			return fallback
		}
	}

	title := strings.TrimSpace(strings.Trim(b.String(), `"'`))
	if title == "" {
		return fallback
	}
	if len(title) > 60 {
		title = title[:60]
	}
	return title
}

// FallbackTitle derives a title from the first user message.
func FallbackTitle(firstMessage string) string {
	if firstMessage == "" {
		return "Conversation " + time.Now().Format("Jan 2, 3:04 PM")
	}

	name := firstMessage
	if len(name) > 30 {
		name = name[:30] + "..."
	}
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return "Conversation " + time.Now().Format("Jan 2, 3:04 PM")
	}
	return name
}

func firstUserText(messages []model.Message) string {
	for _, msg := range messages {
		if msg.Role == model.RoleUser {
			return msg.Text()
		}
	}
	return ""
}
