package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"parley/engine"
	"parley/model"
	"parley/storage"
)

// RenderConversation renders the persisted history followed by the live
// partial snapshot of the in-flight turn, wrapped to the given width.
func RenderConversation(history []model.Message, snap engine.Snapshot, streaming bool, width int) string {
	var b strings.Builder

	for _, msg := range history {
		renderMessage(&b, msg, width)
	}

	if streaming {
		renderLive(&b, snap, width)
	}

	return b.String()
}

func renderMessage(b *strings.Builder, msg model.Message, width int) {
	switch msg.Role {
	case model.RoleUser:
		b.WriteString(UserStyle.Render("You"))
		b.WriteString("\n")
		b.WriteString(wrapText(msg.Text(), width))
		b.WriteString("\n\n")

	case model.RoleAssistant:
		b.WriteString(AssistantStyle.Render("Assistant"))
		b.WriteString("\n")
		renderParts(b, msg.Parts, width)
		for _, act := range msg.Activities {
			b.WriteString(renderActivity(act))
			b.WriteString("\n")
		}
		for _, call := range msg.ToolCalls {
			b.WriteString(renderToolCall(call))
			b.WriteString("\n")
		}
		b.WriteString("\n")

	case model.RoleTool:
		for _, res := range msg.ToolRes {
			label := fmt.Sprintf("= %s", res.ToolName)
			if res.IsError {
				b.WriteString(ErrorStyle.Render(label + " failed"))
			} else {
				b.WriteString(DimStyle.Render(label))
			}
			b.WriteString("\n")
			b.WriteString(DimStyle.Render(wrapText(firstLines(res.Content, 3), width)))
			b.WriteString("\n")
		}
		b.WriteString("\n")

	case model.RoleSystem:
		// system prompt is not part of the transcript view
	}
}

func renderLive(b *strings.Builder, snap engine.Snapshot, width int) {
	b.WriteString(AssistantStyle.Render("Assistant"))
	b.WriteString("\n")
	renderParts(b, snap.Parts, width)
	for _, act := range snap.Activities {
		b.WriteString(renderActivity(act))
		b.WriteString("\n")
	}
	for _, call := range snap.ToolCalls {
		b.WriteString(renderToolCall(call))
		b.WriteString("\n")
	}
}

func renderParts(b *strings.Builder, parts []model.ContentPart, width int) {
	for _, part := range parts {
		switch part.Kind {
		case model.PartText:
			b.WriteString(wrapText(part.Text, width))
			b.WriteString("\n")
		case model.PartThinking:
			b.WriteString(DimStyle.Render(wrapText(part.Text, width)))
			b.WriteString("\n")
		case model.PartRedactedThinking:
			b.WriteString(DimStyle.Render("[redacted thinking]"))
			b.WriteString("\n")
		case model.PartImage:
			b.WriteString(DimStyle.Render(fmt.Sprintf("[image %s]", part.MimeType)))
			b.WriteString("\n")
		case model.PartVideo:
			b.WriteString(DimStyle.Render(fmt.Sprintf("[video %s]", part.MimeType)))
			b.WriteString("\n")
		}
	}
}

func renderToolCall(call model.ToolCall) string {
	return ToolStyle.Render(fmt.Sprintf("> %s(%s)", call.Name, summarizeArgs(call.Arguments)))
}

func renderActivity(act model.SearchActivity) string {
	var marker string
	switch act.Status {
	case model.ActivityCompleted:
		marker = "search done"
	case model.ActivityFailed:
		marker = "search failed"
	default:
		marker = "searching"
	}
	args := summarizeArgs(act.Arguments)
	if args == "" {
		return ToolStyle.Render("~ " + marker)
	}
	return ToolStyle.Render(fmt.Sprintf("~ %s: %s", marker, args))
}

// RenderSearchResults renders a search listing: matching conversation
// titles first, then message hits with their previews.
func RenderSearchResults(query string, titles []storage.ConversationMetadata, matches []storage.MessageMatch, width int) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("Results for %q", query)))
	b.WriteString("\n\n")

	if len(titles) == 0 && len(matches) == 0 {
		b.WriteString(DimStyle.Render("no matches"))
		b.WriteString("\n")
		return b.String()
	}

	if len(titles) > 0 {
		b.WriteString(UserStyle.Render("Conversations"))
		b.WriteString("\n")
		for _, meta := range titles {
			line := fmt.Sprintf("%s  %s", meta.Title, DimStyle.Render(fmt.Sprintf("(%d messages)", meta.MessageCount)))
			b.WriteString(wrapText(line, width))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(matches) > 0 {
		b.WriteString(UserStyle.Render("Messages"))
		b.WriteString("\n")
		for _, m := range matches {
			line := fmt.Sprintf("%s: %s", m.Role, m.Preview)
			b.WriteString(wrapText(line, width))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// summarizeArgs renders arguments as a stable key=value list, truncated
// so a huge payload cannot blow out a transcript line.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	out := strings.Join(parts, ", ")
	if len(out) > 80 {
		out = out[:77] + "..."
	}
	return out
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

// wrapText wraps text at word boundaries to the display width, using
// rune widths so CJK text wraps correctly.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}

	var wrapped []string
	var cur strings.Builder
	curWidth := 0

	for _, word := range strings.Fields(line) {
		w := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+1+w > width {
			wrapped = append(wrapped, cur.String())
			cur.Reset()
			curWidth = 0
		}
		if curWidth > 0 {
			cur.WriteString(" ")
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	if cur.Len() > 0 {
		wrapped = append(wrapped, cur.String())
	}
	if len(wrapped) == 0 {
		return []string{""}
	}
	return wrapped
}
