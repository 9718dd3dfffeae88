// Package ui is the terminal chat surface: a bubbletea program with a
// transcript viewport and an input textarea. It renders registry snapshots
// published by the engine while a turn streams.
package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"parley/engine"
	"parley/model"
	"parley/storage"
)

const defaultTitle = "New Conversation"

type snapshotMsg struct {
	snap engine.Snapshot
}

type turnDoneMsg struct {
	produced []model.Message
	err      error
}

type titleMsg struct {
	title string
}

type App struct {
	provider   model.Provider
	controller *engine.Controller
	registry   *engine.Registry
	store      *storage.ConversationStore
	titles     *engine.TitleGenerator

	conversationID string
	title          string
	history        []model.Message

	viewport viewport.Model
	textarea textarea.Model
	spin     spinner.Model

	// snapshot and completion events from the turn goroutine
	events chan tea.Msg

	width      int
	height     int
	ready      bool
	streaming  bool
	searchMode bool
	snap       engine.Snapshot
	lastErr    error
}

func NewApp(provider model.Provider, controller *engine.Controller, registry *engine.Registry, store *storage.ConversationStore, titles *engine.TitleGenerator, conv *storage.Conversation) App {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter for newline, Enter sends
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DimStyle

	return App{
		provider:       provider,
		controller:     controller,
		registry:       registry,
		store:          store,
		titles:         titles,
		conversationID: conv.ID,
		title:          conv.Title,
		history:        slices.Clone(conv.Messages),
		viewport:       viewport.New(0, 0),
		textarea:       ta,
		spin:           sp,
		events:         make(chan tea.Msg, 64),
	}
}

func (a App) Init() tea.Cmd {
	return textarea.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		headerHeight := 2
		inputHeight := a.textarea.Height() + 1
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - headerHeight - inputHeight - 1
		a.textarea.SetWidth(msg.Width)
		a.ready = true
		a.refreshViewport()
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "alt+q":
			a.registry.Cancel(a.conversationID)
			return a, tea.Quit

		case "esc":
			if a.streaming {
				a.registry.Cancel(a.conversationID)
			} else if a.searchMode {
				a = a.leaveSearch()
			}
			return a, nil

		case "ctrl+f":
			if a.streaming {
				return a, nil
			}
			if a.searchMode {
				a = a.leaveSearch()
			} else {
				a.searchMode = true
				a.textarea.Reset()
				a.textarea.Placeholder = "Search conversations..."
			}
			return a, nil

		case "ctrl+e":
			if !a.streaming && !a.searchMode {
				return a.editLastUserMessage()
			}
			return a, nil

		case "enter":
			if a.searchMode {
				return a.runSearch()
			}
			if !a.streaming {
				return a.send()
			}
			return a, nil
		}

	case snapshotMsg:
		a.snap = msg.snap
		a.refreshViewport()
		return a, a.waitForEvent()

	case turnDoneMsg:
		a.streaming = false
		a.registry.End(a.conversationID)
		a.history = append(a.history, msg.produced...)
		a.snap = engine.Snapshot{}
		a.lastErr = msg.err
		a.refreshViewport()
		if msg.err == nil && a.title == defaultTitle && len(msg.produced) > 0 {
			return a, a.generateTitle()
		}
		return a, nil

	case titleMsg:
		a.title = msg.title
		return a, nil

	case spinner.TickMsg:
		if a.streaming {
			var cmd tea.Cmd
			a.spin, cmd = a.spin.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a App) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.textarea.Value())
	if text == "" {
		return a, nil
	}

	session, err := a.registry.Begin(a.conversationID)
	if err != nil {
		return a, nil
	}

	userMsg := model.TextMessage(model.RoleUser, text)
	userMsg.ID = uuid.NewString()
	if err := a.store.Append(a.conversationID, userMsg); err != nil {
		a.registry.End(a.conversationID)
		a.lastErr = err
		return a, nil
	}
	a.history = append(a.history, userMsg)
	a.textarea.Reset()
	a.lastErr = nil
	a.streaming = true
	a.snap = engine.Snapshot{}

	// Drop snapshots left over from an earlier turn.
drain:
	for {
		select {
		case <-a.events:
		default:
			break drain
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.registry.Attach(a.conversationID, cancel)

	events := a.events
	controller := a.controller
	conversationID := a.conversationID
	history := slices.Clone(a.history)

	go func() {
		defer cancel()
		produced, err := controller.RunTurn(ctx, conversationID, history, func(s engine.Snapshot) {
			session.Publish(s)
			// The throttler paces publishes; under backpressure the next
			// snapshot supersedes a dropped one.
			select {
			case events <- snapshotMsg{snap: s}:
			default:
			}
		})
		events <- turnDoneMsg{produced: produced, err: err}
	}()

	a.refreshViewport()
	return a, tea.Batch(a.waitForEvent(), a.spin.Tick)
}

// runSearch queries titles and message text and swaps the viewport to
// the result listing. The transcript comes back when search mode ends.
func (a App) runSearch() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(a.textarea.Value())
	if query == "" {
		return a, nil
	}
	titles, err := a.store.SearchTitles(query)
	if err != nil {
		a.lastErr = err
		return a, nil
	}
	matches, err := a.store.SearchMessages(query, 20)
	if err != nil {
		a.lastErr = err
		return a, nil
	}
	a.viewport.SetContent(RenderSearchResults(query, titles, matches, a.viewport.Width))
	a.viewport.GotoTop()
	return a, nil
}

func (a App) leaveSearch() App {
	a.searchMode = false
	a.textarea.Reset()
	a.textarea.Placeholder = "Type your message..."
	a.refreshViewport()
	return a
}

// editLastUserMessage pulls the most recent user message back into the
// input, dropping it and every later message from the history. Sending
// again re-appends the edited text and regenerates from there.
func (a App) editLastUserMessage() (tea.Model, tea.Cmd) {
	idx := -1
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].Role == model.RoleUser {
			idx = i
			break
		}
	}
	if idx == -1 {
		return a, nil
	}
	msg := a.history[idx]
	if err := a.store.TruncateFrom(a.conversationID, msg.ID); err != nil {
		a.lastErr = err
		return a, nil
	}
	a.history = a.history[:idx]
	a.textarea.SetValue(msg.Text())
	a.refreshViewport()
	return a, nil
}

func (a App) waitForEvent() tea.Cmd {
	events := a.events
	return func() tea.Msg {
		return <-events
	}
}

func (a App) generateTitle() tea.Cmd {
	titles := a.titles
	store := a.store
	conversationID := a.conversationID
	history := slices.Clone(a.history)
	return func() tea.Msg {
		title := titles.Generate(context.Background(), history)
		if err := store.SetTitle(conversationID, title); err != nil {
			return titleMsg{title: defaultTitle}
		}
		return titleMsg{title: title}
	}
}

func (a *App) refreshViewport() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(RenderConversation(a.history, a.snap, a.streaming, a.viewport.Width))
	a.viewport.GotoBottom()
}

func (a App) View() string {
	if !a.ready {
		return "Loading parley..."
	}

	title := AssistantStyle.Render("parley") +
		TitleStyle.Render(fmt.Sprintf(" - %s", a.provider.GetDisplayName())) +
		UserStyle.Render(fmt.Sprintf(" - %s", a.title))
	if a.streaming {
		title += " " + a.spin.View()
	}

	statusBar := FormatFooter(
		"Enter", "Send",
		"Alt+Enter", "New Line",
		"Ctrl+F", "Search",
		"Ctrl+E", "Edit",
		"Esc", "Cancel",
		"Ctrl+C", "Quit",
	)
	if a.searchMode {
		statusBar = FormatFooter(
			"Enter", "Search",
			"Esc", "Back",
			"Ctrl+C", "Quit",
		)
	}
	if a.lastErr != nil {
		statusBar = ErrorStyle.Render("error: "+a.lastErr.Error()) + "  " + StatusStyle.Render(statusBar)
	} else {
		statusBar = StatusStyle.Render(statusBar)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		a.textarea.View(),
		statusBar,
	)
}
