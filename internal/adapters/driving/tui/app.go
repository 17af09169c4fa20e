package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/views/sessions"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/views/transcript"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	// keymap holds the keybindings.
	keymap *keymap.KeyMap

	// statusBar is the bottom status bar.
	statusBar *status.Bar

	// sessionsView lists the document's conversations.
	sessionsView *sessions.View

	// transcriptView shows one conversation in full.
	transcriptView *transcript.View

	// askView is the follow-up question view.
	askView *ask.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// previousView is where help returns to.
	previousView messages.ViewType

	// docID and docPath identify the document being browsed.
	docID   domain.DocumentID
	docPath string

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has received its dimensions.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keymap:         km,
		statusBar:      status.NewBar(s, km),
		sessionsView:   sessions.NewView(s, ports.History),
		transcriptView: transcript.NewView(s),
		askView:        ask.NewView(s, ports.Ask),
		currentView:    messages.ViewSessions,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// SetDocument sets the document to browse. Must be called before running.
func (a *App) SetDocument(docID domain.DocumentID, docPath string) {
	a.docID = docID
	a.docPath = docPath
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tea.SetWindowTitle("marginalia"),
	}
	if a.docID != "" {
		a.statusBar.SetState(status.StateLoading)
		cmds = append(cmds, a.sessionsView.SetDocument(a.docID, a.docPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.HistoryLoaded:
		if msg.Err != nil {
			a.statusBar.SetState(status.StateError)
			a.statusBar.SetMessage(msg.Err.Error())
		} else {
			a.statusBar.SetState(status.StateReady)
			a.statusBar.SetSessionCount(len(msg.Histories))
		}
		var cmd tea.Cmd
		a.sessionsView, cmd = a.sessionsView.Update(msg)
		return a, cmd

	case messages.SessionSelected:
		if history := a.sessionsView.HistoryAt(msg.Index); history != nil {
			a.transcriptView.SetHistory(history)
			a.currentView = messages.ViewTranscript
		}
		return a, nil

	case messages.ViewChanged:
		return a.changeView(msg.View)

	case messages.AnswerProgress:
		a.statusBar.SetState(status.StateStreaming)
		var cmd tea.Cmd
		a.askView, cmd = a.askView.Update(msg)
		return a, cmd

	case messages.AnswerCompleted:
		var cmd tea.Cmd
		a.askView, cmd = a.askView.Update(msg)
		if msg.Err != nil {
			a.statusBar.SetState(status.StateError)
			a.statusBar.SetMessage(msg.Err.Error())
			return a, cmd
		}
		a.statusBar.SetState(status.StateReady)
		// The answer opened a new session; refresh the list behind the
		// ask view so it is current on return.
		return a, tea.Batch(cmd, a.sessionsView.Reload())
	}

	return a.updateCurrentView(msg)
}

// handleKeyMsg routes key presses.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// The ask view owns its keys while typing; only ctrl+c breaks out.
	if a.currentView == messages.ViewAsk {
		if key == "ctrl+c" {
			return a, tea.Quit
		}
		return a.updateCurrentView(msg)
	}

	switch key {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "?":
		if a.currentView == messages.ViewHelp {
			a.currentView = a.previousView
			a.statusBar.SetState(status.StateReady)
		} else {
			a.previousView = a.currentView
			a.currentView = messages.ViewHelp
			a.statusBar.SetState(status.StateHelp)
		}
		return a, nil

	case "esc":
		if a.currentView == messages.ViewHelp {
			a.currentView = a.previousView
			a.statusBar.SetState(status.StateReady)
			return a, nil
		}
		return a.updateCurrentView(msg)

	case "a":
		if a.currentView == messages.ViewSessions || a.currentView == messages.ViewTranscript {
			return a.changeView(messages.ViewAsk)
		}
		return a.updateCurrentView(msg)
	}

	return a.updateCurrentView(msg)
}

// changeView switches the active view, seeding it as needed.
func (a *App) changeView(view messages.ViewType) (tea.Model, tea.Cmd) {
	if view == messages.ViewAsk {
		anchor := a.sessionsView.SelectedHistory()
		if anchor == nil || anchor.Highlight == nil || a.ports.Ask == nil {
			// Nothing to anchor a follow-up to.
			return a, nil
		}
		a.askView.SetAnchor(a.docID, a.docPath, anchor)
	}
	a.currentView = view
	return a, nil
}

// updateCurrentView forwards a message to the active view.
func (a *App) updateCurrentView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewSessions:
		a.sessionsView, cmd = a.sessionsView.Update(msg)
	case messages.ViewTranscript:
		a.transcriptView, cmd = a.transcriptView.Update(msg)
	case messages.ViewAsk:
		a.askView, cmd = a.askView.Update(msg)
	case messages.ViewHelp:
		// Help is static.
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var body string
	switch a.currentView {
	case messages.ViewSessions:
		body = a.sessionsView.View()
	case messages.ViewTranscript:
		body = a.transcriptView.View()
	case messages.ViewAsk:
		body = a.askView.View()
	case messages.ViewHelp:
		body = a.helpView()
	}

	// Pad the body so the status bar sits on the last line.
	bodyHeight := a.height - 2
	lines := strings.Count(body, "\n") + 1
	if pad := bodyHeight - lines; pad > 0 {
		body += strings.Repeat("\n", pad)
	}

	return body + "\n" + a.statusBar.View()
}

// helpView renders the keybinding reference.
func (a *App) helpView() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Keybindings"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Help.Render("?: close help"))
	return b.String()
}

// CurrentView returns the active view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// SetDimensions sets the terminal dimensions and propagates them.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.statusBar.SetWidth(width)

	size := tea.WindowSizeMsg{Width: width, Height: height - 2}
	a.sessionsView, _ = a.sessionsView.Update(size)
	a.transcriptView, _ = a.transcriptView.Update(size)
	a.askView, _ = a.askView.Update(size)
}
