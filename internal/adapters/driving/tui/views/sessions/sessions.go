// Package sessions provides the conversation list view for the TUI.
package sessions

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// View is the conversation list view.
type View struct {
	styles         *styles.Styles
	historyService driving.HistoryService

	docID   domain.DocumentID
	docPath string
	list    *list.SessionList
	width   int
	height  int
	loading bool
	err     error
}

// NewView creates a new conversation list view.
func NewView(s *styles.Styles, historyService driving.HistoryService) *View {
	return &View{
		styles:         s,
		historyService: historyService,
		list:           list.NewSessionList(s),
	}
}

// SetDocument sets the document and triggers a history load.
func (v *View) SetDocument(docID domain.DocumentID, docPath string) tea.Cmd {
	v.docID = docID
	v.docPath = docPath
	v.err = nil
	return v.loadHistory()
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// loadHistory returns a command that loads the document's conversations.
func (v *View) loadHistory() tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		if v.historyService == nil {
			return messages.HistoryLoaded{Err: fmt.Errorf("history service not available")}
		}
		histories, err := v.historyService.ForDocument(context.Background(), v.docID)
		return messages.HistoryLoaded{Histories: histories, Err: err}
	}
}

// Update handles messages for the conversation list view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.list.SetDimensions(msg.Width, msg.Height-4)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.HistoryLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
		} else {
			v.err = nil
			v.list.SetHistories(msg.Histories)
		}
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "down", "j":
		var cmd tea.Cmd
		v.list, cmd = v.list.Update(msg)
		return v, cmd
	case "enter":
		if v.list.Len() == 0 {
			return v, nil
		}
		index := v.list.Selected()
		return v, func() tea.Msg {
			return messages.SessionSelected{Index: index}
		}
	case "r":
		return v, v.loadHistory()
	}
	return v, nil
}

// View renders the conversation list.
func (v *View) View() string {
	title := v.styles.Title.Render("Marginalia")
	doc := v.styles.Muted.Render(v.docPath)
	header := title + "  " + doc + "\n\n"

	if v.loading {
		return header + v.styles.Muted.Render("Loading conversations...")
	}
	if v.err != nil {
		return header + v.styles.Error.Render(fmt.Sprintf("Error: %v", v.err))
	}
	return header + v.list.View()
}

// HistoryAt returns the conversation at index i, or nil when out of range.
func (v *View) HistoryAt(i int) *domain.SessionHistory {
	return v.list.At(i)
}

// SelectedHistory returns the selected conversation, or nil when empty.
func (v *View) SelectedHistory() *domain.SessionHistory {
	return v.list.SelectedHistory()
}

// Len returns the number of loaded conversations.
func (v *View) Len() int {
	return v.list.Len()
}

// Reload returns a command that reloads the conversation list.
func (v *View) Reload() tea.Cmd {
	return v.loadHistory()
}
