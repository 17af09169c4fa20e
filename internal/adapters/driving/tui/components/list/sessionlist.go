// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// SessionList displays saved conversations in a navigable list.
type SessionList struct {
	histories []domain.SessionHistory
	selected  int
	styles    *styles.Styles
	width     int
	height    int
}

// NewSessionList creates a new session list component.
func NewSessionList(s *styles.Styles) *SessionList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SessionList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the session list.
func (l *SessionList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SessionList) Update(msg tea.Msg) (*SessionList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the session list.
func (l *SessionList) View() string {
	if len(l.histories) == 0 {
		return l.styles.Muted.Render("No saved conversations")
	}

	lines := make([]string, 0, len(l.histories)*3+2)

	header := l.styles.Subtitle.Render(fmt.Sprintf("Conversations (%d)", len(l.histories)))
	lines = append(lines, header, "")

	// Each entry takes up to three lines: timestamp, question, answer.
	visibleCount := (l.height - 4) / 3
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(l.histories) {
		end = len(l.histories)
	}

	for i := start; i < end; i++ {
		h := l.histories[i]
		stamp := h.Session.CreatedAt.Format("2006-01-02 15:04")

		marker := "  "
		stampStyle := l.styles.Normal
		if i == l.selected {
			marker = "> "
			stampStyle = l.styles.Selected
		}

		lines = append(lines, marker+stampStyle.Render(stamp))
		if q := h.Question(); q != "" {
			lines = append(lines, "    "+l.styles.Question.Render("Q: "+truncate(q, l.width-8)))
		}
		if a := h.Answer(); a != "" {
			lines = append(lines, "    "+l.styles.Muted.Render(truncate(a, l.width-8)))
		}
	}

	return strings.Join(lines, "\n")
}

// MoveUp moves the selection up.
func (l *SessionList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves the selection down.
func (l *SessionList) MoveDown() {
	if l.selected < len(l.histories)-1 {
		l.selected++
	}
}

// SetHistories replaces the list contents and clamps the selection.
func (l *SessionList) SetHistories(histories []domain.SessionHistory) {
	l.histories = histories
	if l.selected >= len(histories) {
		l.selected = 0
	}
}

// Selected returns the index of the selected conversation.
func (l *SessionList) Selected() int {
	return l.selected
}

// SelectedHistory returns the selected conversation, or nil when empty.
func (l *SessionList) SelectedHistory() *domain.SessionHistory {
	return l.At(l.selected)
}

// At returns the conversation at index i, or nil when out of range.
func (l *SessionList) At(i int) *domain.SessionHistory {
	if i < 0 || i >= len(l.histories) {
		return nil
	}
	return &l.histories[i]
}

// Len returns the number of conversations in the list.
func (l *SessionList) Len() int {
	return len(l.histories)
}

// SetDimensions sets the list dimensions.
func (l *SessionList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// truncate flattens text to one line and cuts it to max runes.
func truncate(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if max < 4 {
		max = 4
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
