// Package transcript provides the single-conversation view for the TUI.
package transcript

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// View renders one conversation in full, with scrolling.
type View struct {
	styles *styles.Styles

	history      *domain.SessionHistory
	lines        []string
	scrollOffset int
	width        int
	height       int
}

// NewView creates a new transcript view.
func NewView(s *styles.Styles) *View {
	return &View{styles: s}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// SetHistory sets the conversation to display.
func (v *View) SetHistory(history *domain.SessionHistory) {
	v.history = history
	v.scrollOffset = 0
	v.renderLines()
}

// Update handles messages for the transcript view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.renderLines()
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset -= v.visibleLines()
		if v.scrollOffset < 0 {
			v.scrollOffset = 0
		}
	case "pgdown", "ctrl+d":
		maxOffset := v.maxScrollOffset()
		v.scrollOffset += v.visibleLines()
		if v.scrollOffset > maxOffset {
			v.scrollOffset = maxOffset
		}
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSessions}
		}
	}

	return v, nil
}

// renderLines builds the styled, wrapped transcript lines.
func (v *View) renderLines() {
	v.lines = nil
	if v.history == nil {
		return
	}

	contentWidth := v.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	header := v.history.Session.CreatedAt.Format("2006-01-02 15:04")
	if v.history.Highlight != nil {
		header += fmt.Sprintf("  (page %d)", v.history.Highlight.Page+1)
	}
	v.lines = append(v.lines, v.styles.Subtitle.Render(header), "")

	if v.history.Highlight != nil && v.history.Highlight.Text != "" {
		for _, line := range wrap(v.history.Highlight.Text, contentWidth) {
			v.lines = append(v.lines, v.styles.Muted.Render("| "+line))
		}
		v.lines = append(v.lines, "")
	}

	for _, m := range v.history.Messages {
		label := "A"
		style := v.styles.Answer
		if m.Role == domain.RoleQuestion {
			label = "Q"
			style = v.styles.Question
		}

		content := m.Content
		if m.Status == domain.StatusFailed {
			content += "\n(answer incomplete)"
		}

		first := true
		for _, line := range wrap(content, contentWidth-3) {
			prefix := "   "
			if first {
				prefix = style.Render(label+":") + " "
				first = false
			}
			v.lines = append(v.lines, prefix+line)
		}
		v.lines = append(v.lines, "")
	}
}

// View renders the transcript.
func (v *View) View() string {
	if v.history == nil {
		return v.styles.Muted.Render("No conversation selected")
	}

	start := v.scrollOffset
	end := start + v.visibleLines()
	if end > len(v.lines) {
		end = len(v.lines)
	}
	if start > end {
		start = end
	}

	body := strings.Join(v.lines[start:end], "\n")
	hint := v.styles.Help.Render("esc: back | j/k: scroll")
	return body + "\n" + hint
}

func (v *View) visibleLines() int {
	visible := v.height - 3
	if visible < 1 {
		visible = 1
	}
	return visible
}

func (v *View) maxScrollOffset() int {
	maxOffset := len(v.lines) - v.visibleLines()
	if maxOffset < 0 {
		maxOffset = 0
	}
	return maxOffset
}

// wrap splits text into lines no wider than width runes, breaking on spaces
// where possible.
func wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}

	var out []string
	for _, raw := range strings.Split(text, "\n") {
		if raw == "" {
			out = append(out, "")
			continue
		}

		var line string
		for _, word := range strings.Fields(raw) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
			for len(line) > width {
				out = append(out, line[:width])
				line = line[width:]
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
