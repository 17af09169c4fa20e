// Package ask provides the follow-up question view for the TUI. A question
// asked here re-anchors to the highlight of the conversation it was opened
// from, so the answer lands in the same margin.
package ask

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// View is the follow-up question view.
type View struct {
	styles     *styles.Styles
	askService driving.AskService

	docID   domain.DocumentID
	docPath string
	anchor  *domain.SessionHistory

	input     *input.QuestionInput
	answer    string
	streaming bool
	err       error

	// frags carries accumulated answer text out of the streaming
	// goroutine; done carries the final outcome. Both are drained by
	// waitForUpdate commands.
	frags chan string
	done  chan messages.AnswerCompleted

	width  int
	height int
}

// NewView creates a new follow-up question view.
func NewView(s *styles.Styles, askService driving.AskService) *View {
	return &View{
		styles:     s,
		askService: askService,
		input:      input.NewQuestionInput(s),
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// SetAnchor sets the conversation whose highlight the next question is
// anchored to.
func (v *View) SetAnchor(docID domain.DocumentID, docPath string, anchor *domain.SessionHistory) {
	v.docID = docID
	v.docPath = docPath
	v.anchor = anchor
	v.answer = ""
	v.err = nil
	v.input.Reset()
	v.input.Focus()
}

// Ready reports whether the view can submit questions.
func (v *View) Ready() bool {
	return v.askService != nil && v.anchor != nil && v.anchor.Highlight != nil
}

// Update handles messages for the follow-up question view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.input.SetWidth(msg.Width)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerProgress:
		if v.streaming {
			v.answer = msg.Accumulated
			return v, v.waitForUpdate()
		}
		return v, nil

	case messages.AnswerCompleted:
		v.streaming = false
		if msg.Err != nil {
			v.err = msg.Err
		}
		if msg.Result != nil && msg.Result.Answer != nil {
			v.answer = msg.Result.Answer.Content
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if v.streaming {
			return v, nil
		}
		question := strings.TrimSpace(v.input.Value())
		if question == "" {
			return v, nil
		}
		return v, v.submit(question)
	case "esc":
		if v.streaming {
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSessions}
		}
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit starts the ask flow in a goroutine and begins draining updates.
func (v *View) submit(question string) tea.Cmd {
	if !v.Ready() {
		v.err = fmt.Errorf("no highlight to anchor the question to")
		return nil
	}

	highlight := v.anchor.Highlight
	req := driving.AskRequest{
		DocumentID:   v.docID,
		DocumentPath: v.docPath,
		Region:       highlight.Region(),
		SelectedText: highlight.Text,
		Question:     question,
		Snippet:      v.anchor.Session.Snippet,
	}

	v.streaming = true
	v.answer = ""
	v.err = nil
	v.frags = make(chan string, 16)
	v.done = make(chan messages.AnswerCompleted, 1)

	frags := v.frags
	done := v.done
	req.OnFragment = func(accumulated string) {
		// Drop rather than block: accumulated text is cumulative, so a
		// later update carries everything a dropped one did.
		select {
		case frags <- accumulated:
		default:
		}
	}

	ask := v.askService
	go func() {
		result, err := ask.Ask(context.Background(), req)
		done <- messages.AnswerCompleted{Result: result, Err: err}
	}()

	return v.waitForUpdate()
}

// waitForUpdate returns a command that delivers the next streaming update.
func (v *View) waitForUpdate() tea.Cmd {
	frags := v.frags
	done := v.done
	return func() tea.Msg {
		select {
		case accumulated := <-frags:
			return messages.AnswerProgress{Accumulated: accumulated}
		case completed := <-done:
			return completed
		}
	}
}

// View renders the follow-up question view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Follow-up"))
	b.WriteString("\n")
	if v.anchor != nil && v.anchor.Highlight != nil {
		anchorLine := fmt.Sprintf("page %d", v.anchor.Highlight.Page+1)
		if v.anchor.Highlight.Text != "" {
			anchorLine += ": " + flatten(v.anchor.Highlight.Text, v.width-12)
		}
		b.WriteString(v.styles.Muted.Render(anchorLine))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.input.View())
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %v", v.err)))
	case v.streaming && v.answer == "":
		b.WriteString(v.styles.Muted.Render("Thinking..."))
	case v.answer != "":
		b.WriteString(v.styles.Answer.Render(v.answer))
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("enter: ask | esc: back"))
	return b.String()
}

// Streaming reports whether an answer is currently streaming.
func (v *View) Streaming() bool {
	return v.streaming
}

// Answer returns the current answer text.
func (v *View) Answer() string {
	return v.answer
}

// flatten reduces text to a single truncated line.
func flatten(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	if width < 4 {
		width = 4
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-3]) + "..."
}
