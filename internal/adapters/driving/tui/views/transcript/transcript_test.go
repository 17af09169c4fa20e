package transcript

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

func testHistory() *domain.SessionHistory {
	return &domain.SessionHistory{
		Session: domain.Session{ID: "s-1", CreatedAt: time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)},
		Messages: []domain.Message{
			{Role: domain.RoleQuestion, Content: "what is attention", Status: domain.StatusComplete},
			{Role: domain.RoleAnswer, Content: "a weighting mechanism over the input", Status: domain.StatusComplete},
		},
		Highlight: &domain.Highlight{
			ID:   7,
			Page: 2,
			Text: "scaled dot-product attention",
		},
	}
}

func newTestView() *View {
	v := NewView(styles.DefaultStyles())
	v.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return v
}

func TestView_Empty(t *testing.T) {
	v := newTestView()

	assert.Contains(t, v.View(), "No conversation selected")
}

func TestView_RendersTranscript(t *testing.T) {
	v := newTestView()
	v.SetHistory(testHistory())

	view := v.View()
	assert.Contains(t, view, "2026-03-14")
	assert.Contains(t, view, "page 3")
	assert.Contains(t, view, "scaled dot-product attention")
	assert.Contains(t, view, "what is attention")
	assert.Contains(t, view, "a weighting mechanism")
}

func TestView_MarksIncompleteAnswers(t *testing.T) {
	h := testHistory()
	h.Messages[1].Status = domain.StatusFailed

	v := newTestView()
	v.SetHistory(h)

	assert.Contains(t, v.View(), "(answer incomplete)")
}

func TestView_EscReturnsToSessions(t *testing.T) {
	v := newTestView()
	v.SetHistory(testHistory())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	msg, ok := cmd().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewSessions, msg.View)
}

func TestView_ScrollClamped(t *testing.T) {
	v := newTestView()
	v.SetHistory(testHistory())

	// Scrolling up at the top stays at the top
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 0, v.scrollOffset)

	// End then further down stays clamped
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	bottom := v.scrollOffset
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, bottom, v.scrollOffset)
}

func TestWrap(t *testing.T) {
	lines := wrap("alpha beta gamma", 10)
	assert.Equal(t, []string{"alpha beta", "gamma"}, lines)

	lines = wrap("one\n\ntwo", 10)
	assert.Equal(t, []string{"one", "", "two"}, lines)

	// A word longer than the width is hard-broken
	lines = wrap("abcdefghijkl", 5)
	assert.Equal(t, []string{"abcde", "fghij", "kl"}, lines)
}
