package list

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

func historyWith(id, question, answer string) domain.SessionHistory {
	return domain.SessionHistory{
		Session: domain.Session{ID: id, CreatedAt: time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)},
		Messages: []domain.Message{
			{Role: domain.RoleQuestion, Content: question, Status: domain.StatusComplete},
			{Role: domain.RoleAnswer, Content: answer, Status: domain.StatusComplete},
		},
	}
}

func TestSessionList_EmptyView(t *testing.T) {
	l := NewSessionList(nil)

	assert.Contains(t, l.View(), "No saved conversations")
}

func TestSessionList_ViewShowsEntries(t *testing.T) {
	l := NewSessionList(nil)
	l.SetHistories([]domain.SessionHistory{
		historyWith("s-1", "what is attention", "a weighting mechanism"),
	})

	view := l.View()
	assert.Contains(t, view, "Conversations (1)")
	assert.Contains(t, view, "2026-03-14")
	assert.Contains(t, view, "what is attention")
}

func TestSessionList_Navigation(t *testing.T) {
	l := NewSessionList(nil)
	l.SetHistories([]domain.SessionHistory{
		historyWith("s-1", "q1", "a1"),
		historyWith("s-2", "q2", "a2"),
		historyWith("s-3", "q3", "a3"),
	})

	assert.Equal(t, 0, l.Selected())

	l.MoveDown()
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	// Clamped at the end
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	l.MoveUp()
	assert.Equal(t, 1, l.Selected())
}

func TestSessionList_SelectionClampedOnReload(t *testing.T) {
	l := NewSessionList(nil)
	l.SetHistories([]domain.SessionHistory{
		historyWith("s-1", "q1", "a1"),
		historyWith("s-2", "q2", "a2"),
	})
	l.MoveDown()

	l.SetHistories([]domain.SessionHistory{historyWith("s-1", "q1", "a1")})

	assert.Equal(t, 0, l.Selected())
}

func TestSessionList_At(t *testing.T) {
	l := NewSessionList(nil)
	l.SetHistories([]domain.SessionHistory{
		historyWith("s-1", "q1", "a1"),
		historyWith("s-2", "q2", "a2"),
	})

	h := l.At(1)
	require.NotNil(t, h)
	assert.Equal(t, "s-2", h.Session.ID)

	assert.Nil(t, l.At(-1))
	assert.Nil(t, l.At(2))
}

func TestSessionList_SelectedHistory(t *testing.T) {
	l := NewSessionList(nil)

	assert.Nil(t, l.SelectedHistory())

	l.SetHistories([]domain.SessionHistory{historyWith("s-1", "q1", "a1")})
	h := l.SelectedHistory()
	require.NotNil(t, h)
	assert.Equal(t, "s-1", h.Session.ID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "one two", truncate("one\n  two", 20))
	assert.Equal(t, "long t...", truncate("long text here", 9))
}
