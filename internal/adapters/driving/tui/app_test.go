package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

func sampleHistories() []domain.SessionHistory {
	h := domain.Highlight{
		ID:         7,
		DocumentID: "doc-1",
		Page:       2,
		Boxes:      []domain.Rect{{Left: 10, Top: 20, Right: 100, Bottom: 30}},
		Text:       "the selected passage",
		Kind:       domain.KindLinked,
		AI:         true,
		CreatedAt:  time.Now(),
	}
	return []domain.SessionHistory{
		{
			Session: domain.Session{ID: "s-1", HighlightID: 7, DocumentID: "doc-1", CreatedAt: time.Now()},
			Messages: []domain.Message{
				{SessionID: "s-1", Position: 0, Role: domain.RoleQuestion, Content: "what is this", Status: domain.StatusComplete},
				{SessionID: "s-1", Position: 1, Role: domain.RoleAnswer, Content: "an answer", Status: domain.StatusComplete},
			},
			Highlight: &h,
		},
	}
}

func newTestPorts() *Ports {
	return &Ports{
		History: &MockHistoryService{Histories: sampleHistories()},
		Ask:     &MockAskService{},
	}
}

// loadedApp builds an app with dimensions set and history loaded.
func loadedApp(t *testing.T) *App {
	t.Helper()

	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDocument("doc-1", "/papers/attention.pdf")
	app.SetDimensions(80, 24)
	app.Update(messages.HistoryLoaded{Histories: sampleHistories()})
	return app
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{})

	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")
	result := app.WithContext(ctx)

	assert.Equal(t, app, result)
}

func TestApp_Init_LoadsHistory(t *testing.T) {
	app, _ := NewApp(newTestPorts())
	app.SetDocument("doc-1", "/papers/attention.pdf")

	cmd := app.Init()

	assert.NotNil(t, cmd)
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	model, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	updated, ok := model.(*App)
	require.True(t, ok)
	assert.NotEqual(t, "Loading...", updated.View())
}

func TestApp_QuitKey(t *testing.T) {
	app := loadedApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_SessionSelected_OpensTranscript(t *testing.T) {
	app := loadedApp(t)

	app.Update(messages.SessionSelected{Index: 0})

	assert.Equal(t, messages.ViewTranscript, app.CurrentView())
}

func TestApp_SessionSelected_OutOfRange(t *testing.T) {
	app := loadedApp(t)

	app.Update(messages.SessionSelected{Index: 42})

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_AskKey_OpensAskView(t *testing.T) {
	app := loadedApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	assert.Equal(t, messages.ViewAsk, app.CurrentView())
}

func TestApp_AskKey_NoConversations(t *testing.T) {
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDimensions(80, 24)
	app.Update(messages.HistoryLoaded{Histories: nil})

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_AskKey_NoAskService(t *testing.T) {
	ports := newTestPorts()
	ports.Ask = nil
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(80, 24)
	app.Update(messages.HistoryLoaded{Histories: sampleHistories()})

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_HelpToggle(t *testing.T) {
	app := loadedApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_EscClosesHelp(t *testing.T) {
	app := loadedApp(t)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_EscLeavesTranscript(t *testing.T) {
	app := loadedApp(t)
	app.Update(messages.SessionSelected{Index: 0})
	require.Equal(t, messages.ViewTranscript, app.CurrentView())

	// The transcript view answers esc with a ViewChanged command.
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, messages.ViewSessions, app.CurrentView())
}

func TestApp_HistoryLoadError_ShowsError(t *testing.T) {
	app := loadedApp(t)

	app.Update(messages.HistoryLoaded{Err: assert.AnError})

	view := app.View()
	assert.Contains(t, view, "Error")
}

func TestApp_View_ShowsDocumentPath(t *testing.T) {
	app := loadedApp(t)

	assert.Contains(t, app.View(), "attention.pdf")
}

func TestApp_View_ShowsQuestionPreview(t *testing.T) {
	app := loadedApp(t)

	assert.Contains(t, app.View(), "what is this")
}
