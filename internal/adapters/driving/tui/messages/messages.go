// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// HistoryLoaded carries a document's saved conversations back to the model.
type HistoryLoaded struct {
	Histories []domain.SessionHistory
	Err       error
}

// SessionSelected is sent when a conversation is chosen from the list.
type SessionSelected struct {
	Index int
}

// AnswerProgress carries the accumulated answer text while a follow-up
// question streams.
type AnswerProgress struct {
	Accumulated string
}

// AnswerCompleted is sent when a follow-up question finishes, successfully
// or not. A failed stream still carries the partial result.
type AnswerCompleted struct {
	Result *driving.AskResult
	Err    error
}

// ErrorOccurred reports an error to the active view.
type ErrorOccurred struct {
	Err error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSessions lists the document's saved conversations.
	ViewSessions ViewType = iota
	// ViewTranscript shows one conversation in full.
	ViewTranscript
	// ViewAsk is the follow-up question view.
	ViewAsk
	// ViewHelp is the help/keybindings view.
	ViewHelp
)
