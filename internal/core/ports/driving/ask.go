package driving

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// AskRequest is one "new question" event from the viewer.
type AskRequest struct {
	// DocumentID is the resolved document identity.
	DocumentID domain.DocumentID

	// DocumentPath is the file path, passed through to the model prompt.
	DocumentPath string

	// Region is the selection geometry in document space.
	Region domain.Region

	// SelectedText is the highlighted passage.
	SelectedText string

	// Question is the user's question. Blank means "show me what's here":
	// the flow short-circuits to a history lookup without starting a
	// session or calling the model.
	Question string

	// Snippet is the pre-extracted context around the selection.
	Snippet domain.ContextSnippet

	// OnFragment, when non-nil, receives the accumulated answer text after
	// each fragment. Called from the streaming goroutine's consumer loop.
	OnFragment func(accumulated string)
}

// AskResult reports what the linking flow did.
type AskResult struct {
	// Highlight is the resolved or created anchor. Nil only on the
	// short-circuit path when nothing was near the selection.
	Highlight *domain.Highlight

	// Created reports whether the highlight was newly written.
	Created bool

	// Session is the conversation opened for the question. Nil on the
	// short-circuit path.
	Session *domain.Session

	// Answer is the answer message in its final state. Nil on the
	// short-circuit path.
	Answer *domain.Message

	// History is populated on the short-circuit path: the sessions already
	// anchored near the selection, newest first.
	History []domain.SessionHistory

	// ShortCircuited reports that the request carried no question and was
	// answered from history alone.
	ShortCircuited bool
}

// AskService is the linking orchestrator: it anchors a question to a
// highlight and records the streamed exchange.
type AskService interface {
	Ask(ctx context.Context, req AskRequest) (*AskResult, error)
}
