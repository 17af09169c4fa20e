package driven

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// AnswerStreamer produces a model answer as an asynchronous sequence of
// text fragments. This is an optional service.
//
// Implementations may include:
//   - OpenAI (chat completions with SSE streaming)
//   - Ollama (local models, NDJSON streaming)
type AnswerStreamer interface {
	// Stream starts a completion and returns a fragment channel and an
	// error channel. The fragment channel closes on end-of-stream; a
	// terminal failure (at most one) arrives on the error channel. The
	// implementation owns any request timeout - the core enforces none.
	Stream(ctx context.Context, req AnswerRequest) (<-chan string, <-chan error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// AnswerRequest carries everything the model needs to answer a question
// about a selection.
type AnswerRequest struct {
	// DocumentPath is the path of the open document, for prompt context.
	DocumentPath string

	// SelectedText is the highlighted passage.
	SelectedText string

	// Question is the user's question about the selection.
	Question string

	// Snippet is the surrounding page text and metadata.
	Snippet domain.ContextSnippet
}
