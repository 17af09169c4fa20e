package driving

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// HistoryService resolves past conversations by pointing at (or near) an
// annotated region. It never contacts the model service.
type HistoryService interface {
	// Resolve returns the transcripts anchored to the highlight nearest
	// the query, newest session first. No highlight within tolerance
	// returns (nil, nil); callers distinguish that from a found highlight
	// with an empty history via Locate.
	Resolve(ctx context.Context, docID domain.DocumentID, q domain.Query) ([]domain.SessionHistory, error)

	// Locate returns the highlight nearest the query without loading
	// transcripts, or nil when nothing is within tolerance.
	Locate(ctx context.Context, docID domain.DocumentID, q domain.Query) (*domain.Highlight, error)

	// ForDocument returns every transcript for a document, newest session
	// first. This feeds the sidebar history view.
	ForDocument(ctx context.Context, docID domain.DocumentID) ([]domain.SessionHistory, error)
}
