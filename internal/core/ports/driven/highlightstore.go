package driven

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// HighlightStore persists highlights scoped by document identity.
//
// Each write is one atomic row operation. Failures wrap domain.ErrStore;
// callers must not assume partial writes are rolled back beyond the single
// failing row.
type HighlightStore interface {
	// GetOrCreate resolves a selection to an existing AI-linked highlight
	// within the matcher tolerance, or persists a new one with the linked
	// kind and the AI flag set. Returns created=false when reusing. Reuse
	// never rewrites geometry.
	GetOrCreate(ctx context.Context, docID domain.DocumentID, region domain.Region, text string, cfg domain.MatchConfig) (*domain.Highlight, bool, error)

	// MarkAI idempotently sets the AI flag on a highlight. It never alters
	// geometry or kind, and is a no-op when the flag is already set.
	MarkAI(ctx context.Context, highlightID int64) error

	// ByDocument returns all highlights for a document, any order. This is
	// the candidate set the matcher reads; each call observes a consistent
	// snapshot of the document's highlights.
	ByDocument(ctx context.Context, docID domain.DocumentID) ([]domain.Highlight, error)
}
