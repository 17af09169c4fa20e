package driven

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// DocumentResolver maps a document file path to its stable identity.
type DocumentResolver interface {
	// Resolve returns the document identity for a file path. Identical
	// files resolve to the same identity across runs.
	Resolve(ctx context.Context, filePath string) (domain.DocumentID, error)
}

// ViewerControl sends feedback to the running host viewer. This is an
// optional service.
type ViewerControl interface {
	// SetStatus shows a single-line message on the viewer's status bar.
	SetStatus(ctx context.Context, message string) error

	// Reload asks the viewer to re-read its highlight table so a newly
	// written highlight becomes visible.
	Reload(ctx context.Context) error
}
