package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// highlightStore implements driven.HighlightStore.
type highlightStore struct {
	store *Store
}

var _ driven.HighlightStore = (*highlightStore)(nil)

// GetOrCreate resolves a selection to an existing highlight within
// tolerance, or persists a new AI-linked one. The lookup and insert run in
// one transaction so concurrent callers cannot both create.
func (s *highlightStore) GetOrCreate(
	ctx context.Context,
	docID domain.DocumentID,
	region domain.Region,
	text string,
	cfg domain.MatchConfig,
) (*domain.Highlight, bool, error) {
	if docID == "" || !region.Valid() {
		return nil, false, domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storeError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	candidates, err := queryHighlights(ctx, tx, docID)
	if err != nil {
		return nil, false, err
	}

	if existing := domain.BestAnchor(candidates, region, cfg); existing != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, storeError("committing transaction", err)
		}
		return existing, false, nil
	}

	boxesJSON, err := json.Marshal(region.Boxes)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling boxes: %w", err)
	}

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO highlights (document_id, page, boxes, text, kind, created_at, is_ai)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, string(docID), region.Page, string(boxesJSON), text, string(domain.KindLinked), createdAt)
	if err != nil {
		return nil, false, storeError("inserting highlight", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, storeError("reading highlight id", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storeError("committing transaction", err)
	}

	return &domain.Highlight{
		ID:         id,
		DocumentID: docID,
		Page:       region.Page,
		Boxes:      append([]domain.Rect(nil), region.Boxes...),
		Text:       text,
		Kind:       domain.KindLinked,
		AI:         true,
		CreatedAt:  createdAt,
	}, true, nil
}

// MarkAI idempotently sets the AI flag. Geometry and kind are untouched.
func (s *highlightStore) MarkAI(ctx context.Context, highlightID int64) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE highlights SET is_ai = 1 WHERE id = ?", highlightID)
	if err != nil {
		return storeError("flagging highlight", err)
	}

	// Affected rows stay 1 even when the flag was already set; 0 means the
	// row does not exist.
	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("checking flag update", err)
	}
	if affected == 0 {
		return fmt.Errorf("highlight %d: %w", highlightID, domain.ErrNotFound)
	}
	return nil
}

// ByDocument returns all highlights for a document. The single query gives
// the matcher a consistent snapshot.
func (s *highlightStore) ByDocument(
	ctx context.Context, docID domain.DocumentID,
) ([]domain.Highlight, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, page, boxes, text, kind, is_ai, created_at
		FROM highlights WHERE document_id = ?
	`, string(docID))
	if err != nil {
		return nil, storeError("querying highlights", err)
	}
	defer rows.Close()

	return scanHighlights(rows)
}

// queryHighlights loads a document's highlights inside a transaction.
func queryHighlights(ctx context.Context, tx *sql.Tx, docID domain.DocumentID) ([]domain.Highlight, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, document_id, page, boxes, text, kind, is_ai, created_at
		FROM highlights WHERE document_id = ?
	`, string(docID))
	if err != nil {
		return nil, storeError("querying highlights", err)
	}
	defer rows.Close()

	return scanHighlights(rows)
}

// scanHighlights scans multiple highlight rows.
func scanHighlights(rows *sql.Rows) ([]domain.Highlight, error) {
	var highlights []domain.Highlight //nolint:prealloc // size unknown from query
	for rows.Next() {
		var h domain.Highlight
		var docID, boxesJSON, kind string
		var isAI int
		var createdAt sql.NullTime
		if err := rows.Scan(&h.ID, &docID, &h.Page, &boxesJSON, &h.Text,
			&kind, &isAI, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning highlight: %w", err)
		}

		if err := json.Unmarshal([]byte(boxesJSON), &h.Boxes); err != nil {
			return nil, fmt.Errorf("unmarshaling boxes: %w", err)
		}

		h.DocumentID = domain.DocumentID(docID)
		h.Kind = domain.HighlightKind(kind)
		h.AI = isAI != 0
		if createdAt.Valid {
			h.CreatedAt = createdAt.Time
		}
		highlights = append(highlights, h)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterating highlights", err)
	}

	return highlights, nil
}
