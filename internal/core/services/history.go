package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService resolves saved conversations by proximity to a gesture.
// It is read-only and never touches the answer streamer.
type HistoryService struct {
	highlights    driven.HighlightStore
	conversations driven.ConversationStore
	matchCfg      domain.MatchConfig
}

// NewHistoryService creates a new history service.
func NewHistoryService(
	highlights driven.HighlightStore,
	conversations driven.ConversationStore,
	matchCfg domain.MatchConfig,
) *HistoryService {
	return &HistoryService{
		highlights:    highlights,
		conversations: conversations,
		matchCfg:      matchCfg,
	}
}

// Locate returns the AI-linked highlight nearest the query, or nil when
// nothing is within tolerance.
func (s *HistoryService) Locate(
	ctx context.Context, docID domain.DocumentID, q domain.Query,
) (*domain.Highlight, error) {
	if docID == "" || !q.Valid() {
		return nil, fmt.Errorf("%w: document and query position are required", domain.ErrInvalidInput)
	}

	candidates, err := s.highlights.ByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading highlights: %w", err)
	}
	logger.Debug("Matching against %d highlights on page %d", len(candidates), q.Page)

	return domain.NearestHighlight(candidates, q, s.matchCfg), nil
}

// Resolve returns the transcripts anchored to the highlight nearest the
// query, newest session first. No highlight within tolerance returns
// (nil, nil).
func (s *HistoryService) Resolve(
	ctx context.Context, docID domain.DocumentID, q domain.Query,
) ([]domain.SessionHistory, error) {
	logger.Section("History Lookup")

	highlight, err := s.Locate(ctx, docID, q)
	if err != nil {
		return nil, err
	}
	if highlight == nil {
		logger.Debug("No highlight within tolerance")
		return nil, nil
	}
	logger.Debug("Matched highlight %d", highlight.ID)

	sessions, err := s.conversations.SessionsForHighlight(ctx, highlight.ID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	// A matched highlight with zero sessions should not happen, but it is
	// not fatal: the caller sees an empty (non-nil) history.
	anchors := map[int64]domain.Highlight{highlight.ID: *highlight}
	return s.hydrate(ctx, sessions, anchors)
}

// ForDocument returns every transcript for a document, newest session first.
func (s *HistoryService) ForDocument(
	ctx context.Context, docID domain.DocumentID,
) ([]domain.SessionHistory, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: document is required", domain.ErrInvalidInput)
	}

	sessions, err := s.conversations.SessionsForDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	highlights, err := s.highlights.ByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading highlights: %w", err)
	}
	anchors := make(map[int64]domain.Highlight, len(highlights))
	for _, h := range highlights {
		anchors[h.ID] = h
	}

	return s.hydrate(ctx, sessions, anchors)
}

// hydrate attaches transcripts and anchor highlights to sessions.
func (s *HistoryService) hydrate(
	ctx context.Context, sessions []domain.Session, anchors map[int64]domain.Highlight,
) ([]domain.SessionHistory, error) {
	histories := make([]domain.SessionHistory, 0, len(sessions))
	for _, session := range sessions {
		messages, err := s.conversations.MessagesForSession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("loading messages for session %s: %w", session.ID, err)
		}
		entry := domain.SessionHistory{Session: session, Messages: messages}
		if anchor, ok := anchors[session.HighlightID]; ok {
			entry.Highlight = &anchor
		}
		histories = append(histories, entry)
	}
	return histories, nil
}
