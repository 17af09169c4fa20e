package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// Ensure HighlightStore implements the interface.
var _ driven.HighlightStore = (*HighlightStore)(nil)

// HighlightStore is an in-memory implementation of driven.HighlightStore.
type HighlightStore struct {
	mu         sync.RWMutex
	nextID     int64
	highlights map[int64]domain.Highlight

	// FailNext makes the next write return a wrapped domain.ErrStore,
	// for exercising the orchestrator's retry policy in tests.
	FailNext int
}

// NewHighlightStore creates a new in-memory highlight store.
func NewHighlightStore() *HighlightStore {
	return &HighlightStore{
		nextID:     1,
		highlights: make(map[int64]domain.Highlight),
	}
}

// failIfRequested consumes one configured failure.
func (s *HighlightStore) failIfRequested() error {
	if s.FailNext > 0 {
		s.FailNext--
		return domain.ErrStore
	}
	return nil
}

// GetOrCreate resolves a selection to an existing highlight or persists a
// new AI-linked one.
func (s *HighlightStore) GetOrCreate(
	_ context.Context, docID domain.DocumentID, region domain.Region, text string, cfg domain.MatchConfig,
) (*domain.Highlight, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return nil, false, err
	}

	candidates := s.forDocumentLocked(docID)
	if existing := domain.BestAnchor(candidates, region, cfg); existing != nil {
		h := *existing
		return &h, false, nil
	}

	h := domain.Highlight{
		ID:         s.nextID,
		DocumentID: docID,
		Page:       region.Page,
		Boxes:      append([]domain.Rect(nil), region.Boxes...),
		Text:       text,
		Kind:       domain.KindLinked,
		AI:         true,
		CreatedAt:  time.Now().UTC(),
	}
	s.nextID++
	s.highlights[h.ID] = h

	out := h
	return &out, true, nil
}

// MarkAI idempotently sets the AI flag.
func (s *HighlightStore) MarkAI(_ context.Context, highlightID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return err
	}

	h, ok := s.highlights[highlightID]
	if !ok {
		return domain.ErrNotFound
	}
	h.AI = true
	s.highlights[highlightID] = h
	return nil
}

// ByDocument returns all highlights for a document.
func (s *HighlightStore) ByDocument(
	_ context.Context, docID domain.DocumentID,
) ([]domain.Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forDocumentLocked(docID), nil
}

// Put seeds a highlight directly, for tests.
func (s *HighlightStore) Put(h domain.Highlight) domain.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		h.ID = s.nextID
		s.nextID++
	} else if h.ID >= s.nextID {
		s.nextID = h.ID + 1
	}
	s.highlights[h.ID] = h
	return h
}

// Get returns a highlight by id, for tests.
func (s *HighlightStore) Get(id int64) (domain.Highlight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.highlights[id]
	return h, ok
}

func (s *HighlightStore) forDocumentLocked(docID domain.DocumentID) []domain.Highlight {
	var out []domain.Highlight
	for _, h := range s.highlights {
		if h.DocumentID == docID {
			out = append(out, h)
		}
	}
	return out
}
