package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// Ensure ConversationStore implements the interface.
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore is an in-memory implementation of
// driven.ConversationStore.
type ConversationStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	messages map[string]domain.Message

	// FailNext makes the next write return a wrapped domain.ErrStore.
	FailNext int
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		sessions: make(map[string]domain.Session),
		messages: make(map[string]domain.Message),
	}
}

func (s *ConversationStore) failIfRequested() error {
	if s.FailNext > 0 {
		s.FailNext--
		return domain.ErrStore
	}
	return nil
}

// StartSession creates a new session anchored to a highlight.
func (s *ConversationStore) StartSession(
	_ context.Context, highlightID int64, docID domain.DocumentID, snippet domain.ContextSnippet,
) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return nil, err
	}

	session := domain.Session{
		ID:          uuid.NewString(),
		HighlightID: highlightID,
		DocumentID:  docID,
		Snippet:     snippet,
		CreatedAt:   time.Now().UTC(),
	}
	s.sessions[session.ID] = session

	out := session
	return &out, nil
}

// AppendMessage creates the message at the session's next position.
func (s *ConversationStore) AppendMessage(
	_ context.Context, sessionID string, role domain.Role, content string, status domain.MessageStatus,
) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return nil, err
	}

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrNotFound
	}

	position := 0
	for _, m := range s.messages {
		if m.SessionID != sessionID {
			continue
		}
		if m.Role == domain.RoleAnswer && m.Status == domain.StatusPending &&
			role == domain.RoleAnswer && status == domain.StatusPending {
			return nil, fmt.Errorf("%w: session %s already has a pending answer",
				domain.ErrConsistency, sessionID)
		}
		if m.Position >= position {
			position = m.Position + 1
		}
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Position:  position,
		Role:      role,
		Content:   content,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.messages[msg.ID] = msg

	out := msg
	return &out, nil
}

// ExtendAnswer replaces the accumulated content of a pending answer.
func (s *ConversationStore) ExtendAnswer(_ context.Context, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return err
	}

	msg, ok := s.messages[messageID]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.Status.Terminal() {
		return fmt.Errorf("%w: message %s is already %s", domain.ErrConsistency, messageID, msg.Status)
	}

	msg.Content = content
	msg.UpdatedAt = time.Now().UTC()
	s.messages[messageID] = msg
	return nil
}

// FinalizeMessage transitions a pending message to a terminal status.
func (s *ConversationStore) FinalizeMessage(
	_ context.Context, messageID string, status domain.MessageStatus, finalContent string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failIfRequested(); err != nil {
		return err
	}

	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not a terminal status", domain.ErrInvalidInput, status)
	}

	msg, ok := s.messages[messageID]
	if !ok {
		return domain.ErrNotFound
	}

	if msg.Status.Terminal() {
		if msg.Status == status {
			return nil // idempotent
		}
		return fmt.Errorf("%w: message %s already finalized as %s, cannot become %s",
			domain.ErrConsistency, messageID, msg.Status, status)
	}

	msg.Status = status
	if finalContent != "" {
		msg.Content = finalContent
	}
	msg.UpdatedAt = time.Now().UTC()
	s.messages[messageID] = msg
	return nil
}

// SessionsForDocument returns a document's sessions, newest first.
func (s *ConversationStore) SessionsForDocument(
	_ context.Context, docID domain.DocumentID,
) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Session
	for _, session := range s.sessions {
		if session.DocumentID == docID {
			out = append(out, session)
		}
	}
	sortSessionsNewestFirst(out)
	return out, nil
}

// SessionsForHighlight returns a highlight's sessions, newest first.
func (s *ConversationStore) SessionsForHighlight(
	_ context.Context, highlightID int64,
) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Session
	for _, session := range s.sessions {
		if session.HighlightID == highlightID {
			out = append(out, session)
		}
	}
	sortSessionsNewestFirst(out)
	return out, nil
}

// MessagesForSession returns the transcript in position order.
func (s *ConversationStore) MessagesForSession(
	_ context.Context, sessionID string,
) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, msg := range s.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Message returns a message by id, for tests.
func (s *ConversationStore) Message(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	return m, ok
}

// sortSessionsNewestFirst orders sessions by creation time descending,
// breaking exact ties by ID for determinism.
func sortSessionsNewestFirst(sessions []domain.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
}
