package driven

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
)

// ConversationStore persists sessions and their ordered messages.
//
// The store is the serialization point for the streaming flow: every write
// is atomic and independently durable, so a concurrent reader observes each
// message either before or after an update, never torn.
type ConversationStore interface {
	// StartSession creates a new session anchored to a highlight, with the
	// context snippet frozen at call time.
	StartSession(ctx context.Context, highlightID int64, docID domain.DocumentID, snippet domain.ContextSnippet) (*domain.Session, error)

	// AppendMessage creates the message at the session's next position.
	// At most one pending answer may exist per session; violating that
	// returns domain.ErrConsistency.
	AppendMessage(ctx context.Context, sessionID string, role domain.Role, content string, status domain.MessageStatus) (*domain.Message, error)

	// ExtendAnswer replaces the accumulated content of a pending answer.
	// Returns domain.ErrConsistency when the message is already terminal.
	ExtendAnswer(ctx context.Context, messageID string, content string) error

	// FinalizeMessage transitions a pending message to a terminal status.
	// Passing empty finalContent keeps the accumulated content. Idempotent
	// for the same terminal status; a conflicting terminal status returns
	// domain.ErrConsistency.
	FinalizeMessage(ctx context.Context, messageID string, status domain.MessageStatus, finalContent string) error

	// SessionsForDocument returns a document's sessions, newest first.
	SessionsForDocument(ctx context.Context, docID domain.DocumentID) ([]domain.Session, error)

	// SessionsForHighlight returns a highlight's sessions, newest first.
	SessionsForHighlight(ctx context.Context, highlightID int64) ([]domain.Session, error)

	// MessagesForSession returns the full transcript in position order.
	MessagesForSession(ctx context.Context, sessionID string) ([]domain.Message, error)
}
