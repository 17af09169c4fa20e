package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// StartSession creates and persists a new session row. The snippet is
// frozen at call time.
func (s *conversationStore) StartSession(
	ctx context.Context, highlightID int64, docID domain.DocumentID, snippet domain.ContextSnippet,
) (*domain.Session, error) {
	if highlightID == 0 || docID == "" {
		return nil, domain.ErrInvalidInput
	}

	snippetJSON, err := json.Marshal(snippet)
	if err != nil {
		return nil, fmt.Errorf("marshalling snippet: %w", err)
	}

	session := domain.Session{
		ID:          uuid.NewString(),
		HighlightID: highlightID,
		DocumentID:  docID,
		Snippet:     snippet,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ai_sessions (id, highlight_id, document_id, snippet, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.HighlightID, string(session.DocumentID),
		string(snippetJSON), session.CreatedAt)
	if err != nil {
		return nil, storeError("inserting session", err)
	}

	return &session, nil
}

// AppendMessage creates the message at the session's next free position.
// The position lookup, the pending-answer guard and the insert share one
// transaction so a concurrent reader never observes a gap.
func (s *conversationStore) AppendMessage(
	ctx context.Context, sessionID string, role domain.Role, content string, status domain.MessageStatus,
) (*domain.Message, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ai_sessions WHERE id = ?", sessionID).Scan(&exists)
	if err != nil {
		return nil, storeError("checking session", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	if role == domain.RoleAnswer && status == domain.StatusPending {
		var pending int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM ai_messages
			WHERE session_id = ? AND role = ? AND status = ?
		`, sessionID, string(domain.RoleAnswer), string(domain.StatusPending)).Scan(&pending)
		if err != nil {
			return nil, storeError("checking pending answers", err)
		}
		if pending > 0 {
			return nil, fmt.Errorf("%w: session %s already has a pending answer",
				domain.ErrConsistency, sessionID)
		}
	}

	var position int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM ai_messages WHERE session_id = ?",
		sessionID).Scan(&position)
	if err != nil {
		return nil, storeError("computing position", err)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ai_messages (id, session_id, position, role, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.Position, string(msg.Role), msg.Content,
		string(msg.Status), msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return nil, storeError("inserting message", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError("committing transaction", err)
	}

	return &msg, nil
}

// ExtendAnswer replaces the accumulated content of a pending answer in a
// single guarded statement, so a concurrent reader sees either the old or
// the new content.
func (s *conversationStore) ExtendAnswer(ctx context.Context, messageID, content string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ai_messages SET content = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, content, time.Now().UTC(), messageID, string(domain.StatusPending))
	if err != nil {
		return storeError("extending answer", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("checking answer update", err)
	}
	if affected == 0 {
		return s.classifyGuardMiss(ctx, messageID, "extend")
	}
	return nil
}

// FinalizeMessage transitions a pending message to a terminal status with a
// single guarded update. Idempotent for the same terminal status; a
// conflicting one surfaces as a consistency violation.
func (s *conversationStore) FinalizeMessage(
	ctx context.Context, messageID string, status domain.MessageStatus, finalContent string,
) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not a terminal status", domain.ErrInvalidInput, status)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ai_messages
		SET status = ?,
		    content = CASE WHEN ? <> '' THEN ? ELSE content END,
		    updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), finalContent, finalContent, time.Now().UTC(),
		messageID, string(domain.StatusPending))
	if err != nil {
		return storeError("finalizing message", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("checking finalize update", err)
	}
	if affected > 0 {
		return nil
	}

	// Guard missed: either the message is gone or it is already terminal.
	var current string
	err = s.store.db.QueryRowContext(ctx,
		"SELECT status FROM ai_messages WHERE id = ?", messageID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	if err != nil {
		return storeError("reading message status", err)
	}

	if domain.MessageStatus(current) == status {
		return nil // idempotent double-finalization
	}
	return fmt.Errorf("%w: message %s already finalized as %s, cannot become %s",
		domain.ErrConsistency, messageID, current, status)
}

// classifyGuardMiss reports why a pending-only update matched no rows.
func (s *conversationStore) classifyGuardMiss(ctx context.Context, messageID, op string) error {
	var current string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT status FROM ai_messages WHERE id = ?", messageID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	if err != nil {
		return storeError("reading message status", err)
	}
	return fmt.Errorf("%w: cannot %s message %s in status %s",
		domain.ErrConsistency, op, messageID, current)
}

// SessionsForDocument returns a document's sessions, newest first.
func (s *conversationStore) SessionsForDocument(
	ctx context.Context, docID domain.DocumentID,
) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, highlight_id, document_id, snippet, created_at
		FROM ai_sessions WHERE document_id = ?
		ORDER BY created_at DESC, id DESC
	`, string(docID))
	if err != nil {
		return nil, storeError("querying sessions", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// SessionsForHighlight returns a highlight's sessions, newest first.
func (s *conversationStore) SessionsForHighlight(
	ctx context.Context, highlightID int64,
) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, highlight_id, document_id, snippet, created_at
		FROM ai_sessions WHERE highlight_id = ?
		ORDER BY created_at DESC, id DESC
	`, highlightID)
	if err != nil {
		return nil, storeError("querying sessions", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// MessagesForSession returns the full transcript in position order.
func (s *conversationStore) MessagesForSession(
	ctx context.Context, sessionID string,
) ([]domain.Message, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, session_id, position, role, content, status, created_at, updated_at
		FROM ai_messages WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, storeError("querying messages", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.Message
		var role, status string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Position, &role,
			&m.Content, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		m.Role = domain.Role(role)
		m.Status = domain.MessageStatus(status)
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			m.UpdatedAt = updatedAt.Time
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterating messages", err)
	}

	return messages, nil
}

// scanSessions scans multiple session rows.
func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	var sessions []domain.Session //nolint:prealloc // size unknown from query
	for rows.Next() {
		var session domain.Session
		var docID string
		var snippetJSON sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&session.ID, &session.HighlightID, &docID,
			&snippetJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		session.DocumentID = domain.DocumentID(docID)
		if snippetJSON.Valid && snippetJSON.String != "" {
			if err := json.Unmarshal([]byte(snippetJSON.String), &session.Snippet); err != nil {
				return nil, fmt.Errorf("unmarshaling snippet: %w", err)
			}
		}
		if createdAt.Valid {
			session.CreatedAt = createdAt.Time
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterating sessions", err)
	}

	return sessions, nil
}
