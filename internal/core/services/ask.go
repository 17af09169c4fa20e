package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// AskService is the linking orchestrator. For each question event it
// resolves or creates the anchoring highlight, opens a session, and records
// the exchange as the answer streams in.
type AskService struct {
	highlights    driven.HighlightStore
	conversations driven.ConversationStore
	streamer      driven.AnswerStreamer
	history       driving.HistoryService
	matchCfg      domain.MatchConfig
}

// NewAskService creates a new ask service. The streamer is optional (can be
// nil); without it questions fail but the empty-question history path works.
func NewAskService(
	highlights driven.HighlightStore,
	conversations driven.ConversationStore,
	streamer driven.AnswerStreamer,
	history driving.HistoryService,
	matchCfg domain.MatchConfig,
) *AskService {
	return &AskService{
		highlights:    highlights,
		conversations: conversations,
		streamer:      streamer,
		history:       history,
		matchCfg:      matchCfg,
	}
}

// Ask runs the linking flow for one question event.
func (s *AskService) Ask(ctx context.Context, req driving.AskRequest) (*driving.AskResult, error) {
	logger.Section("Linking Flow")

	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: document is required", domain.ErrInvalidInput)
	}
	if !req.Region.Valid() {
		return nil, fmt.Errorf("%w: selection geometry is required", domain.ErrInvalidInput)
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		// An empty question means "show me what's here", not "ask
		// something new": resolve without creating and hand off to the
		// history path.
		return s.shortCircuit(ctx, req)
	}

	highlight, created, err := s.resolveHighlight(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("Highlight %d (created=%t)", highlight.ID, created)

	session, err := s.openSession(ctx, highlight, req, question)
	if err != nil {
		return nil, err
	}
	logger.Debug("Session %s opened", session.ID)

	answer, streamErr := s.streamAnswer(ctx, session, req)

	result := &driving.AskResult{
		Highlight: highlight,
		Created:   created,
		Session:   session,
		Answer:    answer,
	}
	return result, streamErr
}

// shortCircuit handles the empty-question path: locate (never create) a
// highlight for context and return the saved conversations.
func (s *AskService) shortCircuit(ctx context.Context, req driving.AskRequest) (*driving.AskResult, error) {
	query := domain.RegionQuery(req.Region)

	highlight, err := s.history.Locate(ctx, req.DocumentID, query)
	if err != nil {
		return nil, err
	}

	var histories []domain.SessionHistory
	if highlight != nil {
		histories, err = s.history.Resolve(ctx, req.DocumentID, query)
	} else {
		// Nothing near the selection: show the whole document's history.
		histories, err = s.history.ForDocument(ctx, req.DocumentID)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Short-circuit: %d saved sessions", len(histories))
	return &driving.AskResult{
		Highlight:      highlight,
		History:        histories,
		ShortCircuited: true,
	}, nil
}

// resolveHighlight finds or creates the anchor and guarantees its AI flag.
func (s *AskService) resolveHighlight(
	ctx context.Context, req driving.AskRequest,
) (*domain.Highlight, bool, error) {
	var highlight *domain.Highlight
	var created bool

	err := s.retryStoreWrite(func() error {
		var err error
		highlight, created, err = s.highlights.GetOrCreate(
			ctx, req.DocumentID, req.Region, req.SelectedText, s.matchCfg)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("resolving highlight: %w", err)
	}

	// Every highlight touched by this flow ends up flagged, whether it was
	// just created or reused from an earlier (possibly manual) annotation.
	if err := s.retryStoreWrite(func() error {
		return s.highlights.MarkAI(ctx, highlight.ID)
	}); err != nil {
		return nil, false, fmt.Errorf("flagging highlight %d: %w", highlight.ID, err)
	}
	highlight.AI = true

	return highlight, created, nil
}

// openSession starts the session and records the question turn.
func (s *AskService) openSession(
	ctx context.Context, highlight *domain.Highlight, req driving.AskRequest, question string,
) (*domain.Session, error) {
	var session *domain.Session
	err := s.retryStoreWrite(func() error {
		var err error
		session, err = s.conversations.StartSession(ctx, highlight.ID, req.DocumentID, req.Snippet)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	// The question arrives whole, so its message is complete immediately.
	err = s.retryStoreWrite(func() error {
		_, err := s.conversations.AppendMessage(
			ctx, session.ID, domain.RoleQuestion, question, domain.StatusComplete)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording question: %w", err)
	}

	return session, nil
}

// streamAnswer creates the pending answer message and consumes the
// streamer's fragment sequence into it. Whatever partial content exists is
// preserved on failure, and cancellation still finalizes the message.
func (s *AskService) streamAnswer(
	ctx context.Context, session *domain.Session, req driving.AskRequest,
) (*domain.Message, error) {
	var answer *domain.Message
	err := s.retryStoreWrite(func() error {
		var err error
		answer, err = s.conversations.AppendMessage(
			ctx, session.ID, domain.RoleAnswer, "", domain.StatusPending)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating answer message: %w", err)
	}

	if s.streamer == nil {
		s.finalize(ctx, answer, domain.StatusFailed, "")
		return answer, domain.ErrStreamerUnavailable
	}

	fragments, errs := s.streamer.Stream(ctx, driven.AnswerRequest{
		DocumentPath: req.DocumentPath,
		SelectedText: req.SelectedText,
		Question:     req.Question,
		Snippet:      req.Snippet,
	})

	var accumulated string
	for {
		select {
		case <-ctx.Done():
			// The user closed the display or moved on. The message must
			// never stay pending, so finalize with the partial content.
			s.finalize(ctx, answer, domain.StatusFailed, accumulated)
			return answer, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				logger.Warn("Stream failed after %d chars: %v", len(accumulated), err)
				s.finalize(ctx, answer, domain.StatusFailed, accumulated)
				return answer, fmt.Errorf("answer stream: %w", err)
			}

		case fragment, ok := <-fragments:
			if !ok {
				// End of stream. A terminal error sent just before the
				// close still wins.
				select {
				case err := <-errs:
					if err != nil {
						s.finalize(ctx, answer, domain.StatusFailed, accumulated)
						return answer, fmt.Errorf("answer stream: %w", err)
					}
				default:
				}
				s.finalize(ctx, answer, domain.StatusComplete, accumulated)
				return answer, nil
			}

			accumulated += fragment
			if err := s.retryStoreWrite(func() error {
				return s.conversations.ExtendAnswer(ctx, answer.ID, accumulated)
			}); err != nil {
				s.finalize(ctx, answer, domain.StatusFailed, accumulated)
				return answer, fmt.Errorf("recording answer fragment: %w", err)
			}
			answer.Content = accumulated
			if req.OnFragment != nil {
				req.OnFragment(accumulated)
			}
		}
	}
}

// finalize transitions the answer to a terminal status, detached from the
// caller's cancellation so an aborted flow cannot strand a pending message.
func (s *AskService) finalize(
	ctx context.Context, answer *domain.Message, status domain.MessageStatus, content string,
) {
	detached := context.WithoutCancel(ctx)
	err := s.retryStoreWrite(func() error {
		return s.conversations.FinalizeMessage(detached, answer.ID, status, content)
	})
	if err != nil {
		// Surfacing would mask the original stream outcome; the invariant
		// violation is logged and the caller still sees the stream result.
		logger.Warn("Finalizing message %s as %s failed: %v", answer.ID, status, err)
		return
	}
	answer.Status = status
	answer.Content = content
}

// retryStoreWrite runs a store write, retrying exactly once on a transient
// store failure. Logic-level errors are never retried.
func (s *AskService) retryStoreWrite(op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, domain.ErrStore) {
		return err
	}
	logger.Warn("Store write failed, retrying once: %v", err)
	return op()
}
