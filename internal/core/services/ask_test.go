package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// stubStreamer emits a fixed fragment sequence, optionally followed by a
// terminal error. When hold is non-nil the goroutine blocks on it between
// fragments, so tests can cancel mid-stream.
type stubStreamer struct {
	fragments []string
	err       error
	hold      chan struct{}
}

func (s *stubStreamer) Stream(ctx context.Context, _ driven.AnswerRequest) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		for _, f := range s.fragments {
			select {
			case fragments <- f:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			if s.hold != nil {
				select {
				case <-s.hold:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()

	return fragments, errs
}

func (s *stubStreamer) ModelName() string { return "stub-model" }
func (s *stubStreamer) Close() error      { return nil }

// fixture wires an ask service over in-memory stores.
type fixture struct {
	highlights    *memory.HighlightStore
	conversations *memory.ConversationStore
	streamer      driven.AnswerStreamer
	ask           *AskService
}

func newFixture(streamer driven.AnswerStreamer) *fixture {
	highlights := memory.NewHighlightStore()
	conversations := memory.NewConversationStore()
	history := NewHistoryService(highlights, conversations, domain.MatchConfig{})
	return &fixture{
		highlights:    highlights,
		conversations: conversations,
		streamer:      streamer,
		ask:           NewAskService(highlights, conversations, streamer, history, domain.MatchConfig{}),
	}
}

// askRequest builds a request with a one-box selection on the given page.
func askRequest(page int, question string) driving.AskRequest {
	return driving.AskRequest{
		DocumentID:   "doc-1",
		DocumentPath: "/papers/doc-1.pdf",
		Region: domain.Region{
			Page:  page,
			Boxes: []domain.Rect{{Left: 100, Top: 200, Right: 400, Bottom: 220}},
		},
		SelectedText: "the selected passage",
		Question:     question,
		Snippet:      domain.ContextSnippet{Text: "the selected passage", FileName: "doc-1.pdf"},
	}
}

func TestAsk_FirstQuestionCreatesHighlightAndSession(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"It means ", "that X holds."}})
	ctx := context.Background()

	result, err := f.ask.Ask(ctx, askRequest(3, "what does this mean?"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Created)
	require.NotNil(t, result.Highlight)
	assert.True(t, result.Highlight.AI)
	assert.Equal(t, 3, result.Highlight.Page)
	assert.False(t, result.ShortCircuited)

	require.NotNil(t, result.Session)
	assert.Equal(t, result.Highlight.ID, result.Session.HighlightID)

	require.NotNil(t, result.Answer)
	assert.Equal(t, domain.StatusComplete, result.Answer.Status)
	assert.Equal(t, "It means that X holds.", result.Answer.Content)

	// The transcript holds the complete question and the complete answer
	messages, err := f.conversations.MessagesForSession(ctx, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleQuestion, messages[0].Role)
	assert.Equal(t, "what does this mean?", messages[0].Content)
	assert.Equal(t, domain.StatusComplete, messages[0].Status)
	assert.Equal(t, domain.RoleAnswer, messages[1].Role)
	assert.Equal(t, "It means that X holds.", messages[1].Content)
	assert.Equal(t, domain.StatusComplete, messages[1].Status)
}

func TestAsk_OnFragmentSeesAccumulation(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"a", "b", "c"}})

	var seen []string
	req := askRequest(1, "question")
	req.OnFragment = func(accumulated string) {
		seen = append(seen, accumulated)
	}

	_, err := f.ask.Ask(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ab", "abc"}, seen)
}

func TestAsk_SecondQuestionReusesHighlight(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"first answer"}})
	ctx := context.Background()

	first, err := f.ask.Ask(ctx, askRequest(1, "first question"))
	require.NoError(t, err)
	require.True(t, first.Created)

	// A shifted selection of the same passage
	req := askRequest(1, "second question")
	req.Region.Boxes[0] = domain.Rect{Left: 104, Top: 204, Right: 404, Bottom: 224}

	second, err := f.ask.Ask(ctx, req)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Highlight.ID, second.Highlight.ID)
	// Each question opens its own session
	assert.NotEqual(t, first.Session.ID, second.Session.ID)

	sessions, err := f.conversations.SessionsForHighlight(ctx, first.Highlight.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestAsk_ReusedManualHighlightGetsFlagged(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"answer"}})
	ctx := context.Background()

	seeded := f.highlights.Put(domain.Highlight{
		DocumentID: "doc-1",
		Page:       1,
		Boxes:      []domain.Rect{{Left: 100, Top: 200, Right: 400, Bottom: 220}},
		Text:       "the selected passage",
		Kind:       domain.KindManual,
	})

	result, err := f.ask.Ask(ctx, askRequest(1, "question"))
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, seeded.ID, result.Highlight.ID)
	assert.True(t, result.Highlight.AI)

	stored, ok := f.highlights.Get(seeded.ID)
	require.True(t, ok)
	assert.True(t, stored.AI)
	// Kind and geometry are untouched
	assert.Equal(t, domain.KindManual, stored.Kind)
	assert.Equal(t, seeded.Boxes, stored.Boxes)
}

func TestAsk_EmptyQuestionShortCircuitsToHistory(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"the answer"}})
	ctx := context.Background()

	first, err := f.ask.Ask(ctx, askRequest(2, "original question"))
	require.NoError(t, err)

	result, err := f.ask.Ask(ctx, askRequest(2, "   "))
	require.NoError(t, err)

	assert.True(t, result.ShortCircuited)
	require.NotNil(t, result.Highlight)
	assert.Equal(t, first.Highlight.ID, result.Highlight.ID)
	assert.Nil(t, result.Session)
	assert.Nil(t, result.Answer)

	require.Len(t, result.History, 1)
	assert.Equal(t, first.Session.ID, result.History[0].Session.ID)
	require.Len(t, result.History[0].Messages, 2)

	// No new session or highlight was created
	sessions, err := f.conversations.SessionsForHighlight(ctx, first.Highlight.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestAsk_EmptyQuestionFallsBackToDocumentHistory(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"the answer"}})
	ctx := context.Background()

	// A conversation exists elsewhere in the document
	_, err := f.ask.Ask(ctx, askRequest(7, "question on page seven"))
	require.NoError(t, err)

	// Empty question on a page with nothing nearby
	result, err := f.ask.Ask(ctx, askRequest(2, ""))
	require.NoError(t, err)

	assert.True(t, result.ShortCircuited)
	assert.Nil(t, result.Highlight)
	require.Len(t, result.History, 1)
}

func TestAsk_StreamFailurePreservesPartialAnswer(t *testing.T) {
	f := newFixture(&stubStreamer{
		fragments: []string{"partial "},
		err:       errors.New("connection reset"),
	})
	ctx := context.Background()

	result, err := f.ask.Ask(ctx, askRequest(1, "question"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	require.NotNil(t, result)
	require.NotNil(t, result.Answer)
	assert.Equal(t, domain.StatusFailed, result.Answer.Status)
	assert.Equal(t, "partial ", result.Answer.Content)

	// The stored message matches
	stored, ok := f.conversations.Message(result.Answer.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, "partial ", stored.Content)

	// The question survives independently of the failed answer
	messages, err := f.conversations.MessagesForSession(ctx, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.StatusComplete, messages[0].Status)
}

func TestAsk_CancellationFinalizesPendingAnswer(t *testing.T) {
	hold := make(chan struct{})
	f := newFixture(&stubStreamer{
		fragments: []string{"first fragment", "never delivered"},
		hold:      hold,
	})

	ctx, cancel := context.WithCancel(context.Background())
	req := askRequest(1, "question")
	req.OnFragment = func(string) {
		cancel() // user closed the display mid-stream
	}

	result, err := f.ask.Ask(ctx, req)
	require.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	require.NotNil(t, result.Answer)
	assert.Equal(t, domain.StatusFailed, result.Answer.Status)
	assert.Equal(t, "first fragment", result.Answer.Content)

	// Never left pending in the store
	stored, ok := f.conversations.Message(result.Answer.ID)
	require.True(t, ok)
	assert.True(t, stored.Status.Terminal())
}

func TestAsk_NilStreamerFailsAnswer(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	result, err := f.ask.Ask(ctx, askRequest(1, "question"))
	require.ErrorIs(t, err, domain.ErrStreamerUnavailable)

	require.NotNil(t, result)
	require.NotNil(t, result.Answer)
	assert.Equal(t, domain.StatusFailed, result.Answer.Status)

	// The highlight, session and question still exist: the link survives
	// even without a model service.
	require.NotNil(t, result.Highlight)
	messages, err := f.conversations.MessagesForSession(ctx, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

func TestAsk_RetriesTransientStoreFailureOnce(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"answer"}})

	f.highlights.FailNext = 1
	result, err := f.ask.Ask(context.Background(), askRequest(1, "question"))
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestAsk_PersistentStoreFailureSurfaces(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"answer"}})

	// Both the attempt and its single retry fail
	f.highlights.FailNext = 2
	_, err := f.ask.Ask(context.Background(), askRequest(1, "question"))
	require.ErrorIs(t, err, domain.ErrStore)
}

func TestAsk_InvalidInput(t *testing.T) {
	f := newFixture(&stubStreamer{fragments: []string{"answer"}})
	ctx := context.Background()

	req := askRequest(1, "question")
	req.DocumentID = ""
	_, err := f.ask.Ask(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req = askRequest(1, "question")
	req.Region.Boxes = nil
	_, err = f.ask.Ask(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
