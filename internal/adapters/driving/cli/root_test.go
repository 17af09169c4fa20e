package cli

import (
	"context"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/marginalia-cli/internal/core/domain"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/services"
)

// stubStreamer replays a fixed fragment sequence.
type stubStreamer struct {
	fragments []string
	err       error
}

func (s *stubStreamer) Stream(ctx context.Context, _ driven.AnswerRequest) (<-chan string, <-chan error) {
	frags := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(frags)
		for _, f := range s.fragments {
			select {
			case frags <- f:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return frags, errs
}

func (s *stubStreamer) ModelName() string { return "stub-model" }

func (s *stubStreamer) Close() error { return nil }

// stubResolver maps every path to a fixed document identity.
type stubResolver struct {
	id  domain.DocumentID
	err error
}

func (r *stubResolver) Resolve(_ context.Context, _ string) (domain.DocumentID, error) {
	return r.id, r.err
}

// recordingViewer captures viewer feedback for assertions.
type recordingViewer struct {
	statuses []string
	reloads  int
}

func (v *recordingViewer) SetStatus(_ context.Context, message string) error {
	v.statuses = append(v.statuses, message)
	return nil
}

func (v *recordingViewer) Reload(_ context.Context) error {
	v.reloads++
	return nil
}

// testViewer is the viewer wired by the most recent setupTestServices call.
var testViewer *recordingViewer

// setupTestServices wires the commands to in-memory services and returns a
// cleanup that unwires them and resets command flags.
func setupTestServices() func() {
	highlights := memory.NewHighlightStore()
	conversations := memory.NewConversationStore()
	streamer := &stubStreamer{fragments: []string{"The answer ", "is 42."}}
	historySvc := services.NewHistoryService(highlights, conversations, domain.MatchConfig{})
	askSvc := services.NewAskService(highlights, conversations, streamer, historySvc, domain.MatchConfig{})

	testViewer = &recordingViewer{}
	SetServices(Services{
		Ask:      askSvc,
		History:  historySvc,
		Resolver: &stubResolver{id: "doc-test"},
		Viewer:   testViewer,
	})

	return func() {
		SetServices(Services{})
		testViewer = nil
		rootCmd.SetArgs(nil)

		askPage = 0
		askBoxes = nil
		askBegin = ""
		askEnd = ""
		askText = ""
		askTitle = ""
		askSection = ""
		askSnippet = ""
		askJSON = false

		historyPage = -1
		historyX = 0
		historyY = 0
		historyAt = ""
		historyJSON = false
	}
}
