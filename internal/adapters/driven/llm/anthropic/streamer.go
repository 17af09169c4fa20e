// Package anthropic provides an answer streamer using the Anthropic API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/llm"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// Ensure Streamer implements the interface.
var _ driven.AnswerStreamer = (*Streamer)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic streamer.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout bounds the whole streaming request (default: 120s).
	Timeout time.Duration
}

// Streamer streams messages over SSE.
type Streamer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesStreamRequest is the Anthropic /v1/messages request format.
type messagesStreamRequest struct {
	Model     string            `json:"model"`
	Messages  []messagesMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Stream    bool              `json:"stream"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is one SSE data payload of a streamed message. Only the
// event types the consumer cares about are modelled.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewStreamer creates a new Anthropic answer streamer.
func NewStreamer(cfg Config) (*Streamer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Streamer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Stream starts a streamed message. The fragment channel closes at
// end-of-stream; a terminal failure arrives on the error channel first.
func (s *Streamer) Stream(ctx context.Context, req driven.AnswerRequest) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		if err := s.stream(ctx, req, fragments); err != nil {
			errs <- err
		}
	}()

	return fragments, errs
}

// stream runs the request and feeds text deltas to out. The system turn
// travels in the dedicated field rather than the message list.
func (s *Streamer) stream(ctx context.Context, req driven.AnswerRequest, out chan<- string) error {
	var system string
	var wireMessages []messagesMessage
	for _, msg := range llm.Messages(req) {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		wireMessages = append(wireMessages, messagesMessage{Role: msg.Role, Content: msg.Content})
	}

	jsonBody, err := json.Marshal(messagesStreamRequest{
		Model:     s.model,
		Messages:  wireMessages,
		MaxTokens: DefaultMaxTokens,
		System:    system,
		Stream:    true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}

		switch event.Type {
		case "error":
			if event.Error != nil {
				return fmt.Errorf("anthropic error: %s", event.Error.Message)
			}
			return fmt.Errorf("anthropic error: unspecified")
		case "message_stop":
			return nil
		case "content_block_delta":
			if event.Delta.Text != "" {
				select {
				case out <- event.Delta.Text:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// ModelName returns the name of the model being used.
func (s *Streamer) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *Streamer) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
