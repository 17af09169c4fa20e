// Package llm builds the chat payload shared by the answer streamer
// adapters. Each provider speaks its own wire protocol but sends the same
// system and user turns.
package llm

import (
	"strings"

	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
)

// SystemPrompt frames every answer request.
const SystemPrompt = "You assist with reading PDFs. Answer briefly and focus on the selected text."

// ChatMessage is one turn of the provider-neutral chat payload.
type ChatMessage struct {
	Role    string
	Content string
}

// Messages assembles the system and user turns for an answer request.
func Messages(req driven.AnswerRequest) []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userContent(req)},
	}
}

// userContent lays out the document context, the selection, and the
// question as labelled blocks.
func userContent(req driven.AnswerRequest) string {
	path := req.DocumentPath
	if path == "" {
		path = "unknown"
	}
	lines := []string{"Document path: " + path}

	if req.Snippet.Title != "" {
		lines = append(lines, "Document title: "+req.Snippet.Title)
	}
	if req.Snippet.FileName != "" && req.Snippet.FileName != req.Snippet.Title {
		lines = append(lines, "File name: "+req.Snippet.FileName)
	}
	if req.Snippet.Section != "" {
		lines = append(lines, "Section: "+req.Snippet.Section)
	}
	if snippet := strings.TrimSpace(req.Snippet.Text); snippet != "" {
		lines = append(lines, "Context snippet:\n"+snippet)
	}

	lines = append(lines, "", "Selected text:", strings.TrimSpace(req.SelectedText))

	if question := strings.TrimSpace(req.Question); question != "" {
		lines = append(lines, "", "User question:", question)
	}

	return strings.Join(lines, "\n")
}
