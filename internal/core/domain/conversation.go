package domain

import "time"

// Role identifies who produced a message.
type Role string

const (
	// RoleQuestion is a user turn.
	RoleQuestion Role = "question"

	// RoleAnswer is a model turn.
	RoleAnswer Role = "answer"
)

// MessageStatus tracks a message's completion state.
type MessageStatus string

const (
	// StatusPending marks an answer still being streamed. Its content may
	// grow but nothing else about the message changes.
	StatusPending MessageStatus = "pending"

	// StatusComplete marks a finished message. Terminal.
	StatusComplete MessageStatus = "complete"

	// StatusFailed marks a message whose stream ended in an error. The
	// partial content accumulated so far is preserved. Terminal.
	StatusFailed MessageStatus = "failed"
)

// Terminal reports whether the status is final.
func (s MessageStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// ContextSnippet is the page text and metadata captured around a selection
// when a session starts. It is frozen at creation time; re-extracting later
// could disagree with what the model actually saw.
type ContextSnippet struct {
	// Text is the nearby page text.
	Text string `json:"text,omitempty"`

	// Title is the document title, if known.
	Title string `json:"title,omitempty"`

	// FileName is the base name of the document file.
	FileName string `json:"file_name,omitempty"`

	// Section is the detected section heading, if any.
	Section string `json:"section,omitempty"`
}

// Session is one conversation thread anchored to a single highlight.
// Repeated questions against the same region create new sessions.
type Session struct {
	// ID is the unique identifier for the session.
	ID string

	// HighlightID references the owning highlight. Always exactly one.
	HighlightID int64

	// DocumentID scopes the session to a document.
	DocumentID DocumentID

	// Snippet is the context captured when the session started.
	Snippet ContextSnippet

	// CreatedAt is when the session was opened.
	CreatedAt time.Time
}

// Message is one turn within a session.
type Message struct {
	// ID is the unique identifier for the message.
	ID string

	// SessionID references the owning session.
	SessionID string

	// Position is the ordinal position within the session, starting at 0.
	// Positions are strictly increasing and gap-free.
	Position int

	// Role is who produced the turn.
	Role Role

	// Content is the accumulated text. Append-only while pending,
	// immutable once the status is terminal.
	Content string

	// Status is the completion state.
	Status MessageStatus

	// CreatedAt is when the message row was first written.
	CreatedAt time.Time

	// UpdatedAt is when the content or status last changed.
	UpdatedAt time.Time
}

// SessionHistory pairs a session with its full transcript, in position
// order. This is what the history view renders.
type SessionHistory struct {
	Session  Session
	Messages []Message

	// Highlight is the anchor the session is attached to, when the loader
	// resolved it. Nil when the highlight row is gone.
	Highlight *Highlight
}

// Question returns the first question turn's content, or empty.
func (h SessionHistory) Question() string {
	for _, m := range h.Messages {
		if m.Role == RoleQuestion {
			return m.Content
		}
	}
	return ""
}

// Answer returns the concatenated answer content. Failed answers contribute
// whatever partial content they accumulated.
func (h SessionHistory) Answer() string {
	var out string
	for _, m := range h.Messages {
		if m.Role != RoleAnswer || m.Content == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}
