package tui

import "errors"

// ErrMissingHistoryService is returned when the history service is not provided.
var ErrMissingHistoryService = errors.New("tui: history service is required")

// ErrMissingDocument is returned when no document has been set before running.
var ErrMissingDocument = errors.New("tui: document is required")
