package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input (missing
	// coordinates, blank document path). Reported before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStore indicates a persistence-level failure. Store adapters wrap
	// driver errors with this sentinel so the orchestrator can apply its
	// single-retry policy without knowing the backend.
	ErrStore = errors.New("store failure")

	// ErrConsistency indicates a logic-level invariant violation such as
	// conflicting double-finalization or a second pending answer in one
	// session. Never silently corrected.
	ErrConsistency = errors.New("consistency violation")

	// ErrStreamerUnavailable indicates no answer streamer is configured.
	// Questions cannot be asked, but history lookups still work.
	ErrStreamerUnavailable = errors.New("answer streamer unavailable")
)
