// Package tui provides an interactive terminal browser for the conversations
// saved against a document. It implements a driving adapter following
// hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// History loads saved conversations.
	History driving.HistoryService

	// Ask runs follow-up questions against an existing highlight. Optional;
	// without it the ask view is disabled.
	Ask driving.AskService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.History == nil {
		return ErrMissingHistoryService
	}
	return nil
}
