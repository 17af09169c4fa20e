// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - HighlightStore: Highlight persistence and find-or-create
//   - ConversationStore: Session and message persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - AnswerStreamer: Streams model answers. Without it, questions fail
//     with domain.ErrStreamerUnavailable but history lookups still work.
//   - ViewerControl: Status-bar messages and reloads for the host viewer.
//     Without it, feedback goes to the CLI only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
