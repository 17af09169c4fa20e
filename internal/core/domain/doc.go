// Package domain defines the core business entities for Marginalia.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Highlight: A persisted, page-scoped region in a document
//   - Session: A conversation thread anchored to one highlight
//   - Message: A question or answer turn within a session
//   - Region/Query: Document-space geometry for anchoring and lookup
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
