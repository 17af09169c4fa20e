package domain

import "time"

// HighlightKind distinguishes how a highlight was created in the viewer.
type HighlightKind string

const (
	// KindManual is a highlight the user drew by hand in the viewer.
	KindManual HighlightKind = "m"

	// KindLinked is a highlight created (or reused) by the linking flow.
	// The viewer renders it like any other highlight of this type.
	KindLinked HighlightKind = "v"
)

// Highlight is a persisted, page-scoped region in a document. It is the
// anchor that conversations attach to.
type Highlight struct {
	// ID is the unique identifier for the highlight.
	ID int64

	// DocumentID scopes the highlight to a document.
	DocumentID DocumentID

	// Page is the zero-based page index the highlight lives on.
	Page int

	// Boxes are the bounding boxes in document space, in selection order.
	Boxes []Rect

	// Text is the selected text captured when the highlight was created.
	Text string

	// Kind records how the highlight was created.
	Kind HighlightKind

	// AI is set if and only if the highlight was created by, or reused
	// through, the linking flow. Manual highlights never carry it unless
	// explicitly reused.
	AI bool

	// CreatedAt is when the highlight row was first written.
	CreatedAt time.Time
}

// Region returns the highlight geometry as a Region.
func (h Highlight) Region() Region {
	return Region{Page: h.Page, Boxes: h.Boxes}
}
