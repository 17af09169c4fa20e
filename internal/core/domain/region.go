package domain

import "math"

// DocumentID is the stable identity of a document. It is the md5 content
// hash the viewer records for each file, so the same file resolves to the
// same identity across runs and across machines.
type DocumentID string

// Rect is an axis-aligned rectangle in absolute document space.
// Coordinates grow rightwards and downwards.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Normalised returns the rectangle with Left<=Right and Top<=Bottom.
// Viewer selections can arrive with begin/end swapped.
func (r Rect) Normalised() Rect {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return r
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	r = r.Normalised()
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	r = r.Normalised()
	return (r.Right - r.Left) * (r.Bottom - r.Top)
}

// OverlapRatio returns the intersection area divided by the smaller of the
// two rectangle areas. Degenerate rectangles (zero area) overlap either
// fully or not at all depending on containment.
func (r Rect) OverlapRatio(other Rect) float64 {
	r = r.Normalised()
	other = other.Normalised()

	left := math.Max(r.Left, other.Left)
	top := math.Max(r.Top, other.Top)
	right := math.Min(r.Right, other.Right)
	bottom := math.Min(r.Bottom, other.Bottom)

	if left >= right || top >= bottom {
		if r.Contains(other.Left, other.Top) || other.Contains(r.Left, r.Top) {
			return 1
		}
		return 0
	}

	intersection := (right - left) * (bottom - top)
	smaller := math.Min(r.Area(), other.Area())
	if smaller <= 0 {
		return 1
	}
	return intersection / smaller
}

// DistanceTo returns the axis-wise distance from the point (x, y) to the
// rectangle, zero on each axis when the point is within that axis range.
func (r Rect) DistanceTo(x, y float64) (dx, dy float64) {
	r = r.Normalised()
	switch {
	case x < r.Left:
		dx = r.Left - x
	case x > r.Right:
		dx = x - r.Right
	}
	switch {
	case y < r.Top:
		dy = r.Top - y
	case y > r.Bottom:
		dy = y - r.Bottom
	}
	return dx, dy
}

// Region is a page-scoped selection: an ordered sequence of bounding boxes
// on a single page. Selections that span pages are clipped to the page the
// selection starts on before they reach the core.
type Region struct {
	// Page is the zero-based page index.
	Page int

	// Boxes are the bounding boxes in document space, in selection order.
	Boxes []Rect
}

// Bounds returns the bounding rectangle of all boxes.
func (r Region) Bounds() Rect {
	if len(r.Boxes) == 0 {
		return Rect{}
	}
	out := r.Boxes[0].Normalised()
	for _, b := range r.Boxes[1:] {
		b = b.Normalised()
		out.Left = math.Min(out.Left, b.Left)
		out.Top = math.Min(out.Top, b.Top)
		out.Right = math.Max(out.Right, b.Right)
		out.Bottom = math.Max(out.Bottom, b.Bottom)
	}
	return out
}

// Valid reports whether the region carries usable geometry.
func (r Region) Valid() bool {
	return r.Page >= 0 && len(r.Boxes) > 0
}

// Query is a lookup gesture against stored highlights: either a click point
// or a selection region. Exactly one of the two forms is populated.
type Query struct {
	// Page is the zero-based page index of the gesture.
	Page int

	// X, Y are the click coordinates when Point is true.
	X, Y float64

	// Point marks a click-based query. When false, Region holds a
	// selection-based query and Page is ignored in favour of Region.Page.
	Point bool

	// Region is the selection for range-based queries.
	Region Region
}

// PointQuery builds a click-based query.
func PointQuery(page int, x, y float64) Query {
	return Query{Page: page, X: x, Y: y, Point: true}
}

// RegionQuery builds a selection-based query.
func RegionQuery(region Region) Query {
	return Query{Page: region.Page, Region: region}
}

// Valid reports whether the query can be evaluated.
func (q Query) Valid() bool {
	if q.Point {
		return q.Page >= 0
	}
	return q.Region.Valid()
}
