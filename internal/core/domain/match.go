package domain

// Matching constants. The vertical axis is weighted heavier than the
// horizontal so a click on the same text line beats a horizontally closer
// highlight on a neighbouring line.
const (
	// DefaultPointTolerance is the maximum weighted distance, in document
	// units, at which a near-miss click still matches. It is the tolerance
	// the viewer integration has always used for click lookups.
	DefaultPointTolerance = 40.0

	// DefaultMinOverlap is the minimum overlap ratio for a selection to
	// match an existing highlight outright. Below it, the selection falls
	// back to distance-based matching.
	DefaultMinOverlap = 0.25

	// verticalWeight multiplies the vertical component of the distance.
	verticalWeight = 2.0
)

// MatchConfig holds the matcher tolerances. Zero values select defaults.
type MatchConfig struct {
	// PointTolerance is the maximum weighted distance for near-miss matches.
	PointTolerance float64

	// MinOverlap is the overlap ratio at which a selection matches outright.
	MinOverlap float64
}

// withDefaults fills in zero fields.
func (c MatchConfig) withDefaults() MatchConfig {
	if c.PointTolerance <= 0 {
		c.PointTolerance = DefaultPointTolerance
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = DefaultMinOverlap
	}
	return c
}

// NearestHighlight finds the best-matching AI-flagged highlight for a query.
// Unflagged highlights never match, whatever their kind: an adopted manual
// highlight becomes visible here once its flag is set. It is pure:
// candidates come from the caller and nothing is written.
//
// Candidates on a different page never match. Overlapping candidates beat
// near-miss candidates; near-misses must score within the point tolerance.
// Ties prefer the most recently created highlight. Returns nil when nothing
// is within tolerance.
func NearestHighlight(candidates []Highlight, q Query, cfg MatchConfig) *Highlight {
	if !q.Valid() {
		return nil
	}
	cfg = cfg.withDefaults()

	page := q.Page
	if !q.Point {
		page = q.Region.Page
	}

	var best *Highlight
	var bestOverlap, bestDistance float64

	for i := range candidates {
		h := &candidates[i]
		if !h.AI || h.Page != page || len(h.Boxes) == 0 {
			continue
		}

		overlap, distance := score(h, q, cfg)
		if overlap <= 0 && distance < 0 {
			continue // outside tolerance
		}

		if best == nil || better(overlap, distance, h, bestOverlap, bestDistance, best) {
			best = h
			bestOverlap = overlap
			bestDistance = distance
		}
	}

	return best
}

// BestAnchor finds the highlight a new selection should reuse as its anchor,
// regardless of the AI flag: reusing an unflagged highlight upgrades its flag
// rather than stacking a duplicate on top of it. Same scoring and tie-break
// rules as NearestHighlight. Returns nil when nothing is within tolerance.
func BestAnchor(candidates []Highlight, region Region, cfg MatchConfig) *Highlight {
	if !region.Valid() {
		return nil
	}
	cfg = cfg.withDefaults()
	q := RegionQuery(region)

	var best *Highlight
	var bestOverlap, bestDistance float64

	for i := range candidates {
		h := &candidates[i]
		if h.Page != region.Page || len(h.Boxes) == 0 {
			continue
		}

		overlap, distance := score(h, q, cfg)
		if overlap <= 0 && distance < 0 {
			continue
		}

		if best == nil || better(overlap, distance, h, bestOverlap, bestDistance, best) {
			best = h
			bestOverlap = overlap
			bestDistance = distance
		}
	}

	return best
}

// score evaluates one candidate. It returns the overlap (0 when the query
// only grazes the highlight) and the weighted near-miss distance, or a
// negative distance when the candidate is outside tolerance.
func score(h *Highlight, q Query, cfg MatchConfig) (overlap, distance float64) {
	if q.Point {
		for _, box := range h.Boxes {
			if box.Contains(q.X, q.Y) {
				return 1, 0
			}
		}
		d := weightedDistance(h.Boxes, q.X, q.Y)
		if d > cfg.PointTolerance {
			return 0, -1
		}
		return 0, d
	}

	qb := q.Region.Bounds()
	best := 0.0
	for _, box := range h.Boxes {
		if r := box.OverlapRatio(qb); r > best {
			best = r
		}
	}
	if best >= cfg.MinOverlap {
		return best, 0
	}

	cx := (qb.Left + qb.Right) / 2
	cy := (qb.Top + qb.Bottom) / 2
	d := weightedDistance(h.Boxes, cx, cy)
	if d > cfg.PointTolerance {
		return 0, -1
	}
	return 0, d
}

// weightedDistance returns the smallest vertical-weighted distance from
// (x, y) to any of the boxes.
func weightedDistance(boxes []Rect, x, y float64) float64 {
	best := -1.0
	for _, box := range boxes {
		dx, dy := box.DistanceTo(x, y)
		d := dy*verticalWeight + dx
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// better reports whether candidate (overlap, distance, h) beats the current
// best. Higher overlap wins; among non-overlapping candidates smaller
// distance wins; exact ties go to the most recently created highlight.
func better(overlap, distance float64, h *Highlight, bestOverlap, bestDistance float64, best *Highlight) bool {
	if overlap != bestOverlap {
		return overlap > bestOverlap
	}
	if overlap == 0 && distance != bestDistance {
		return distance < bestDistance
	}
	if !h.CreatedAt.Equal(best.CreatedAt) {
		return h.CreatedAt.After(best.CreatedAt)
	}
	return h.ID > best.ID
}
