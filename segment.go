package paintbynumbers

import (
	"context"
	"slices"
)

// Point is a border vertex in pixel-corner coordinates.
type Point struct {
	X, Y float64
}

func mid(a, b Point) Point { return Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2} }

// BorderSegment is a maximal chain of border edges between the same two
// regions. Owners[1] is Outer for chains on the image edge. The points are
// stored once, in the direction Owners[0] walks them; Owners[1] reads them
// reversed, so both sides render the exact same geometry.
type BorderSegment struct {
	ID     int
	Owners [2]int
	// Closed chains make up a whole loop (an island and the hole it fills)
	// and do not repeat their first point.
	Closed bool
	Points []Point
}

// SegmentRef is a facet's view of a shared segment.
type SegmentRef struct {
	Segment *BorderSegment
	Reverse bool
}

// Points returns the segment's vertices in the referencing facet's walking
// direction. A closed chain keeps its first point when reversed.
func (r SegmentRef) Points() []Point {
	pts := r.Segment.Points
	if !r.Reverse {
		return pts
	}
	out := make([]Point, len(pts))
	if r.Segment.Closed {
		out[0] = pts[0]
		for i := 1; i < len(pts); i++ {
			out[i] = pts[len(pts)-i]
		}
		return out
	}
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

type segKey struct {
	lo, hi int
	a, b   [2]int // endpoints as (y,x), a <= b
	edges  int
	closed bool
}

func latticeLess(p, q [2]int) bool {
	return p[0] < q[0] || (p[0] == q[0] && p[1] < q[1])
}

// BuildBorderSegments cuts every traced loop into chains of constant
// neighbour, stores each chain once per pair of regions and applies
// `rounds` subdivision rounds of the given policy to it. Both facets of a
// shared chain end up referencing the same *BorderSegment.
//
// With zero rounds the segment points are exactly the traced lattice
// points.
func BuildBorderSegments(ctx context.Context, fr *FacetResult, rounds int, policy HalvingPolicy, progress ProgressFunc) error {
	open := make(map[segKey][]*BorderSegment)
	fr.Segments = fr.Segments[:0]
	for i, f := range fr.Facets {
		if err := checkEvery(ctx, i); err != nil {
			return err
		}
		if f == nil || f.Border == nil {
			continue
		}
		f.BorderSegments = fr.segmentLoop(f, f.Border, open)
		f.HoleSegments = make([][]SegmentRef, len(f.Holes))
		for h, hole := range f.Holes {
			f.HoleSegments[h] = fr.segmentLoop(f, hole, open)
		}
		progress.report(50 * float64(i+1) / float64(len(fr.Facets)))
	}
	if len(open) > 0 {
		// Partner facet excluded during tracing.
		Logger().Warn("segments with a single owner", "stage", StageSegment.String(), "count", len(open))
	}

	rounds = min(max(rounds, 0), MaxBorderHalvingRounds)
	for i, s := range fr.Segments {
		if err := checkEvery(ctx, i); err != nil {
			return err
		}
		for range rounds {
			switch policy {
			case HalvingHaar:
				s.Points = haarHalve(s.Points, s.Closed)
			default:
				s.Points = midpointSubdivide(s.Points, s.Closed)
			}
		}
		progress.report(50 + 50*float64(i+1)/float64(len(fr.Segments)))
	}
	Logger().Info("border segments built", "stage", StageSegment.String(), "segments", len(fr.Segments), "rounds", rounds, "policy", policy.String())
	return nil
}

// segmentLoop splits one loop of f into chains and links each chain with
// the matching chain already produced by the neighbour, if any. Chains end
// where the neighbour changes and at junctions, so the facet on the other
// side cuts its loop at exactly the same lattice points.
func (fr *FacetResult) segmentLoop(f *Facet, loop []PathPoint, open map[segKey][]*BorderSegment) []SegmentRef {
	n := len(loop)
	cut := make([]bool, n)
	start := -1
	for i := range n {
		cut[i] = loop[i].Neighbour != loop[(i+n-1)%n].Neighbour || fr.junction(loop[i].X, loop[i].Y)
		if cut[i] && start < 0 {
			start = i
		}
	}
	var refs []SegmentRef
	if start < 0 {
		// One neighbour all around: a closed chain, rotated to its smallest
		// lattice point so both owners agree on where it starts.
		m := 0
		for i := range n {
			if latticeLess([2]int{loop[i].Y, loop[i].X}, [2]int{loop[m].Y, loop[m].X}) {
				m = i
			}
		}
		pts := make([]Point, n)
		for i := range n {
			p := loop[(m+i)%n]
			pts[i] = Point{float64(p.X), float64(p.Y)}
		}
		return append(refs, fr.linkSegment(f, loop[0].Neighbour, pts, true, open))
	}

	for i := 0; i < n; {
		nb := loop[(start+i)%n].Neighbour
		j := i + 1
		for j < n && !cut[(start+j)%n] {
			j++
		}
		pts := make([]Point, 0, j-i+1)
		for k := i; k <= j; k++ {
			p := loop[(start+k)%n]
			pts = append(pts, Point{float64(p.X), float64(p.Y)})
		}
		refs = append(refs, fr.linkSegment(f, nb, pts, false, open))
		i = j
	}
	return refs
}

// junction reports whether three or more regions meet at lattice point
// (x,y), or two regions touch there only diagonally.
func (fr *FacetResult) junction(x, y int) bool {
	cell := func(px, py int) int {
		if px < 0 || py < 0 || px >= fr.W || py >= fr.H {
			return Outer
		}
		return fr.FacetMap[labelOffset(fr.W, px, py)]
	}
	tl, tr := cell(x-1, y-1), cell(x, y-1)
	bl, br := cell(x-1, y), cell(x, y)
	if tl == br && tr == bl && tl != tr {
		return true
	}
	ids := [4]int{tl, tr, bl, br}
	distinct := 0
	for i, id := range ids {
		if !slices.Contains(ids[:i], id) {
			distinct++
		}
	}
	return distinct >= 3
}

// linkSegment pairs a chain with its mirror image from the facet across
// the border, or registers it as a new segment waiting for that partner.
func (fr *FacetResult) linkSegment(f *Facet, nb int, pts []Point, closed bool, open map[segKey][]*BorderSegment) SegmentRef {
	if nb == Outer {
		return SegmentRef{Segment: fr.newSegment(f.ID, nb, pts, closed)}
	}
	a := [2]int{int(pts[0].Y), int(pts[0].X)}
	b := a
	if !closed {
		// Closed chains both start at their smallest point but walk
		// opposite ways, so only the start identifies them.
		b = [2]int{int(pts[len(pts)-1].Y), int(pts[len(pts)-1].X)}
		if latticeLess(b, a) {
			a, b = b, a
		}
	}
	key := segKey{lo: min(f.ID, nb), hi: max(f.ID, nb), a: a, b: b, edges: len(pts), closed: closed}
	for i, s := range open[key] {
		if s.Owners[1] != f.ID {
			continue
		}
		ref := SegmentRef{Segment: s, Reverse: true}
		if slices.Equal(ref.Points(), pts) {
			open[key] = slices.Delete(open[key], i, i+1)
			if len(open[key]) == 0 {
				delete(open, key)
			}
			return ref
		}
	}
	s := fr.newSegment(f.ID, nb, pts, closed)
	open[key] = append(open[key], s)
	return SegmentRef{Segment: s}
}

func (fr *FacetResult) newSegment(owner, other int, pts []Point, closed bool) *BorderSegment {
	s := &BorderSegment{ID: len(fr.Segments), Owners: [2]int{owner, other}, Closed: closed, Points: pts}
	fr.Segments = append(fr.Segments, s)
	return s
}

// midpointSubdivide inserts the midpoint of every edge.
func midpointSubdivide(pts []Point, closed bool) []Point {
	if len(pts) < 2 {
		return pts
	}
	out := make([]Point, 0, 2*len(pts))
	for i := 0; i < len(pts)-1; i++ {
		out = append(out, pts[i], mid(pts[i], pts[i+1]))
	}
	out = append(out, pts[len(pts)-1])
	if closed {
		out = append(out, mid(pts[len(pts)-1], pts[0]))
	}
	return out
}

// haarHalve replaces consecutive interior point pairs by their average and
// keeps both endpoints. Short chains are left alone.
func haarHalve(pts []Point, closed bool) []Point {
	if closed {
		pts = append(slices.Clip(pts), pts[0])
	}
	if len(pts) <= 5 {
		if closed {
			return pts[:len(pts)-1]
		}
		return pts
	}
	out := make([]Point, 0, len(pts)/2+2)
	out = append(out, pts[0])
	for i := 1; i+1 < len(pts)-1; i += 2 {
		out = append(out, mid(pts[i], pts[i+1]))
	}
	out = append(out, pts[len(pts)-1])
	if closed {
		out = out[:len(out)-1]
	}
	return out
}

// FacetOutline returns the facet's outer loop and holes as vertex lists built
// from its border segments.
func FacetOutline(f *Facet) (outer []Point, holes [][]Point) {
	outer = joinSegments(f.BorderSegments)
	for _, refs := range f.HoleSegments {
		holes = append(holes, joinSegments(refs))
	}
	return outer, holes
}

func joinSegments(refs []SegmentRef) []Point {
	if len(refs) == 1 && refs[0].Segment.Closed {
		return refs[0].Points()
	}
	var out []Point
	for _, r := range refs {
		pts := r.Points()
		out = append(out, pts[:len(pts)-1]...)
	}
	return out
}
