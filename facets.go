package paintbynumbers

import (
	"context"
	"image"

	"github.com/RoaringBitmap/roaring/v2"
)

// Outer is the region id on the far side of an image-edge border.
const Outer = -1

// Facet is a maximal 4-connected region of one palette index.
type Facet struct {
	ID         int
	Color      int
	PointCount int
	// Bounds in pixel coordinates, Max exclusive.
	Bounds image.Rectangle
	// Points holds the pixel offsets (y*W+x) of the facet.
	Points *roaring.Bitmap
	// Neighbours holds the ids of 4-adjacent facets.
	Neighbours *roaring.Bitmap

	// Border is the traced outer loop, Holes the traced inner loops.
	Border []PathPoint
	Holes  [][]PathPoint

	// BorderSegments references the shared chains making up Border, in
	// loop order; HoleSegments does the same per hole.
	BorderSegments []SegmentRef
	HoleSegments   [][]SegmentRef

	// LabelBounds is the largest inscribed rectangle in pixel coordinates,
	// empty when the facet is too small to carry a label.
	LabelBounds image.Rectangle
}

// HasLabel reports whether a label rectangle was placed.
func (f *Facet) HasLabel() bool { return !f.LabelBounds.Empty() }

// FacetResult is the facet table. Facets is indexed by id; removed facets
// are nil and their ids are never handed out again.
type FacetResult struct {
	W, H     int
	Facets   []*Facet
	FacetMap []int // pixel offset -> facet id
	Segments []*BorderSegment
}

// Facet returns the live facet with the given id, or nil.
func (fr *FacetResult) Facet(id int) *Facet {
	if id < 0 || id >= len(fr.Facets) {
		return nil
	}
	return fr.Facets[id]
}

// Count returns the number of live facets.
func (fr *FacetResult) Count() int {
	n := 0
	for _, f := range fr.Facets {
		if f != nil {
			n++
		}
	}
	return n
}

// TotalPoints sums the point counts of live facets. After building and
// after reduction it equals W*H.
func (fr *FacetResult) TotalPoints() int {
	n := 0
	for _, f := range fr.Facets {
		if f != nil {
			n += f.PointCount
		}
	}
	return n
}

// BuildFacets labels the 4-connected components of grid and records the
// adjacency between them. Ids follow row-major order of each facet's first
// pixel.
func BuildFacets(ctx context.Context, grid *IndexGrid, progress ProgressFunc) (*FacetResult, error) {
	w, h := grid.W, grid.H
	fr := &FacetResult{W: w, H: h, FacetMap: make([]int, w*h)}
	for i := range fr.FacetMap {
		fr.FacetMap[i] = -1
	}

	elems := make([]int, 0, 64)
	visited := 0
	for y := range h {
		if err := checkRow(ctx, y, w); err != nil {
			return nil, err
		}
		for x := range w {
			start := labelOffset(w, x, y)
			if fr.FacetMap[start] != -1 {
				continue
			}
			f := &Facet{
				ID:         len(fr.Facets),
				Color:      grid.Idx[start],
				Points:     roaring.New(),
				Neighbours: roaring.New(),
				Bounds:     image.Rect(x, y, x+1, y+1),
			}
			fr.FacetMap[start] = f.ID
			elems = append(elems[:0], start)
			for c := 0; c < len(elems); c++ {
				// A single facet can span many rows.
				visited++
				if err := checkEvery(ctx, visited); err != nil {
					return nil, err
				}
				cur := elems[c]
				cx, cy := cur%w, cur/w
				f.Points.Add(uint32(cur))
				f.Bounds = f.Bounds.Union(image.Rect(cx, cy, cx+1, cy+1))
				for k := range 4 {
					nx, ny := cx+dx4[k], cy+dy4[k]
					if !grid.inside(nx, ny) {
						continue
					}
					n := labelOffset(w, nx, ny)
					if fr.FacetMap[n] == -1 && grid.Idx[n] == f.Color {
						fr.FacetMap[n] = f.ID
						elems = append(elems, n)
					}
				}
			}
			f.PointCount = len(elems)
			fr.Facets = append(fr.Facets, f)
		}
		if h > 1 {
			progress.report(80 * float64(y) / float64(h-1))
		}
	}

	// Adjacency: right and down neighbours cover every 4-adjacent pair once.
	for y := range h {
		if err := checkRow(ctx, y, w); err != nil {
			return nil, err
		}
		for x := range w {
			a := fr.FacetMap[labelOffset(w, x, y)]
			if x+1 < w {
				if b := fr.FacetMap[labelOffset(w, x+1, y)]; b != a {
					fr.link(a, b)
				}
			}
			if y+1 < h {
				if b := fr.FacetMap[labelOffset(w, x, y+1)]; b != a {
					fr.link(a, b)
				}
			}
		}
	}
	progress.report(100)
	Logger().Info("facets built", "stage", StageFacetBuild.String(), "facets", len(fr.Facets))
	return fr, nil
}

func (fr *FacetResult) link(a, b int) {
	fr.Facets[a].Neighbours.Add(uint32(b))
	fr.Facets[b].Neighbours.Add(uint32(a))
}
