package paintbynumbers

import (
	"container/heap"
	"context"
	"math"
)

// ReduceFacets merges facets into neighbours until every facet has at
// least opt.MinFacetSize points and there are at most opt.MaxFacets of
// them, or until a single facet is left. Pixels of a merged facet are
// rewritten in grid to the survivor's colour, and a survivor that ends up
// touching a same-coloured facet absorbs it too, so facets stay maximal.
// Returns the number of facets retired.
//
// Running it again on its own output performs no merges.
func ReduceFacets(ctx context.Context, fr *FacetResult, grid *IndexGrid, palette []RGB, opt Options, progress ProgressFunc) (int, error) {
	r := &reducer{fr: fr, grid: grid, palette: palette, policy: opt.MergePolicy, live: fr.Count()}
	log := Logger().With("stage", StageReduce.String())
	start := r.live

	if opt.MinFacetSize > 0 {
		q := &facetHeap{less: func(a, b heapEntry) bool {
			if a.count != b.count {
				if opt.ReduceLargeToSmallFirst {
					return a.count > b.count
				}
				return a.count < b.count
			}
			return a.id < b.id
		}}
		for _, f := range fr.Facets {
			if f != nil && f.PointCount < opt.MinFacetSize {
				q.items = append(q.items, heapEntry{f.PointCount, f.ID})
			}
		}
		heap.Init(q)
		total := max(q.Len(), 1)
		for q.Len() > 0 && r.live > 1 {
			e := heap.Pop(q).(heapEntry)
			f := fr.Facet(e.id)
			if f == nil || f.PointCount != e.count || f.PointCount >= opt.MinFacetSize {
				continue
			}
			if err := checkEvery(ctx, r.merges); err != nil {
				return r.retired, err
			}
			t := r.merge(f)
			if t != nil && t.PointCount < opt.MinFacetSize {
				heap.Push(q, heapEntry{t.PointCount, t.ID})
			}
			progress.report(50 * float64(r.merges) / float64(total))
		}
	}

	if r.live > opt.MaxFacets {
		q := &facetHeap{less: func(a, b heapEntry) bool {
			if a.count != b.count {
				return a.count < b.count
			}
			return a.id < b.id
		}}
		for _, f := range fr.Facets {
			if f != nil {
				q.items = append(q.items, heapEntry{f.PointCount, f.ID})
			}
		}
		heap.Init(q)
		excess := r.live - opt.MaxFacets
		for r.live > opt.MaxFacets && r.live > 1 && q.Len() > 0 {
			e := heap.Pop(q).(heapEntry)
			f := fr.Facet(e.id)
			if f == nil || f.PointCount != e.count {
				continue
			}
			if err := checkEvery(ctx, r.merges); err != nil {
				return r.retired, err
			}
			if t := r.merge(f); t != nil {
				heap.Push(q, heapEntry{t.PointCount, t.ID})
			}
			progress.report(50 + 50*float64(r.retired)/float64(max(excess, 1)))
		}
	}
	progress.report(100)
	log.Info("facets reduced", "before", start, "after", r.live, "retired", r.retired)
	return r.retired, nil
}

type reducer struct {
	fr      *FacetResult
	grid    *IndexGrid
	palette []RGB
	policy  MergePolicy
	live    int
	merges  int
	retired int
}

// merge folds f into its chosen neighbour and returns the survivor, or nil
// when f has no neighbour.
func (r *reducer) merge(f *Facet) *Facet {
	if f.Neighbours.IsEmpty() {
		return nil
	}
	t := r.fr.Facets[r.pickNeighbour(f)]
	Logger().Debug("merge facet", "facet", f.ID, "points", f.PointCount, "into", t.ID)
	r.absorb(t, f)
	r.merges++
	for {
		same := -1
		it := t.Neighbours.Iterator()
		for it.HasNext() {
			n := r.fr.Facets[it.Next()]
			if n.Color == t.Color {
				same = n.ID
				break
			}
		}
		if same < 0 {
			return t
		}
		r.absorb(t, r.fr.Facets[same])
	}
}

// sharedBorders counts the pixel edges f shares with each neighbour.
func (r *reducer) sharedBorders(f *Facet) map[int]int {
	w := r.fr.W
	shared := make(map[int]int)
	it := f.Points.Iterator()
	for it.HasNext() {
		p := int(it.Next())
		x, y := p%w, p/w
		for k := range 4 {
			nx, ny := x+dx4[k], y+dy4[k]
			if !r.grid.inside(nx, ny) {
				continue
			}
			if id := r.fr.FacetMap[labelOffset(w, nx, ny)]; id != f.ID {
				shared[id]++
			}
		}
	}
	return shared
}

func (r *reducer) pickNeighbour(f *Facet) int {
	shared := r.sharedBorders(f)
	best, bestLen, bestDist := -1, -1, math.MaxFloat64
	own := r.palette[f.Color].colorful()
	it := f.Neighbours.Iterator() // ascending ids
	for it.HasNext() {
		id := int(it.Next())
		n := shared[id]
		switch r.policy {
		case MergeClosestColor:
			d := own.DistanceLab(r.palette[r.fr.Facets[id].Color].colorful())
			if d < bestDist-1e-12 || (math.Abs(d-bestDist) <= 1e-12 && n > bestLen) {
				best, bestLen, bestDist = id, n, d
			}
		default:
			if n > bestLen {
				best, bestLen = id, n
			}
		}
	}
	return best
}

// absorb moves every pixel and neighbour of f into t and retires f.
func (r *reducer) absorb(t, f *Facet) {
	it := f.Points.Iterator()
	for it.HasNext() {
		p := it.Next()
		r.grid.Idx[p] = t.Color
		r.fr.FacetMap[p] = t.ID
	}
	t.Points.Or(f.Points)
	t.PointCount += f.PointCount
	t.Bounds = t.Bounds.Union(f.Bounds)
	for _, n := range f.Neighbours.ToArray() {
		nf := r.fr.Facets[n]
		nf.Neighbours.Remove(uint32(f.ID))
		if int(n) != t.ID {
			nf.Neighbours.Add(uint32(t.ID))
			t.Neighbours.Add(n)
		}
	}
	t.Neighbours.Remove(uint32(f.ID))
	t.Neighbours.Remove(uint32(t.ID))
	r.fr.Facets[f.ID] = nil
	r.live--
	r.retired++
}

type heapEntry struct{ count, id int }

type facetHeap struct {
	items []heapEntry
	less  func(a, b heapEntry) bool
}

func (h *facetHeap) Len() int           { return len(h.items) }
func (h *facetHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *facetHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *facetHeap) Push(x any)         { h.items = append(h.items, x.(heapEntry)) }
func (h *facetHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}
