package paintbynumbers

import (
	"context"
	"errors"
	"fmt"
)

// PathPoint is a pixel-corner lattice point on a traced border. Neighbour
// is the region across the edge that starts at this point (a facet id or
// Outer).
type PathPoint struct {
	X, Y      int
	Neighbour int
}

// Edge directions on the lattice, clockwise on screen (y grows down).
const (
	dirE = iota
	dirS
	dirW
	dirN
)

var (
	dirDX = [4]int{1, 0, -1, 0}
	dirDY = [4]int{0, 1, 0, -1}
)

var (
	errOpenLoop     = errors.New("border loop does not close")
	errNoOuterLoop  = errors.New("no outer border loop")
	errManyOuter    = errors.New("more than one outer border loop")
	errRunawayTrace = errors.New("border walk exceeded edge count")
)

// BuildBorderPaths traces every facet's boundary on the pixel-corner
// lattice. Edges keep the facet on their right, so outer loops run
// clockwise on screen and holes counter-clockwise. Where a facet touches
// itself only diagonally the walk turns right, keeping the two pixels
// apart as 4-connectivity demands.
//
// Facets whose loops cannot be closed lose their geometry and are returned
// as excluded; the run goes on without them.
func BuildBorderPaths(ctx context.Context, fr *FacetResult, progress ProgressFunc) ([]ExcludedFacet, error) {
	t := &tracer{fr: fr}
	var excluded []ExcludedFacet
	for i, f := range fr.Facets {
		if err := checkEvery(ctx, i); err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if err := t.trace(f); err != nil {
			f.Border, f.Holes = nil, nil
			excluded = append(excluded, ExcludedFacet{ID: f.ID, Pixels: f.PointCount, Reason: err.Error()})
			Logger().Warn("facet excluded", "stage", StageTrace.String(), "facet", f.ID,
				"pixels", f.PointCount, "total", fr.W*fr.H, "reason", err)
		}
		progress.report(100 * float64(i+1) / float64(len(fr.Facets)))
	}
	return excluded, nil
}

type tracer struct {
	fr *FacetResult
	// out holds, per lattice point of the facet's bounding box, a bit per
	// outgoing border edge direction.
	out []uint8
	ox  int
	oy  int
	lw  int
}

func (t *tracer) bit(x, y, d int) bool {
	return t.out[(y-t.oy)*t.lw+(x-t.ox)]&(1<<d) != 0
}

func (t *tracer) set(x, y, d int) { t.out[(y-t.oy)*t.lw+(x-t.ox)] |= 1 << d }

func (t *tracer) unset(x, y, d int) { t.out[(y-t.oy)*t.lw+(x-t.ox)] &^= 1 << d }

// across returns the region on the far side of the edge starting at (x,y)
// heading d.
func (t *tracer) across(x, y, d int) int {
	var px, py int
	switch d {
	case dirE:
		px, py = x, y-1
	case dirS:
		px, py = x, y
	case dirW:
		px, py = x-1, y
	default:
		px, py = x-1, y-1
	}
	if px < 0 || py < 0 || px >= t.fr.W || py >= t.fr.H {
		return Outer
	}
	return t.fr.FacetMap[labelOffset(t.fr.W, px, py)]
}

func (t *tracer) trace(f *Facet) error {
	w, h := t.fr.W, t.fr.H
	b := f.Bounds
	t.ox, t.oy = b.Min.X, b.Min.Y
	t.lw = b.Dx() + 1
	n := t.lw * (b.Dy() + 1)
	if cap(t.out) < n {
		t.out = make([]uint8, n)
	}
	t.out = t.out[:n]
	clear(t.out)

	edges := 0
	member := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && t.fr.FacetMap[labelOffset(w, x, y)] == f.ID
	}
	it := f.Points.Iterator()
	for it.HasNext() {
		p := int(it.Next())
		x, y := p%w, p/w
		if !member(x, y-1) {
			t.set(x, y, dirE)
			edges++
		}
		if !member(x+1, y) {
			t.set(x+1, y, dirS)
			edges++
		}
		if !member(x, y+1) {
			t.set(x+1, y+1, dirW)
			edges++
		}
		if !member(x-1, y) {
			t.set(x, y+1, dirN)
			edges++
		}
	}

	var loops [][]PathPoint
	for ly := b.Min.Y; ly <= b.Max.Y; ly++ {
		for lx := b.Min.X; lx <= b.Max.X; lx++ {
			for d := range 4 {
				if !t.bit(lx, ly, d) {
					continue
				}
				loop, err := t.walk(lx, ly, d, edges)
				if err != nil {
					return err
				}
				loops = append(loops, loop)
			}
		}
	}

	f.Border, f.Holes = nil, nil
	for _, loop := range loops {
		if loopArea(loop) > 0 {
			if f.Border != nil {
				return errManyOuter
			}
			f.Border = loop
		} else {
			f.Holes = append(f.Holes, loop)
		}
	}
	if f.Border == nil {
		return errNoOuterLoop
	}
	return nil
}

// walk follows border edges from (sx,sy) heading sd until it is back on
// the starting edge. At every lattice point it prefers a right turn, then
// straight on, then a left turn.
func (t *tracer) walk(sx, sy, sd, limit int) ([]PathPoint, error) {
	var loop []PathPoint
	x, y, d := sx, sy, sd
	t.unset(x, y, d)
	for {
		loop = append(loop, PathPoint{X: x, Y: y, Neighbour: t.across(x, y, d)})
		if len(loop) > limit {
			return nil, errRunawayTrace
		}
		x, y = x+dirDX[d], y+dirDY[d]
		next := -1
		for _, nd := range [3]int{(d + 1) % 4, d, (d + 3) % 4} {
			if x == sx && y == sy && nd == sd {
				return loop, nil
			}
			if t.bit(x, y, nd) {
				next = nd
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("%w at (%d,%d)", errOpenLoop, x, y)
		}
		t.unset(x, y, next)
		d = next
	}
}

// loopArea is the signed shoelace area; positive for clockwise loops on
// screen.
func loopArea(loop []PathPoint) int {
	a := 0
	for i, p := range loop {
		q := loop[(i+1)%len(loop)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}
