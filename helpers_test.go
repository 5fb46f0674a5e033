package paintbynumbers

import (
	"context"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridFromRows builds an index grid from rows of digits.
func gridFromRows(rows ...string) *IndexGrid {
	g := NewIndexGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, ch := range row {
			g.Set(x, y, int(ch-'0'))
		}
	}
	return g
}

// randomGrid fills a grid with k colours, smoothed a little so facets of
// several sizes appear.
func randomGrid(w, h, k int, seed uint64) *IndexGrid {
	rng := rand.New(rand.NewPCG(seed, 1))
	g := NewIndexGrid(w, h)
	for i := range g.Idx {
		g.Idx[i] = rng.IntN(k)
	}
	for y := range h {
		for x := 1; x < w; x++ {
			if rng.IntN(3) == 0 {
				g.Set(x, y, g.At(x-1, y))
			}
		}
	}
	return g
}

func grayPalette(k int) []RGB {
	p := make([]RGB, k)
	for i := range p {
		v := uint8(i * 255 / max(k-1, 1))
		p[i] = RGB{v, v, v}
	}
	return p
}

func imageFromGrid(g *IndexGrid, palette []RGB) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for y := range g.H {
		for x := range g.W {
			c := palette[g.At(x, y)]
			img.SetRGBA(x, y, color.RGBA{c[0], c[1], c[2], 255})
		}
	}
	return img
}

// shapesImage draws a disc and two bars over a two-tone background, with
// some noise.
func shapesImage(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, 7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.RGBA{30, 60, 160, 255}
			if y > h/2 {
				c = color.RGBA{40, 150, 60, 255}
			}
			dx, dy := x-w/3, y-h/3
			if dx*dx+dy*dy < (w/5)*(w/5) {
				c = color.RGBA{230, 200, 40, 255}
			}
			if x > 2*w/3 && x < 2*w/3+4 {
				c = color.RGBA{200, 30, 30, 255}
			}
			if y > 3*h/4 && y < 3*h/4+3 && x < w/2 {
				c = color.RGBA{250, 250, 250, 255}
			}
			if rng.IntN(40) == 0 {
				c = color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// buildGeometry runs facet building through label placement on grid.
func buildGeometry(t *testing.T, grid *IndexGrid, palette []RGB, opt Options) *FacetResult {
	t.Helper()
	ctx := context.Background()
	fr, err := BuildFacets(ctx, grid, nil)
	require.NoError(t, err)
	_, err = ReduceFacets(ctx, fr, grid, palette, opt, nil)
	require.NoError(t, err)
	excluded, err := BuildBorderPaths(ctx, fr, nil)
	require.NoError(t, err)
	require.Empty(t, excluded)
	require.NoError(t, BuildBorderSegments(ctx, fr, opt.BorderHalvingRounds, opt.HalvingPolicy, nil))
	require.NoError(t, BuildLabelBounds(ctx, fr, opt.MinLabelArea, nil))
	return fr
}

func toPoints(loop []PathPoint) []Point {
	out := make([]Point, len(loop))
	for i, p := range loop {
		out[i] = Point{float64(p.X), float64(p.Y)}
	}
	return out
}

// sameCycle reports whether b is a rotation of a.
func sameCycle(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	for off := range b {
		if b[off] != a[0] {
			continue
		}
		ok := true
		for i := range a {
			if a[i] != b[(off+i)%len(b)] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// assertSegmentOwners checks that every segment is referenced once by each
// of its owners: twice between two facets, once against the image edge.
func assertSegmentOwners(t *testing.T, fr *FacetResult, msgAndArgs ...any) {
	t.Helper()
	refs := make(map[*BorderSegment][]int)
	for _, f := range fr.Facets {
		if f == nil {
			continue
		}
		for _, r := range allRefs(f) {
			refs[r.Segment] = append(refs[r.Segment], f.ID)
		}
	}
	assert.Len(t, refs, len(fr.Segments), msgAndArgs...)
	for _, s := range fr.Segments {
		want := []int{s.Owners[0], s.Owners[1]}
		if s.Owners[1] == Outer {
			want = want[:1]
		}
		assert.ElementsMatch(t, want, refs[s], "segment %d", s.ID)
	}
}
