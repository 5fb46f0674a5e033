package paintbynumbers

import (
	"context"
	"image"
	"image/color"

	"golang.org/x/image/vector"
)

// BuildLabelBounds finds, for every traced facet, the largest axis-aligned
// rectangle of its own pixels. The facet's raw outer loop and holes are
// rasterized at bounding-box resolution; holes wind the other way and
// cancel out. Rectangles smaller than minArea pixels are not kept.
func BuildLabelBounds(ctx context.Context, fr *FacetResult, minArea int, progress ProgressFunc) error {
	var (
		z      vector.Rasterizer
		buf    []uint8
		src    = image.NewUniform(color.Alpha{255})
		placed int
	)
	for i, f := range fr.Facets {
		if err := checkEvery(ctx, i); err != nil {
			return err
		}
		if f == nil || f.Border == nil {
			continue
		}
		f.LabelBounds = image.Rectangle{}
		b := f.Bounds
		w, h := b.Dx(), b.Dy()
		if cap(buf) < w*h {
			buf = make([]uint8, w*h)
		}
		// The rasterizer writes rows at its own width, so the mask stride
		// must equal w.
		mask := &image.Alpha{Pix: buf[:w*h], Stride: w, Rect: image.Rect(0, 0, w, h)}
		clear(mask.Pix)

		z.Reset(w, h)
		addLoop(&z, f.Border, b.Min)
		for _, hole := range f.Holes {
			addLoop(&z, hole, b.Min)
		}
		z.Draw(mask, mask.Bounds(), src, image.Point{})

		occ := make([]bool, w*h)
		for y := range h {
			for x := range w {
				// The polygon is the facet, but stay strictly on its pixels.
				in := mask.Pix[y*w+x] >= 128 &&
					fr.FacetMap[labelOffset(fr.W, b.Min.X+x, b.Min.Y+y)] == f.ID
				occ[y*w+x] = in
			}
		}
		r := maxRectangle(occ, w, h)
		if r.Dx()*r.Dy() >= max(minArea, 1) {
			f.LabelBounds = r.Add(b.Min)
			placed++
		}
		progress.report(100 * float64(i+1) / float64(len(fr.Facets)))
	}
	Logger().Info("labels placed", "stage", StageLabel.String(), "labels", placed, "facets", fr.Count())
	return nil
}

func addLoop(z *vector.Rasterizer, loop []PathPoint, origin image.Point) {
	if len(loop) == 0 {
		return
	}
	z.MoveTo(float32(loop[0].X-origin.X), float32(loop[0].Y-origin.Y))
	for _, p := range loop[1:] {
		z.LineTo(float32(p.X-origin.X), float32(p.Y-origin.Y))
	}
	z.ClosePath()
}

// maxRectangle returns the largest all-true rectangle of a w×h row-major
// mask, using the per-row histogram and a monotonic stack. Among equal
// areas the first one found (top-most bottom edge, then left-most) wins.
func maxRectangle(occ []bool, w, h int) image.Rectangle {
	heights := make([]int, w+1)
	stack := make([]int, 0, w+1)
	var best image.Rectangle
	bestArea := 0
	for y := range h {
		for x := range w {
			if occ[y*w+x] {
				heights[x]++
			} else {
				heights[x] = 0
			}
		}
		// heights[w] stays 0 and flushes the stack.
		stack = stack[:0]
		for x := 0; x <= w; x++ {
			for len(stack) > 0 && heights[stack[len(stack)-1]] >= heights[x] {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				left := 0
				if len(stack) > 0 {
					left = stack[len(stack)-1] + 1
				}
				hgt := heights[top]
				if a := hgt * (x - left); a > bestArea {
					bestArea = a
					best = image.Rect(left, y-hgt+1, x, y+1)
				}
			}
			stack = append(stack, x)
		}
	}
	return best
}
