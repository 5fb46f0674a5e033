package paintbynumbers

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/setanarut/paintbynumbers/utils"
)

// ProgressFunc receives a stage completion percentage in [0,100].
// It must not block; nil is allowed.
type ProgressFunc func(percent float64)

func (f ProgressFunc) report(pct float64) {
	if f != nil {
		f(pct)
	}
}

// Quantized is the output of the colour quantizer.
type Quantized struct {
	Grid       *IndexGrid
	Palette    []RGB
	Iterations int
	// Delta is the largest centroid displacement of the last iteration.
	Delta float64
	// Empty counts clusters that could not be populated (fewer distinct
	// colours than clusters).
	Empty int
}

// colorPoint is one distinct image colour, weighted by its pixel count.
type colorPoint struct {
	coords clusters.Coordinates
	weight float64
}

func (p colorPoint) Coordinates() clusters.Coordinates { return p.coords }

func (p colorPoint) Distance(c clusters.Coordinates) float64 { return p.coords.Distance(c) }

// ============ COLOUR SPACES ============

// toSpace maps a colour to k-means coordinates. Every space is scaled to
// roughly 0..255 per axis (Lab to CIE units) so ConvergenceDelta means
// about the same in all of them.
func toSpace(c colorful.Color, space ColorSpace) clusters.Coordinates {
	switch space {
	case ColorSpaceHSL:
		h, s, l := c.Hsl()
		if math.IsNaN(h) {
			h = 0
		}
		return clusters.Coordinates{h / 360 * 255, s * 255, l * 255}
	case ColorSpaceLab:
		l, a, b := c.Lab()
		return clusters.Coordinates{l * 100, a * 100, b * 100}
	default:
		return clusters.Coordinates{c.R * 255, c.G * 255, c.B * 255}
	}
}

func fromSpace(p clusters.Coordinates, space ColorSpace) RGB {
	var c colorful.Color
	switch space {
	case ColorSpaceHSL:
		c = colorful.Hsl(p[0]/255*360, p[1]/255, p[2]/255)
	case ColorSpaceLab:
		c = colorful.Lab(p[0]/100, p[1]/100, p[2]/100)
	default:
		c = colorful.Color{R: p[0] / 255, G: p[1] / 255, B: p[2] / 255}
	}
	r, g, b := c.Clamped().RGB255()
	return RGB{r, g, b}
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func packRGB(r, g, b uint32) uint32 { return r<<16 | g<<8 | b }

func unpackRGB(v uint32) colorful.Color {
	return colorful.Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
}

// ============ QUANTIZE ============

// Quantize reduces img to opt.QuantizeClusters colours with weighted
// k-means over the distinct image colours. The palette index of a cluster
// never changes once assigned; clusters that cannot be populated keep
// their seed colour and simply stay unused.
//
// With InitSeeded the result depends only on the image and opt.
func Quantize(ctx context.Context, img image.Image, opt Options, progress ProgressFunc) (*Quantized, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	k := opt.QuantizeClusters
	if k <= 0 {
		return nil, &OptionError{"quantizeClusters", k, "must be positive"}
	}
	if k > w*h {
		return nil, &OptionError{"quantizeClusters", k, fmt.Sprintf("exceeds pixel count %d", w*h)}
	}
	log := Logger().With("stage", StageQuantize.String())

	// Distinct colours in first-seen order, then sorted so the point order
	// does not depend on the scan.
	pix := make([]uint32, w*h)
	counts := make(map[uint32]int)
	for y := range h {
		if err := checkRow(ctx, y, w); err != nil {
			return nil, err
		}
		for x := range w {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			v := packRGB(r>>8, g>>8, b>>8)
			pix[labelOffset(w, x, y)] = v
			counts[v]++
		}
	}
	keys := make([]uint32, 0, len(counts))
	for v := range counts {
		keys = append(keys, v)
	}
	slices.Sort(keys)
	pointOf := make(map[uint32]int, len(keys))
	points := make([]colorPoint, len(keys))
	for i, v := range keys {
		pointOf[v] = i
		points[i] = colorPoint{coords: toSpace(unpackRGB(v), opt.ColorSpace), weight: float64(counts[v])}
	}
	log.Debug("distinct colours", "count", len(points), "clusters", k)

	centroids := initialCentroids(img, points, k, opt)

	assign := make([]int, len(points))
	dist := make([]float64, len(points))
	members := make([]int, k)
	q := &Quantized{}
	for iter := 1; iter <= opt.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		err := parallelRange(ctx, len(points), opt.workers(), func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				assign[i], dist[i] = nearestCentroid(points[i].coords, centroids)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		clear(members)
		for _, c := range assign {
			members[c]++
		}
		q.Empty = reseedEmpty(points, centroids, assign, dist, members)

		delta := updateCentroids(points, centroids, assign, members)
		q.Iterations, q.Delta = iter, delta
		log.Debug("k-means iteration", "iter", iter, "delta", delta, "empty", q.Empty)
		progress.report(max(100-min(delta, 100), 100*float64(iter)/float64(opt.MaxIterations)))
		if delta <= opt.ConvergenceDelta {
			break
		}
	}
	if q.Empty > 0 {
		log.Warn("clusters left empty", "empty", q.Empty, "clusters", k, "distinct", len(points))
	}

	q.Palette = make([]RGB, k)
	for c := range k {
		q.Palette[c] = fromSpace(centroids[c], opt.ColorSpace)
	}
	if len(opt.ColorRestrictions) > 0 {
		for c := range q.Palette {
			q.Palette[c] = closestRestriction(q.Palette[c], opt.ColorRestrictions)
		}
	}

	q.Grid = NewIndexGrid(w, h)
	err := parallelRange(ctx, h, opt.workers(), func(lo, hi int) error {
		for i := lo * w; i < hi*w; i++ {
			q.Grid.Idx[i] = assign[pointOf[pix[i]]]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("quantized", "clusters", k, "iterations", q.Iterations, "delta", q.Delta)
	return q, nil
}

// nearestCentroid returns the closest centroid (lowest index on ties) and
// its squared distance.
func nearestCentroid(p clusters.Coordinates, centroids []clusters.Coordinates) (int, float64) {
	best, bestD := 0, math.MaxFloat64
	for c, center := range centroids {
		if d := p.Distance(center); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

// reseedEmpty moves, for every empty cluster, the point farthest from its
// own centroid into that cluster. Points that are alone in their cluster
// are never taken. Returns the number of clusters still empty.
func reseedEmpty(points []colorPoint, centroids []clusters.Coordinates, assign []int, dist []float64, members []int) int {
	empty := 0
	for c := range centroids {
		if members[c] > 0 {
			continue
		}
		far, farD := -1, 0.0
		for i := range points {
			if members[assign[i]] > 1 && dist[i] > farD {
				far, farD = i, dist[i]
			}
		}
		if far < 0 {
			empty++
			continue
		}
		members[assign[far]]--
		assign[far] = c
		members[c] = 1
		dist[far] = 0
		centroids[c] = slices.Clone(points[far].coords)
	}
	return empty
}

// updateCentroids recomputes every populated centroid as the weighted mean
// of its points and returns the largest displacement.
func updateCentroids(points []colorPoint, centroids []clusters.Coordinates, assign []int, members []int) float64 {
	byCluster := make([][]int, len(centroids))
	for c, n := range members {
		byCluster[c] = make([]int, 0, n)
	}
	for i, c := range assign {
		byCluster[c] = append(byCluster[c], i)
	}
	delta := 0.0
	dims := len(centroids[0])
	vals := make([]float64, 0, len(points))
	weights := make([]float64, 0, len(points))
	for c, idx := range byCluster {
		if len(idx) == 0 {
			continue
		}
		next := make(clusters.Coordinates, dims)
		for d := range dims {
			vals, weights = vals[:0], weights[:0]
			for _, i := range idx {
				vals = append(vals, points[i].coords[d])
				weights = append(weights, points[i].weight)
			}
			next[d] = stat.Mean(vals, weights)
		}
		delta = max(delta, math.Sqrt(centroids[c].Distance(next)))
		centroids[c] = next
	}
	return delta
}

// initialCentroids returns k starting centroids. Seeds from the palette
// extractors (darkest first, so label numbers follow brightness) are topped
// up with seeded weighted draws when they come back short.
func initialCentroids(img image.Image, points []colorPoint, k int, opt Options) []clusters.Coordinates {
	var seeds []colorful.Color
	switch opt.InitMethod {
	case InitDominant:
		seeds = utils.ExtractPalette(img, k, utils.PaletteMethodDominantColor)
	case InitKMeans:
		seeds = utils.ExtractPalette(img, k, utils.PaletteMethodKMeans)
	}
	centroids := make([]clusters.Coordinates, 0, k)
	for _, c := range seeds {
		if len(centroids) == k {
			break
		}
		centroids = append(centroids, toSpace(c.Clamped(), opt.ColorSpace))
	}
	rng := rand.New(rand.NewPCG(uint64(opt.Seed), 0x9e3779b97f4a7c15))
	for _, i := range weightedSample(rng, points, k-len(centroids)) {
		centroids = append(centroids, slices.Clone(points[i].coords))
	}
	// Fewer distinct colours than clusters: duplicate seeds lose every tie
	// to the lower index and stay empty.
	for len(centroids) < k {
		centroids = append(centroids, slices.Clone(centroids[0]))
	}
	return centroids
}

// weightedSample draws up to n distinct point indices with probability
// proportional to their weight.
func weightedSample(rng *rand.Rand, points []colorPoint, n int) []int {
	n = min(n, len(points))
	if n <= 0 {
		return nil
	}
	taken := make([]bool, len(points))
	total := 0.0
	for _, p := range points {
		total += p.weight
	}
	out := make([]int, 0, n)
	for len(out) < n {
		r := rng.Float64() * total
		pick := -1
		for i, p := range points {
			if taken[i] {
				continue
			}
			pick = i
			if r < p.weight {
				break
			}
			r -= p.weight
		}
		taken[pick] = true
		total -= points[pick].weight
		out = append(out, pick)
	}
	return out
}

func closestRestriction(c RGB, allowed []RGB) RGB {
	best, bestD := allowed[0], math.MaxFloat64
	cc := c.colorful()
	for _, a := range allowed {
		if d := cc.DistanceLab(a.colorful()); d < bestD {
			best, bestD = a, d
		}
	}
	return best
}

// parallelRange splits [0,n) into disjoint chunks processed concurrently.
// It returns once every chunk is done.
func parallelRange(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	workers = max(1, min(workers, n))
	chunk := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return cancelled(err)
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
