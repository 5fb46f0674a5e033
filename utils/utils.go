package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

type WeightedColor struct {
	Col    colorful.Color
	Weight float64
}

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortStableFunc(palette, func(a, b colorful.Color) int {
		ri, gi, bi := a.LinearRgb()
		rj, gj, bj := b.LinearRgb()
		yi := 0.2126*ri + 0.7152*gi + 0.0722*bi
		yj := 0.2126*rj + 0.7152*gj + 0.0722*bj
		if yi < yj {
			return -1
		}
		if yi > yj {
			return 1
		}
		return 0
	})
}

// ExtractPalette returns up to k seed colours, darkest first. An empty
// k-means result falls back to dominantcolor.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	var p []colorful.Color
	switch method {
	case PaletteMethodKMeans:
		p = ExtractKMeansPalette(img, k)
		if len(p) == 0 {
			Logger().Warn("kmeans returned an empty palette, falling back to dominantcolor")
			p = ExtractDominantPalette(img, k)
		}
	default:
		p = ExtractDominantPalette(img, k)
	}
	SortPaletteByBrightness(p)
	return p
}

func ExtractDominantPalette(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}

	nCandidates := max(24, k*8)
	candidates := dominantcolor.FindWeight(img, nCandidates)
	if len(candidates) == 0 {
		candidates = append(candidates, dominantcolor.Color{
			RGBA:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
			Weight: 1.0,
		})
	}

	weighted := make([]WeightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, WeightedColor{Col: col.Clamped(), Weight: max(c.Weight, 1e-6)})
	}
	return SelectDiverseWeightedColors(weighted, k)
}

// SelectDiverseWeightedColors greedily picks k candidates: the heaviest
// first, then each time the one farthest (Lab) from everything picked so
// far, favouring heavier candidates.
func SelectDiverseWeightedColors(cands []WeightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, 0, len(cands))
	maxW := 0.0
	for _, c := range cands {
		col := c.Col.Clamped()
		l, a, b := col.Lab()
		w := max(c.Weight, 1e-6)
		maxW = max(maxW, w)
		items = append(items, item{col: col, lab: [3]float64{l, a, b}, w: w})
	}
	k = min(k, len(items))

	selectedIdx := make([]int, 0, k)
	selected := make([]bool, len(items))

	bestSeed := 0
	for i := 1; i < len(items); i++ {
		if items[i].w > items[bestSeed].w {
			bestSeed = i
		}
	}
	selectedIdx = append(selectedIdx, bestSeed)
	selected[bestSeed] = true

	for len(selectedIdx) < k {
		bestIdx := -1
		bestScore := -1.0
		for i := range items {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range selectedIdx {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(items[i].w/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		selectedIdx = append(selectedIdx, bestIdx)
	}

	out := make([]colorful.Color, 0, len(selectedIdx))
	for _, idx := range selectedIdx {
		out = append(out, items[idx].col)
	}
	return out
}

// ExtractKMeansPalette partitions a subsample of img with muesli/kmeans.
// kmeans seeds itself randomly, so repeated calls may differ.
func ExtractKMeansPalette(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample to keep kmeans tractable on large images.
	maxSamples := 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*4, k+2), len(dataset))
	cc, err := kmeans.New().Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	weighted := make([]WeightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, WeightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return SelectDiverseWeightedColors(weighted, k)
}

// ReadImage decodes png, jpeg, bmp, tiff and webp files.
func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ResizeToFit scales img down, keeping its aspect ratio, until it fits in
// maxW×maxH. Images that already fit are returned as is.
func ResizeToFit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return img
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ParseColor understands SVG colour names, #rgb/#rrggbb and rgb(r,g,b).
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(s[4:len(s)-1], ",")
		if len(parts) != 3 {
			return color.RGBA{}, fmt.Errorf("bad colour %q", s)
		}
		var v [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.RGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
			}
			v[i] = uint8(n)
		}
		return color.RGBA{v[0], v[1], v[2], 255}, nil
	}
	if strings.HasPrefix(s, "#") && len(s) == 4 {
		s = "#" + string([]byte{s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}, nil
}

// SaveLayers writes images as <dir>/<prefix>_NN.png.
func SaveLayers[T image.Image](images []T, dir, prefix string) error {
	for i := range images {
		name := filepath.Join(dir, fmt.Sprintf("%s_%02d.png", prefix, i))
		if err := SaveImage(images[i], name); err != nil {
			return err
		}
	}
	return nil
}

func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SavePalette writes a swatch strip, one tileSize square per colour, in
// palette order.
func SavePalette(palette []color.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return errors.New("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, c := range palette {
		r := image.Rect(i*tileSize, 0, (i+1)*tileSize, tileSize)
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return SaveImage(img, filename)
}
