package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"black", color.RGBA{0, 0, 0, 255}},
		{" Red ", color.RGBA{255, 0, 0, 255}},
		{"#000", color.RGBA{0, 0, 0, 255}},
		{"#0f8", color.RGBA{0, 255, 136, 255}},
		{"#102030", color.RGBA{16, 32, 48, 255}},
		{"rgb(1, 2,3)", color.RGBA{1, 2, 3, 255}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "rgb(1,2)", "rgb(1,2,300)", "#zzz", "notacolour"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestResizeToFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	out := ResizeToFit(img, 50, 50)
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())

	assert.Same(t, img, ResizeToFit(img, 400, 400))
	assert.Same(t, img, ResizeToFit(img, 0, 10))
}

func TestSortPaletteByBrightness(t *testing.T) {
	p := []colorful.Color{
		{R: 1, G: 1, B: 1},
		{R: 0, G: 0, B: 0},
		{R: 0, G: 1, B: 0},
		{R: 0, G: 0, B: 1},
	}
	SortPaletteByBrightness(p)
	assert.Equal(t, []colorful.Color{
		{R: 0, G: 0, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 0, G: 1, B: 0},
		{R: 1, G: 1, B: 1},
	}, p)
}

func TestSelectDiverseWeightedColors(t *testing.T) {
	cands := []WeightedColor{
		{Col: colorful.Color{R: 1, G: 0, B: 0}, Weight: 10},
		{Col: colorful.Color{R: 0.98, G: 0.02, B: 0}, Weight: 9},
		{Col: colorful.Color{R: 0, G: 0, B: 1}, Weight: 2},
	}
	got := SelectDiverseWeightedColors(cands, 2)
	require.Len(t, got, 2)
	assert.Equal(t, cands[0].Col, got[0], "heaviest first")
	assert.Equal(t, cands[2].Col, got[1], "then the farthest")

	assert.Len(t, SelectDiverseWeightedColors(cands, 10), 3)
	assert.Nil(t, SelectDiverseWeightedColors(nil, 3))
}

func TestExtractPalette(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := range 20 {
		for x := range 20 {
			c := color.RGBA{240, 240, 240, 255}
			if x < 10 {
				c = color.RGBA{20, 20, 20, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	for _, m := range []PaletteMethod{PaletteMethodDominantColor, PaletteMethodKMeans} {
		p := ExtractPalette(img, 2, m)
		require.NotEmpty(t, p, m.String())
		assert.LessOrEqual(t, len(p), 2)
		for i := 1; i < len(p); i++ {
			_, _, li := p[i-1].Hcl()
			_, _, lj := p[i].Hcl()
			assert.LessOrEqual(t, li, lj, "darkest first")
		}
	}
	assert.Nil(t, ExtractKMeansPalette(image.NewRGBA(image.Rectangle{}), 3))
}

func TestSaveAndReadImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(2, 1, color.RGBA{9, 8, 7, 255})
	path := filepath.Join(dir, "a.png")
	require.NoError(t, SaveImage(img, path))

	got, err := ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
	r, g, b, _ := got.At(2, 1).RGBA()
	assert.Equal(t, []uint32{9, 8, 7}, []uint32{r >> 8, g >> 8, b >> 8})

	_, err = ReadImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o644))
	_, err = ReadImage(junk)
	assert.Error(t, err)
}

func TestSaveLayersAndPalette(t *testing.T) {
	dir := t.TempDir()
	layers := []*image.NRGBA{
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
	}
	require.NoError(t, SaveLayers(layers, dir, "layer"))
	for _, name := range []string{"layer_00.png", "layer_01.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	swatch := filepath.Join(dir, "palette.png")
	require.NoError(t, SavePalette([]color.Color{color.Black, color.White}, 4, swatch))
	img, err := ReadImage(swatch)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	r, _, _, _ := img.At(6, 2).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	assert.Error(t, SavePalette(nil, 4, swatch))
}
