package paintbynumbers

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawGeometry(t *testing.T, grid *IndexGrid, k int) *FacetResult {
	t.Helper()
	opt := DefaultOptions()
	opt.MinFacetSize = 0
	opt.BorderHalvingRounds = 0
	return buildGeometry(t, grid, grayPalette(k), opt)
}

func TestRender_SinglePixel(t *testing.T) {
	fr := rawGeometry(t, NewIndexGrid(1, 1), 1)
	doc := Render(fr, grayPalette(1), DefaultProfile(), 2, nil)

	assert.Equal(t, 2.0, doc.Width)
	assert.Equal(t, 2.0, doc.Height)
	require.Len(t, doc.Paths, 1)
	p := doc.Paths[0]
	assert.Equal(t, "M 0 0 Q 2 0 2 1 Q 2 2 1 2 Q 0 2 0 1 Z", p.Data)
	require.Len(t, p.Commands, 5)
	assert.Equal(t, OpMoveTo, p.Commands[0].Op)
	assert.Equal(t, OpClosePath, p.Commands[4].Op)
	assert.Empty(t, p.Commands[4].Points)

	require.NotNil(t, p.Label)
	assert.Equal(t, Label{X: 1, Y: 1, Width: 2, Height: 2, Number: 0, FontSize: 50}, *p.Label)
}

func TestRender_HolesAreSubpaths(t *testing.T) {
	fr := rawGeometry(t, gridFromRows(
		"000",
		"010",
		"000",
	), 2)
	doc := Render(fr, grayPalette(2), DefaultProfile(), 1, nil)
	require.Len(t, doc.Paths, 2)

	moves := 0
	for _, c := range doc.Paths[0].Commands {
		if c.Op == OpMoveTo {
			moves++
		}
	}
	assert.Equal(t, 2, moves)
	assert.Equal(t, "rgb(255,255,255)", doc.Paths[1].Fill)
}

func TestRender_FillAndStroke(t *testing.T) {
	fr := rawGeometry(t, gridFromRows("01"), 2)
	palette := []RGB{{10, 20, 30}, {200, 100, 0}}

	tests := []struct {
		name         string
		profile      OutputProfile
		fill, stroke string
	}{
		{"filled and stroked", OutputProfile{Fill: true, Stroke: true}, "rgb(10,20,30)", "#000"},
		{"stroke colour", OutputProfile{Stroke: true, StrokeColor: "red"}, "none", "red"},
		{"fill only seals seams", OutputProfile{Fill: true}, "rgb(10,20,30)", "rgb(10,20,30)"},
		{"neither", OutputProfile{}, "none", "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Render(fr, palette, tt.profile, 1, nil)
			require.Len(t, doc.Paths, 2)
			assert.Equal(t, tt.fill, doc.Paths[0].Fill)
			assert.Equal(t, tt.stroke, doc.Paths[0].Stroke)
		})
	}
}

func TestRender_FontSizeByDigits(t *testing.T) {
	grid := NewIndexGrid(4, 2)
	for x := 2; x < 4; x++ {
		grid.Set(x, 0, 12)
		grid.Set(x, 1, 12)
	}
	fr := rawGeometry(t, grid, 13)
	doc := Render(fr, grayPalette(13), DefaultProfile(), 1, nil)
	require.Len(t, doc.Paths, 2)
	assert.Equal(t, 50.0, doc.Paths[0].Label.FontSize)
	assert.Equal(t, 12, doc.Paths[1].Label.Number)
	assert.Equal(t, 25.0, doc.Paths[1].Label.FontSize)
}

func TestRender_EventsCarryLabels(t *testing.T) {
	fr := rawGeometry(t, randomGrid(12, 9, 3, 1), 3)
	profile := DefaultProfile()
	profile.ShowLabels = false

	var events []*FacetEvent
	doc := Render(fr, grayPalette(3), profile, 3, func(fe *FacetEvent) { events = append(events, fe) })

	require.Len(t, events, len(doc.Paths))
	assert.Equal(t, fr.Count(), len(doc.Paths))
	for i, ev := range events {
		p := doc.Paths[i]
		assert.Equal(t, p.ID, ev.ID)
		assert.Equal(t, p.Data, ev.PathData)
		assert.Equal(t, p.Color, ev.Color)
		assert.Nil(t, p.Label)
		assert.NotNil(t, ev.Label)
	}
}

func TestRender_LabelScaled(t *testing.T) {
	fr := rawGeometry(t, NewIndexGrid(6, 4), 1)
	fr.Facets[0].LabelBounds = image.Rect(1, 1, 5, 3)
	doc := Render(fr, grayPalette(1), DefaultProfile(), 3, nil)
	l := doc.Paths[0].Label
	require.NotNil(t, l)
	assert.Equal(t, 9.0, l.X)
	assert.Equal(t, 6.0, l.Y)
	assert.Equal(t, 12.0, l.Width)
	assert.Equal(t, 6.0, l.Height)
}
