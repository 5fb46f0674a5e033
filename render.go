package paintbynumbers

import (
	"fmt"
	"strconv"
	"strings"
)

// PathOp is a drawing command.
type PathOp byte

const (
	OpMoveTo PathOp = 'M'
	// OpQuadTo draws a quadratic curve; Points holds the control point and
	// the end point.
	OpQuadTo    PathOp = 'Q'
	OpClosePath PathOp = 'Z'
)

// PathCommand is one drawing command in output coordinates.
type PathCommand struct {
	Op     PathOp
	Points []Point
}

// Label is a numeral placed in the middle of a facet's label rectangle.
// Coordinates are in output units.
type Label struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Number int     `json:"number"`
	// FontSize is the profile font size divided by the digit count of
	// Number, in the 100×100 label box.
	FontSize float64 `json:"fontSize"`
}

// FacetPath is one drawable facet.
type FacetPath struct {
	ID       int
	Color    RGB
	Commands []PathCommand
	// Data is Commands in SVG path syntax.
	Data string
	// Fill and Stroke are CSS colours, "none" when not painted.
	Fill   string
	Stroke string
	Label  *Label
}

// Document is the filetype-agnostic vector output of one profile.
type Document struct {
	Width, Height float64
	Profile       OutputProfile
	Paths         []FacetPath
}

// FacetEvent is the per-facet payload of EventFacet, usable to draw a
// facet before the whole document is done.
type FacetEvent struct {
	ID       int    `json:"facetId"`
	PathData string `json:"pathData"`
	Color    RGB    `json:"color"`
	Label    *Label `json:"label"`
}

// Render turns the facet model into a vector document for one profile.
// Every facet's outer loop and holes become subpaths of a single path
// (holes wind the other way). Each vertex after the first is used as the
// control point of a quadratic curve ending halfway to the next vertex,
// which rounds off the staircase corners while staying near the polygon.
// emit, when not nil, receives every facet as soon as it is built.
func Render(fr *FacetResult, palette []RGB, profile OutputProfile, multiplier float64, emit func(*FacetEvent)) *Document {
	doc := &Document{
		Width:   float64(fr.W) * multiplier,
		Height:  float64(fr.H) * multiplier,
		Profile: profile,
	}
	for _, f := range fr.Facets {
		if f == nil || len(f.BorderSegments) == 0 {
			continue
		}
		c := palette[f.Color]
		fp := FacetPath{ID: f.ID, Color: c, Fill: "none", Stroke: "none"}
		outer, holes := FacetOutline(f)
		fp.Commands = appendSmoothed(fp.Commands, outer, multiplier)
		for _, h := range holes {
			fp.Commands = appendSmoothed(fp.Commands, h, multiplier)
		}
		fp.Data = pathData(fp.Commands)

		if profile.Fill {
			fp.Fill = cssRGB(c)
		}
		switch {
		case profile.Stroke && profile.StrokeColor != "":
			fp.Stroke = profile.StrokeColor
		case profile.Stroke:
			fp.Stroke = "#000"
		case profile.Fill:
			fp.Stroke = fp.Fill
		}

		if f.HasLabel() {
			b := f.LabelBounds
			fp.Label = &Label{
				X:        (float64(b.Min.X) + float64(b.Dx())/2) * multiplier,
				Y:        (float64(b.Min.Y) + float64(b.Dy())/2) * multiplier,
				Width:    float64(b.Dx()) * multiplier,
				Height:   float64(b.Dy()) * multiplier,
				Number:   f.Color,
				FontSize: profile.FontSize / float64(len(strconv.Itoa(f.Color))),
			}
		}
		if emit != nil {
			emit(&FacetEvent{ID: fp.ID, PathData: fp.Data, Color: c, Label: fp.Label})
		}
		if !profile.ShowLabels {
			fp.Label = nil
		}
		doc.Paths = append(doc.Paths, fp)
	}
	return doc
}

func appendSmoothed(cmds []PathCommand, pts []Point, m float64) []PathCommand {
	n := len(pts)
	if n == 0 {
		return cmds
	}
	scale := func(p Point) Point { return Point{p.X * m, p.Y * m} }
	cmds = append(cmds, PathCommand{Op: OpMoveTo, Points: []Point{scale(pts[0])}})
	for i := 1; i < n; i++ {
		ctrl := pts[i]
		end := mid(pts[i], pts[(i+1)%n])
		cmds = append(cmds, PathCommand{Op: OpQuadTo, Points: []Point{scale(ctrl), scale(end)}})
	}
	return append(cmds, PathCommand{Op: OpClosePath})
}

func pathData(cmds []PathCommand) string {
	var sb strings.Builder
	for i, c := range cmds {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(byte(c.Op))
		for _, p := range c.Points {
			sb.WriteByte(' ')
			sb.WriteString(formatCoord(p.X))
			sb.WriteByte(' ')
			sb.WriteString(formatCoord(p.Y))
		}
	}
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cssRGB(c RGB) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c[0], c[1], c[2])
}
