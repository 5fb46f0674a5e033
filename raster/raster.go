// Package raster draws paint-by-numbers documents into bitmaps with gg and
// registers the png and jpg filetypes. Import it for its side effect:
//
//	import _ "github.com/setanarut/paintbynumbers/raster"
package raster

import (
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	pbn "github.com/setanarut/paintbynumbers"
	"github.com/setanarut/paintbynumbers/utils"
)

func init() {
	pbn.RegisterEncoder("png", pbn.EncoderFunc(EncodePNG))
	pbn.RegisterEncoder("jpg", pbn.EncoderFunc(EncodeJPEG))
}

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
	fontErr    error
)

func labelFont() (*text.FontSource, error) {
	fontOnce.Do(func() {
		fontSource, fontErr = text.NewFontSource(goregular.TTF)
	})
	return fontSource, fontErr
}

// Draw renders doc on a white background. The returned context must be
// closed by the caller.
func Draw(doc *pbn.Document) (*gg.Context, error) {
	w := max(1, int(math.Ceil(doc.Width)))
	h := max(1, int(math.Ceil(doc.Height)))
	dc := gg.NewContext(w, h)
	dc.ClearWithColor(gg.RGB(1, 1, 1))
	// Holes wind against their outer loop.
	dc.SetFillRule(gg.FillRuleNonZero)
	dc.SetLineWidth(1)

	for _, p := range doc.Paths {
		if p.Fill != "none" {
			tracePath(dc, p.Commands)
			dc.SetRGB(float64(p.Color[0])/255, float64(p.Color[1])/255, float64(p.Color[2])/255)
			if err := dc.Fill(); err != nil {
				dc.Close()
				return nil, fmt.Errorf("fill facet %d: %w", p.ID, err)
			}
		}
		if p.Stroke != "none" {
			c, err := utils.ParseColor(p.Stroke)
			if err != nil {
				dc.Close()
				return nil, err
			}
			tracePath(dc, p.Commands)
			dc.SetColor(c)
			if err := dc.Stroke(); err != nil {
				dc.Close()
				return nil, fmt.Errorf("stroke facet %d: %w", p.ID, err)
			}
		}
	}
	if err := drawLabels(dc, doc); err != nil {
		dc.Close()
		return nil, err
	}
	return dc, nil
}

func tracePath(dc *gg.Context, cmds []pbn.PathCommand) {
	for _, c := range cmds {
		switch c.Op {
		case pbn.OpMoveTo:
			dc.MoveTo(c.Points[0].X, c.Points[0].Y)
		case pbn.OpQuadTo:
			dc.QuadraticTo(c.Points[0].X, c.Points[0].Y, c.Points[1].X, c.Points[1].Y)
		case pbn.OpClosePath:
			dc.ClosePath()
		}
	}
}

// drawLabels mirrors the SVG label box: a 100×100 unit square fitted into
// the label rectangle, numeral centred.
func drawLabels(dc *gg.Context, doc *pbn.Document) error {
	var src *text.FontSource
	faces := make(map[float64]text.Face)
	fontColor := doc.Profile.FontColor
	if fontColor == "" {
		fontColor = "black"
	}
	for _, p := range doc.Paths {
		l := p.Label
		if l == nil {
			continue
		}
		if src == nil {
			var err error
			if src, err = labelFont(); err != nil {
				return fmt.Errorf("label font: %w", err)
			}
			c, err := utils.ParseColor(fontColor)
			if err != nil {
				return err
			}
			dc.SetColor(c)
		}
		size := math.Round(l.FontSize*min(l.Width, l.Height)/100*4) / 4
		if size < 1 {
			continue
		}
		face, ok := faces[size]
		if !ok {
			face = src.Face(size)
			faces[size] = face
		}
		dc.SetFont(face)
		dc.DrawStringAnchored(strconv.Itoa(l.Number), l.X, l.Y, 0.5, 0.5)
	}
	return nil
}

// EncodePNG rasterizes doc as PNG.
func EncodePNG(w io.Writer, doc *pbn.Document) error {
	dc, err := Draw(doc)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

// EncodeJPEG rasterizes doc as JPEG at the profile's quality (95 when
// unset).
func EncodeJPEG(w io.Writer, doc *pbn.Document) error {
	dc, err := Draw(doc)
	if err != nil {
		return err
	}
	defer dc.Close()
	q := doc.Profile.Quality
	if q <= 0 {
		q = 95
	}
	return dc.EncodeJPEG(w, q)
}

// Image rasterizes doc and returns its pixels.
func Image(doc *pbn.Document) (image.Image, error) {
	dc, err := Draw(doc)
	if err != nil {
		return nil, err
	}
	defer dc.Close()
	return dc.Image(), nil
}
