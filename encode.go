package paintbynumbers

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Encoder serializes a Document to one filetype.
type Encoder interface {
	Encode(w io.Writer, doc *Document) error
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(w io.Writer, doc *Document) error

func (f EncoderFunc) Encode(w io.Writer, doc *Document) error { return f(w, doc) }

var (
	encodersMu sync.RWMutex
	encoders   = map[string]Encoder{
		"svg":  EncoderFunc(encodeSVG),
		"svgz": EncoderFunc(encodeSVGZ),
	}
)

// RegisterEncoder makes an encoder available for a filetype, replacing any
// previous one. Bitmap encoders live outside this package and register
// themselves, see the raster package.
func RegisterEncoder(filetype string, e Encoder) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	encoders[normalizeFiletype(filetype)] = e
}

// LookupEncoder returns the encoder for a filetype. An empty filetype
// means svg.
func LookupEncoder(filetype string) (Encoder, bool) {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	e, ok := encoders[normalizeFiletype(filetype)]
	return e, ok
}

func normalizeFiletype(ft string) string {
	ft = strings.ToLower(strings.TrimPrefix(ft, "."))
	switch ft {
	case "":
		return "svg"
	case "jpeg":
		return "jpg"
	}
	return ft
}

// Encode writes doc in its profile's filetype.
func (doc *Document) Encode(w io.Writer) error {
	e, ok := LookupEncoder(doc.Profile.Filetype)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFiletype, doc.Profile.Filetype)
	}
	return e.Encode(w, doc)
}

func encodeSVG(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<?xml version=\"1.0\" standalone=\"no\"?>\n")
	fmt.Fprintf(bw, "<svg width=\"%s\" height=\"%s\" xmlns=\"http://www.w3.org/2000/svg\">\n",
		formatCoord(doc.Width), formatCoord(doc.Height))
	fontColor := html.EscapeString(doc.Profile.FontColor)
	if fontColor == "" {
		fontColor = "black"
	}
	for _, p := range doc.Paths {
		fmt.Fprintf(bw, "<path data-facetId=\"%d\" d=\"%s\" style=\"fill: %s;", p.ID, p.Data, html.EscapeString(p.Fill))
		if p.Stroke != "none" {
			fmt.Fprintf(bw, " stroke: %s; stroke-width:1px", html.EscapeString(p.Stroke))
		}
		bw.WriteString("\"></path>\n")
		if l := p.Label; l != nil {
			fmt.Fprintf(bw, "<g class=\"label\" transform=\"translate(%s,%s)\">", formatCoord(l.X-l.Width/2), formatCoord(l.Y-l.Height/2))
			fmt.Fprintf(bw, "<svg width=\"%s\" height=\"%s\" overflow=\"visible\" viewBox=\"-50 -50 100 100\" preserveAspectRatio=\"xMidYMid meet\">",
				formatCoord(l.Width), formatCoord(l.Height))
			fmt.Fprintf(bw, "<text font-family=\"Tahoma\" font-size=\"%s\" dominant-baseline=\"middle\" text-anchor=\"middle\" fill=\"%s\">%d</text>",
				formatCoord(l.FontSize), fontColor, l.Number)
			bw.WriteString("</svg></g>\n")
		}
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func encodeSVGZ(w io.Writer, doc *Document) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	if err := encodeSVG(zw, doc); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
