package paintbynumbers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument(t *testing.T, profile OutputProfile) *Document {
	t.Helper()
	fr := rawGeometry(t, gridFromRows("0011", "0011"), 2)
	return Render(fr, []RGB{{255, 0, 0}, {0, 0, 255}}, profile, 2, nil)
}

func TestEncodeSVG(t *testing.T) {
	doc := sampleDocument(t, DefaultProfile())
	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<svg width="8" height="4" xmlns="http://www.w3.org/2000/svg">`)
	assert.Equal(t, 2, strings.Count(out, "<path "))
	assert.Contains(t, out, `data-facetId="0"`)
	assert.Contains(t, out, `data-facetId="1"`)
	assert.Contains(t, out, "fill: rgb(255,0,0); stroke: #000; stroke-width:1px")
	assert.Contains(t, out, `viewBox="-50 -50 100 100"`)
	assert.Contains(t, out, `font-family="Tahoma"`)
	assert.Contains(t, out, ">1</text>")
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
}

func TestEncodeSVG_NoLabelsNoStroke(t *testing.T) {
	profile := DefaultProfile()
	profile.ShowLabels = false
	profile.Stroke = false
	profile.Fill = false
	doc := sampleDocument(t, profile)
	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf))

	assert.NotContains(t, buf.String(), "<text")
	assert.NotContains(t, buf.String(), "stroke:")
	assert.Contains(t, buf.String(), "fill: none;")
}

func TestEncodeSVGZ(t *testing.T) {
	profile := DefaultProfile()
	var plain bytes.Buffer
	require.NoError(t, sampleDocument(t, profile).Encode(&plain))

	profile.Filetype = "svgz"
	var packed bytes.Buffer
	require.NoError(t, sampleDocument(t, profile).Encode(&packed))

	zr, err := gzip.NewReader(&packed)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, plain.String(), string(got))
}

func TestLookupEncoder(t *testing.T) {
	for _, ft := range []string{"svg", "SVG", ".svg", "", "svgz"} {
		_, ok := LookupEncoder(ft)
		assert.True(t, ok, ft)
	}
	_, ok := LookupEncoder("bmp")
	assert.False(t, ok)

	assert.Equal(t, "jpg", normalizeFiletype(".JPEG"))
	assert.Equal(t, "svg", normalizeFiletype(""))
}

func TestEncode_UnknownFiletype(t *testing.T) {
	profile := DefaultProfile()
	profile.Filetype = "gif"
	doc := sampleDocument(t, profile)
	err := doc.Encode(io.Discard)
	assert.ErrorIs(t, err, ErrUnknownFiletype)
}

func TestRegisterEncoder(t *testing.T) {
	RegisterEncoder(".Count", EncoderFunc(func(w io.Writer, doc *Document) error {
		_, err := io.WriteString(w, strings.Repeat("x", len(doc.Paths)))
		return err
	}))
	profile := DefaultProfile()
	profile.Filetype = "count"
	opt := DefaultOptions()
	opt.OutputProfiles = []OutputProfile{profile}
	require.NoError(t, opt.Validate())

	var buf bytes.Buffer
	require.NoError(t, sampleDocument(t, profile).Encode(&buf))
	assert.Equal(t, "xx", buf.String())
}
