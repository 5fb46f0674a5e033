package paintbynumbers

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Options)
		field string
	}{
		{"no clusters", func(o *Options) { o.QuantizeClusters = 0 }, "quantizeClusters"},
		{"negative delta", func(o *Options) { o.ConvergenceDelta = -1 }, "convergenceDelta"},
		{"no iterations", func(o *Options) { o.MaxIterations = 0 }, "maxIterations"},
		{"colour space", func(o *Options) { o.ColorSpace = 9 }, "colorSpace"},
		{"negative facet size", func(o *Options) { o.MinFacetSize = -1 }, "minFacetSize"},
		{"max facets", func(o *Options) { o.MaxFacets = 0 }, "maxFacets"},
		{"halving rounds", func(o *Options) { o.BorderHalvingRounds = MaxBorderHalvingRounds + 1 }, "borderHalvingRounds"},
		{"repair runs", func(o *Options) { o.NarrowStripRepairRuns = -2 }, "narrowStripRepairRuns"},
		{"multiplier", func(o *Options) { o.OutputSizeMultiplier = 0 }, "outputSizeMultiplier"},
		{"resize box", func(o *Options) { o.ResizeImageIfTooLarge, o.ResizeImageWidth = true, 0 }, "resizeImageWidth/Height"},
		{"filetype", func(o *Options) { o.OutputProfiles[0].Filetype = "gif" }, "outputProfiles[0].filetype"},
		{"font size", func(o *Options) { o.OutputProfiles[0].FontSize = -3 }, "outputProfiles[0].fontSize"},
		{"quality", func(o *Options) { o.OutputProfiles[0].Quality = 101 }, "outputProfiles[0].quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := DefaultOptions()
			tt.edit(&opt)
			err := opt.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOptions)
			var oe *OptionError
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tt.field, oe.Field)
		})
	}
}

func TestOptionsFromSize(t *testing.T) {
	small := OptionsFromSize(image.Pt(100, 100))
	assert.Equal(t, 4, small.MinFacetSize)
	assert.Equal(t, 1, small.BorderHalvingRounds)

	large := OptionsFromSize(image.Pt(2000, 1500))
	assert.Equal(t, 120, large.MinFacetSize)
	assert.Equal(t, DefaultOptions().BorderHalvingRounds, large.BorderHalvingRounds)

	assert.Equal(t, 200, OptionsFromSize(image.Pt(10000, 10000)).MinFacetSize)
	assert.Equal(t, DefaultOptions().MinFacetSize, OptionsFromSize(image.Point{}).MinFacetSize)
}

func TestEnumText(t *testing.T) {
	var cs ColorSpace
	require.NoError(t, cs.UnmarshalText([]byte("LAB")))
	assert.Equal(t, ColorSpaceLab, cs)
	b, err := ColorSpaceHSL.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "hsl", string(b))
	assert.ErrorIs(t, cs.UnmarshalText([]byte("cmyk")), ErrInvalidOptions)

	var mp MergePolicy
	require.NoError(t, mp.UnmarshalText([]byte("closest-colour")))
	assert.Equal(t, MergeClosestColor, mp)

	var hp HalvingPolicy
	require.NoError(t, hp.UnmarshalText([]byte("haar")))
	assert.Equal(t, "haar", hp.String())

	var im InitMethod
	require.NoError(t, im.UnmarshalText([]byte("dominantcolor")))
	assert.Equal(t, InitDominant, im)
	assert.Error(t, im.UnmarshalText([]byte("random")))
}

func TestProfileMultiplier(t *testing.T) {
	opt := DefaultOptions()
	p := DefaultProfile()
	assert.Equal(t, opt.OutputSizeMultiplier, opt.multiplier(p))
	p.SizeMultiplier = 1.5
	assert.Equal(t, 1.5, opt.multiplier(p))
}
