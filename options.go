package paintbynumbers

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"
)

// ColorSpace selects the space k-means distances and means are computed in.
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceHSL
	ColorSpaceLab
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceHSL:
		return "hsl"
	case ColorSpaceLab:
		return "lab"
	default:
		return "rgb"
	}
}

func (c ColorSpace) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ColorSpace) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "rgb", "":
		*c = ColorSpaceRGB
	case "hsl":
		*c = ColorSpaceHSL
	case "lab":
		*c = ColorSpaceLab
	default:
		return &OptionError{Field: "colorSpace", Value: string(b), Reason: "want rgb, hsl or lab"}
	}
	return nil
}

// InitMethod selects how the initial k-means centroids are chosen.
type InitMethod int

const (
	// InitSeeded draws centroids from the image colours with a seeded
	// weighted sampler. The only method with deterministic output.
	InitSeeded InitMethod = iota
	// InitDominant starts from dominantcolor candidates spread out in Lab.
	InitDominant
	// InitKMeans starts from a muesli/kmeans partition of a subsample.
	InitKMeans
)

func (m InitMethod) String() string {
	switch m {
	case InitDominant:
		return "dominant"
	case InitKMeans:
		return "kmeans"
	default:
		return "seeded"
	}
}

func (m InitMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *InitMethod) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "seeded", "":
		*m = InitSeeded
	case "dominant", "dominantcolor":
		*m = InitDominant
	case "kmeans":
		*m = InitKMeans
	default:
		return &OptionError{Field: "initMethod", Value: string(b), Reason: "want seeded, dominant or kmeans"}
	}
	return nil
}

// MergePolicy picks the neighbour a violating facet is merged into.
type MergePolicy int

const (
	// MergeLongestBorder merges into the neighbour sharing the most pixel
	// edges. Ties go to the lowest facet id.
	MergeLongestBorder MergePolicy = iota
	// MergeClosestColor merges into the neighbour with the closest palette
	// colour (Lab). Ties fall back to the longest border, then lowest id.
	MergeClosestColor
)

func (p MergePolicy) String() string {
	if p == MergeClosestColor {
		return "closest-color"
	}
	return "longest-border"
}

func (p MergePolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *MergePolicy) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "longest-border", "":
		*p = MergeLongestBorder
	case "closest-color", "closest-colour":
		*p = MergeClosestColor
	default:
		return &OptionError{Field: "mergePolicy", Value: string(b), Reason: "want longest-border or closest-color"}
	}
	return nil
}

// HalvingPolicy is the subdivision rule applied per border halving round.
type HalvingPolicy int

const (
	// HalvingMidpoint inserts the midpoint of every edge, doubling density.
	HalvingMidpoint HalvingPolicy = iota
	// HalvingHaar replaces each pair of consecutive points by its average,
	// halving density. Segment endpoints stay pinned.
	HalvingHaar
)

func (p HalvingPolicy) String() string {
	if p == HalvingHaar {
		return "haar"
	}
	return "midpoint"
}

func (p HalvingPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *HalvingPolicy) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "midpoint", "":
		*p = HalvingMidpoint
	case "haar":
		*p = HalvingHaar
	default:
		return &OptionError{Field: "halvingPolicy", Value: string(b), Reason: "want midpoint or haar"}
	}
	return nil
}

// RGB is an 8-bit colour triple, encoded as [r,g,b] in settings files.
type RGB [3]uint8

// MaxBorderHalvingRounds bounds the subdivision depth.
const MaxBorderHalvingRounds = 8

// OutputProfile describes one rendered artifact.
type OutputProfile struct {
	Name string `json:"name" yaml:"name"`
	// Fill facets with their palette colour.
	Fill bool `json:"fill" yaml:"fill"`
	// Stroke facet outlines. Without a stroke, filled facets are stroked
	// in their own colour so neighbours leave no seams.
	Stroke      bool   `json:"stroke" yaml:"stroke"`
	StrokeColor string `json:"strokeColor,omitempty" yaml:"strokeColor,omitempty"`
	ShowLabels  bool   `json:"showLabels" yaml:"showLabels"`
	FontSize    float64 `json:"fontSize" yaml:"fontSize"`
	FontColor   string  `json:"fontColor" yaml:"fontColor"`
	// Filetype is the encoder name: svg and svgz are built in, png and jpg
	// come from the raster package.
	Filetype string `json:"filetype" yaml:"filetype"`
	// Quality for lossy raster filetypes (1-100).
	Quality int `json:"quality,omitempty" yaml:"quality,omitempty"`
	// SizeMultiplier overrides Options.OutputSizeMultiplier when > 0.
	SizeMultiplier float64 `json:"sizeMultiplier,omitempty" yaml:"sizeMultiplier,omitempty"`
}

// DefaultProfile returns the filled, bordered, labelled SVG profile.
func DefaultProfile() OutputProfile {
	return OutputProfile{
		Name:       "default",
		Fill:       true,
		Stroke:     true,
		ShowLabels: true,
		FontSize:   50,
		FontColor:  "black",
		Filetype:   "svg",
		Quality:    95,
	}
}

type Options struct {
	// Number of palette colours (k-means clusters).
	// Must not exceed the pixel count.
	QuantizeClusters int `json:"quantizeClusters" yaml:"quantizeClusters"`
	// k-means stops once no centroid moves further than this (in the units
	// of ColorSpace). Lower => more iterations, slightly tighter palette.
	ConvergenceDelta float64 `json:"convergenceDelta" yaml:"convergenceDelta"`
	// Hard cap on k-means iterations.
	MaxIterations int         `json:"maxIterations" yaml:"maxIterations"`
	ColorSpace    ColorSpace  `json:"colorSpace" yaml:"colorSpace"`
	Seed          int64       `json:"randomSeed" yaml:"randomSeed"`
	InitMethod    InitMethod  `json:"initMethod" yaml:"initMethod"`
	// If set, every converged centroid snaps to the closest of these.
	ColorRestrictions []RGB `json:"colorRestrictions,omitempty" yaml:"colorRestrictions,omitempty"`
	// Human names for palette colours, reported in the palette statistics.
	ColorAliases map[string]RGB `json:"colorAliases,omitempty" yaml:"colorAliases,omitempty"`

	// Facets smaller than this (in pixels) are merged into a neighbour.
	// Ideal start: 20 for ~1MP inputs. Too low => unpaintable specks.
	MinFacetSize int `json:"minFacetSize" yaml:"minFacetSize"`
	// Process undersized facets largest first instead of smallest first.
	ReduceLargeToSmallFirst bool        `json:"reduceLargeToSmallFirst" yaml:"reduceLargeToSmallFirst"`
	MaxFacets               int         `json:"maxFacets" yaml:"maxFacets"`
	MergePolicy             MergePolicy `json:"mergePolicy" yaml:"mergePolicy"`

	// Border subdivision rounds, 0..MaxBorderHalvingRounds.
	// 0 keeps the raw traced staircase.
	BorderHalvingRounds int           `json:"borderHalvingRounds" yaml:"borderHalvingRounds"`
	HalvingPolicy       HalvingPolicy `json:"halvingPolicy" yaml:"halvingPolicy"`

	// Number of repair→build→reduce passes. 0 builds and reduces once.
	NarrowStripRepairRuns int `json:"narrowStripRepairRuns" yaml:"narrowStripRepairRuns"`

	// Facets whose largest inscribed rectangle is smaller than this (in
	// pixels) get no label rectangle.
	MinLabelArea int `json:"minLabelArea" yaml:"minLabelArea"`

	OutputSizeMultiplier float64         `json:"outputSizeMultiplier" yaml:"outputSizeMultiplier"`
	OutputProfiles       []OutputProfile `json:"outputProfiles" yaml:"outputProfiles"`

	// Partitions used by the parallel sub-phases (pixel assignment).
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	ResizeImageIfTooLarge bool `json:"resizeImageIfTooLarge" yaml:"resizeImageIfTooLarge"`
	ResizeImageWidth      int  `json:"resizeImageWidth" yaml:"resizeImageWidth"`
	ResizeImageHeight     int  `json:"resizeImageHeight" yaml:"resizeImageHeight"`
}

func DefaultOptions() Options {
	return Options{
		QuantizeClusters:      16,
		ConvergenceDelta:      1.0,
		MaxIterations:         100,
		ColorSpace:            ColorSpaceRGB,
		InitMethod:            InitSeeded,
		MinFacetSize:          20,
		MaxFacets:             math.MaxInt32,
		MergePolicy:           MergeLongestBorder,
		BorderHalvingRounds:   2,
		HalvingPolicy:         HalvingMidpoint,
		NarrowStripRepairRuns: 3,
		MinLabelArea:          1,
		OutputSizeMultiplier:  3,
		OutputProfiles:        []OutputProfile{DefaultProfile()},
		Workers:               runtime.GOMAXPROCS(0),
		ResizeImageWidth:      1024,
		ResizeImageHeight:     1024,
	}
}

// OptionsFromSize scales the facet size threshold with the image area so
// small and large inputs end up with comparable facet densities.
func OptionsFromSize(size image.Point) Options {
	opt := DefaultOptions()
	if size.X <= 0 || size.Y <= 0 {
		return opt
	}
	pixels := size.X * size.Y
	opt.MinFacetSize = max(4, min(200, pixels/25000))
	if pixels <= 256*256 {
		opt.BorderHalvingRounds = 1
	}
	return opt
}

// Validate rejects configurations the pipeline cannot run with.
func (o Options) Validate() error {
	switch {
	case o.QuantizeClusters <= 0:
		return &OptionError{"quantizeClusters", o.QuantizeClusters, "must be positive"}
	case o.ConvergenceDelta < 0 || math.IsNaN(o.ConvergenceDelta):
		return &OptionError{"convergenceDelta", o.ConvergenceDelta, "must not be negative"}
	case o.MaxIterations <= 0:
		return &OptionError{"maxIterations", o.MaxIterations, "must be positive"}
	case o.ColorSpace < ColorSpaceRGB || o.ColorSpace > ColorSpaceLab:
		return &OptionError{"colorSpace", int(o.ColorSpace), "unknown colour space"}
	case o.InitMethod < InitSeeded || o.InitMethod > InitKMeans:
		return &OptionError{"initMethod", int(o.InitMethod), "unknown init method"}
	case o.MinFacetSize < 0:
		return &OptionError{"minFacetSize", o.MinFacetSize, "must not be negative"}
	case o.MaxFacets < 1:
		return &OptionError{"maxFacets", o.MaxFacets, "must be at least 1"}
	case o.MergePolicy < MergeLongestBorder || o.MergePolicy > MergeClosestColor:
		return &OptionError{"mergePolicy", int(o.MergePolicy), "unknown merge policy"}
	case o.BorderHalvingRounds < 0 || o.BorderHalvingRounds > MaxBorderHalvingRounds:
		return &OptionError{"borderHalvingRounds", o.BorderHalvingRounds, fmt.Sprintf("must be within [0,%d]", MaxBorderHalvingRounds)}
	case o.HalvingPolicy < HalvingMidpoint || o.HalvingPolicy > HalvingHaar:
		return &OptionError{"halvingPolicy", int(o.HalvingPolicy), "unknown halving policy"}
	case o.NarrowStripRepairRuns < 0:
		return &OptionError{"narrowStripRepairRuns", o.NarrowStripRepairRuns, "must not be negative"}
	case o.MinLabelArea < 0:
		return &OptionError{"minLabelArea", o.MinLabelArea, "must not be negative"}
	case !(o.OutputSizeMultiplier > 0):
		return &OptionError{"outputSizeMultiplier", o.OutputSizeMultiplier, "must be positive"}
	case o.Workers < 0:
		return &OptionError{"workers", o.Workers, "must not be negative"}
	case o.ResizeImageIfTooLarge && (o.ResizeImageWidth <= 0 || o.ResizeImageHeight <= 0):
		return &OptionError{"resizeImageWidth/Height", fmt.Sprintf("%dx%d", o.ResizeImageWidth, o.ResizeImageHeight), "must be positive when resizing"}
	}
	for i, p := range o.OutputProfiles {
		field := fmt.Sprintf("outputProfiles[%d]", i)
		if p.FontSize < 0 {
			return &OptionError{field + ".fontSize", p.FontSize, "must not be negative"}
		}
		if p.SizeMultiplier < 0 {
			return &OptionError{field + ".sizeMultiplier", p.SizeMultiplier, "must not be negative"}
		}
		if p.Quality < 0 || p.Quality > 100 {
			return &OptionError{field + ".quality", p.Quality, "must be within [0,100]"}
		}
		if _, ok := LookupEncoder(p.Filetype); !ok {
			return &OptionError{field + ".filetype", p.Filetype, ErrUnknownFiletype.Error()}
		}
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 1
	}
	return o.Workers
}

// multiplier returns the coordinate scale for a profile.
func (o Options) multiplier(p OutputProfile) float64 {
	if p.SizeMultiplier > 0 {
		return p.SizeMultiplier
	}
	return o.OutputSizeMultiplier
}
