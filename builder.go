package paintbynumbers

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/setanarut/paintbynumbers/utils"
)

// Builder runs the stencil pipeline over one input image.
type Builder struct {
	InputImage image.Image
	Options    Options
	events     *emitter
}

func NewBuilder(input image.Image, opt Options) *Builder {
	return &Builder{InputImage: input, Options: opt}
}

// Subscribe returns a channel receiving stage changes, throttled progress
// and one EventFacet per rendered facet. Events are dropped rather than
// delaying the pipeline when the channel is full. The channel is closed
// once Build returns, after a final EventDone or EventCancelled.
// Call it before Build.
func (b *Builder) Subscribe(buffer int) <-chan Event {
	b.events = newEmitter(buffer)
	return b.events.ch
}

// Result is the finished, immutable facet model.
type Result struct {
	Grid      *IndexGrid
	Palette   []RGB
	Facets    *FacetResult
	Stats     []PaletteEntry
	Excluded  []ExcludedFacet
	Documents []*Document // one per Options.OutputProfiles entry

	Iterations int
	multiplier float64
}

// Build runs every stage to completion. On cancellation it returns a nil
// Result and an error matching both ErrCancelled and ctx.Err().
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	res, err := b.build(ctx)
	switch {
	case err == nil:
		b.events.close(EventDone, "done")
	case errors.Is(err, ErrCancelled):
		Logger().Info("pipeline cancelled", "stage", b.stageName())
		b.events.close(EventCancelled, err.Error())
	default:
		b.events.close(EventDone, err.Error())
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) stageName() string {
	if b.events == nil {
		return ""
	}
	return b.events.stage.String()
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	opt := b.Options
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if b.InputImage == nil || b.InputImage.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	img := b.InputImage
	if opt.ResizeImageIfTooLarge {
		img = utils.ResizeToFit(img, opt.ResizeImageWidth, opt.ResizeImageHeight)
	}
	log := Logger()
	e := b.events
	progress := ProgressFunc(e.progress)

	if err := stageStart(ctx, e, StageQuantize); err != nil {
		return nil, err
	}
	q, err := Quantize(ctx, img, opt, progress)
	if err != nil {
		return nil, err
	}
	e.endStage()
	grid, palette := q.Grid, q.Palette

	var fr *FacetResult
	runs := max(opt.NarrowStripRepairRuns, 1)
	for run := range runs {
		if opt.NarrowStripRepairRuns > 0 {
			if err := stageStart(ctx, e, StageNarrowStrip); err != nil {
				return nil, err
			}
			n, err := RepairNarrowStrips(ctx, grid, palette, progress)
			if err != nil {
				return nil, err
			}
			e.endStage()
			log.Info("narrow strips repaired", "stage", StageNarrowStrip.String(), "run", run+1, "pixels", n)
		}

		if err := stageStart(ctx, e, StageFacetBuild); err != nil {
			return nil, err
		}
		if fr, err = BuildFacets(ctx, grid, progress); err != nil {
			return nil, err
		}
		e.endStage()

		if err := stageStart(ctx, e, StageReduce); err != nil {
			return nil, err
		}
		if _, err := ReduceFacets(ctx, fr, grid, palette, opt, progress); err != nil {
			return nil, err
		}
		e.endStage()
	}

	if err := stageStart(ctx, e, StageTrace); err != nil {
		return nil, err
	}
	excluded, err := BuildBorderPaths(ctx, fr, progress)
	if err != nil {
		return nil, err
	}
	e.endStage()
	if len(excluded) > 0 {
		lost := 0
		for _, x := range excluded {
			lost += x.Pixels
		}
		log.Warn("facets excluded from output", "facets", len(excluded), "pixels", lost, "total", fr.W*fr.H)
	}

	if err := stageStart(ctx, e, StageSegment); err != nil {
		return nil, err
	}
	if err := BuildBorderSegments(ctx, fr, opt.BorderHalvingRounds, opt.HalvingPolicy, progress); err != nil {
		return nil, err
	}
	e.endStage()

	if err := stageStart(ctx, e, StageLabel); err != nil {
		return nil, err
	}
	if err := BuildLabelBounds(ctx, fr, opt.MinLabelArea, progress); err != nil {
		return nil, err
	}
	e.endStage()

	if err := stageStart(ctx, e, StageRender); err != nil {
		return nil, err
	}
	res := &Result{
		Grid:       grid,
		Palette:    palette,
		Facets:     fr,
		Stats:      PaletteStats(grid, palette, opt.ColorAliases),
		Excluded:   excluded,
		Iterations: q.Iterations,
		multiplier: opt.OutputSizeMultiplier,
	}
	// Facet events come from the first profile's pass.
	var emit func(*FacetEvent)
	if e != nil {
		emit = e.facet
	}
	for i, p := range opt.OutputProfiles {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		res.Documents = append(res.Documents, Render(fr, palette, p, opt.multiplier(p), emit))
		emit = nil
		e.progress(100 * float64(i+1) / float64(len(opt.OutputProfiles)))
	}
	if emit != nil {
		Render(fr, palette, DefaultProfile(), opt.OutputSizeMultiplier, emit)
	}
	e.endStage()
	log.Info("stencil built", "facets", fr.Count(), "colours", len(palette), "profiles", len(res.Documents))
	return res, nil
}

func stageStart(ctx context.Context, e *emitter, s Stage) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	e.beginStage(s)
	return nil
}

// Document renders the model for a profile that was not part of the
// build options.
func (r *Result) Document(p OutputProfile) *Document {
	m := r.multiplier
	if p.SizeMultiplier > 0 {
		m = p.SizeMultiplier
	}
	return Render(r.Facets, r.Palette, p, m, nil)
}

// Reconstruct paints every pixel with its facet's palette colour.
func (r *Result) Reconstruct() *image.RGBA {
	w, h := r.Grid.W, r.Grid.H
	recon := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(r.Palette) == 0 {
		return recon
	}
	for y := range h {
		for x := range w {
			c := r.Palette[r.Grid.At(x, y)]
			recon.SetRGBA(x, y, color.RGBA{c[0], c[1], c[2], 255})
		}
	}
	return recon
}

// ColorLayers returns one layer per palette colour, opaque where the final
// grid uses that colour and transparent elsewhere.
func (r *Result) ColorLayers() []*image.NRGBA {
	numChannels := len(r.Palette)
	if numChannels == 0 || r.Grid.W == 0 || r.Grid.H == 0 {
		return nil
	}
	out := make([]*image.NRGBA, numChannels)
	w, h := r.Grid.W, r.Grid.H
	for ch := range numChannels {
		out[ch] = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	for y := range h {
		for x := range w {
			ch := r.Grid.At(x, y)
			c := r.Palette[ch]
			out[ch].SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255})
		}
	}
	return out
}
