package paintbynumbers

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Stage identifies a pipeline step.
type Stage int

const (
	StageQuantize Stage = iota
	StageNarrowStrip
	StageFacetBuild
	StageReduce
	StageTrace
	StageSegment
	StageLabel
	StageRender
)

var stageNames = [...]string{
	StageQuantize:    "quantize",
	StageNarrowStrip: "narrow-strip-repair",
	StageFacetBuild:  "facet-build",
	StageReduce:      "facet-reduce",
	StageTrace:       "border-trace",
	StageSegment:     "border-segment",
	StageLabel:       "label-placement",
	StageRender:      "render",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// EventKind distinguishes events on a subscription channel.
type EventKind int

const (
	EventStage EventKind = iota
	EventProgress
	EventFacet
	EventDone
	EventCancelled
)

// Event is a best-effort notification. Dropping any of them never changes
// the pipeline output.
type Event struct {
	Kind    EventKind
	Stage   Stage
	Percent float64
	Facet   *FacetEvent
	Message string
}

// cancelCheckInterval is how many pixels or facets an inner loop handles
// between context checks.
const cancelCheckInterval = 4096

const progressInterval = 50 * time.Millisecond

// emitter fans pipeline notifications out to an optional channel without
// ever blocking. A nil emitter is valid and discards everything.
type emitter struct {
	ch      chan Event
	dropped atomic.Int64
	stage   Stage
	last    float64
	every   *rate.Sometimes
}

func newEmitter(buffer int) *emitter {
	return &emitter{ch: make(chan Event, max(buffer, 1))}
}

func (e *emitter) send(ev Event) {
	if e == nil || e.ch == nil {
		return
	}
	select {
	case e.ch <- ev:
	default:
		if e.dropped.Add(1) == 1 {
			Logger().Warn("event consumer too slow, dropping events")
		}
	}
}

func (e *emitter) beginStage(s Stage) {
	if e == nil {
		return
	}
	e.stage = s
	e.last = 0
	e.every = &rate.Sometimes{Interval: progressInterval}
	e.send(Event{Kind: EventStage, Stage: s, Message: s.String()})
	e.send(Event{Kind: EventProgress, Stage: s, Percent: 0})
}

// progress reports a throttled, monotonic percentage for the current stage.
func (e *emitter) progress(pct float64) {
	if e == nil || e.every == nil {
		return
	}
	pct = min(100, max(pct, e.last))
	if pct == e.last {
		return
	}
	e.every.Do(func() {
		e.last = pct
		e.send(Event{Kind: EventProgress, Stage: e.stage, Percent: pct})
	})
}

func (e *emitter) endStage() {
	if e == nil {
		return
	}
	e.last = 100
	e.send(Event{Kind: EventProgress, Stage: e.stage, Percent: 100})
}

func (e *emitter) facet(fe *FacetEvent) {
	if e == nil {
		return
	}
	e.send(Event{Kind: EventFacet, Stage: StageRender, Facet: fe})
}

func (e *emitter) close(kind EventKind, msg string) {
	if e == nil || e.ch == nil {
		return
	}
	// The terminal event is never dropped: evict the oldest one instead.
	ev := Event{Kind: kind, Stage: e.stage, Message: msg}
	for {
		select {
		case e.ch <- ev:
			close(e.ch)
			e.ch = nil
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

// checkEvery returns ctx.Err() on every n-th call, nil otherwise.
func checkEvery(ctx context.Context, i int) error {
	if i%cancelCheckInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	return nil
}

// checkRow is checkEvery for row loops over a w pixel wide grid: it checks
// whenever row y starts a new block of cancelCheckInterval pixels.
func checkRow(ctx context.Context, y, w int) error {
	if y > 0 && (y*w)/cancelCheckInterval == ((y-1)*w)/cancelCheckInterval {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	return nil
}
