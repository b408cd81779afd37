package pipeline

import (
	"context"
	"time"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/oval/l5regions"
	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
)

// Day is the input of one run.
type Day struct {
	Date   time.Time
	Epochs []l1samples.EpochSamples
	Tracks []l6crossings.Track
}

// DayFromBundle adapts a decoded input bundle.
func DayFromBundle(b *l1samples.Bundle) Day {
	if b == nil {
		return Day{}
	}
	return Day{Date: b.Date, Epochs: b.Epochs, Tracks: b.Tracks}
}

// EpochResult is the outcome of phase 1 for one epoch slot.
type EpochResult struct {
	Time          time.Time
	Samples       int
	Gated         int
	Cells         int
	ContourPoints int
	Contour       []l3contour.Point
	Relation      *l4clusters.Relation
	Region        *l5regions.Region
	// Err records why the epoch has no region. It never stops a run.
	Err      error
	Duration time.Duration
}

// Kind returns the relation kind, RelationNone when there is no relation.
func (r EpochResult) Kind() l4clusters.RelationKind {
	if r.Relation == nil {
		return l4clusters.RelationNone
	}
	return r.Relation.Kind
}

// Usable reports whether the epoch's region takes part in crossing tests.
func (r EpochResult) Usable() bool { return r.Region.Usable() }

// FlybyCrossings holds the raw and cleaned events of one flyby group.
type FlybyCrossings struct {
	Station   string
	Satellite string
	Flyby     int
	Raw       []l6crossings.Event
	Cleaned   []l6crossings.Event
}

// DayResult is the outcome of a run.
type DayResult struct {
	RunID    string
	Date     time.Time
	Params   config.Params
	Epochs   []EpochResult
	Raw      l6crossings.Crossings
	Cleaned  l6crossings.Crossings
	Flybys   []FlybyCrossings
	OffGrid  int // samples whose timestamp matched no epoch slot
	Started  time.Time
	Duration time.Duration
}

// UsableEpochs counts epochs with a usable region.
func (d *DayResult) UsableEpochs() int {
	n := 0
	for _, e := range d.Epochs {
		if e.Usable() {
			n++
		}
	}
	return n
}

// ResultSink receives finished day results.
type ResultSink interface {
	WriteDay(ctx context.Context, res *DayResult) error
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(ctx context.Context, res *DayResult) error

// WriteDay calls f.
func (f SinkFunc) WriteDay(ctx context.Context, res *DayResult) error { return f(ctx, res) }
