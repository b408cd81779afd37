package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/l2windows"
	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/oval/l5regions"
	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
	"github.com/roti-lab/auroral.report/internal/timeutil"
)

// Options configures a Pipeline. Only Params is required.
type Options struct {
	Params config.Params
	// Clusterer overrides the DBSCAN clusterer built from Params.
	Clusterer l4clusters.Clusterer
	Sinks     []ResultSink
	Metrics   *Metrics
	Clock     timeutil.Clock
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

const tracerName = "github.com/roti-lab/auroral.report/internal/oval/pipeline"

// Pipeline turns a day of samples and tracks into regions and crossings.
// It is safe to call Run from several goroutines.
type Pipeline struct {
	params    config.Params
	sector    l1samples.Sector
	window    l2windows.WindowSize
	step      l2windows.Step
	clusterer l4clusters.Clusterer
	sinks     []ResultSink
	metrics   *Metrics
	clock     timeutil.Clock
	tracer    trace.Tracer
}

// ClusterParams maps resolved configuration onto clustering parameters.
func ClusterParams(p config.Params) l4clusters.Params {
	return l4clusters.Params{
		Eps:             p.DBSCANEps,
		MinSamples:      p.DBSCANMinSamples,
		MinClusterSize:  p.MinClusterSize,
		MaxLatitude:     p.MaxLatitude,
		EquatorwardEdge: p.MinLat,
	}
}

// New validates opts.Params and builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline params: %w", err)
	}
	p := &Pipeline{
		params:    opts.Params,
		sector:    l1samples.Sector{MinLon: opts.Params.MinLon, MaxLon: opts.Params.MaxLon, MinLat: opts.Params.MinLat},
		window:    l2windows.WindowSize{Lat: opts.Params.WindowLat, Lon: opts.Params.WindowLon},
		step:      l2windows.Step{Lat: opts.Params.StepLat, Lon: opts.Params.StepLon},
		clusterer: opts.Clusterer,
		sinks:     opts.Sinks,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
	}
	if p.clusterer == nil {
		p.clusterer = l4clusters.NewDBSCANClusterer(ClusterParams(opts.Params))
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	p.tracer = tp.Tracer(tracerName)
	return p, nil
}

// Params returns the pipeline's configuration.
func (p *Pipeline) Params() config.Params { return p.params }

// ProcessEpoch runs gating, aggregation, contour extraction, clustering
// and region building for one epoch. Data insufficiency is recorded in
// the result's Err and leaves Region nil.
func (p *Pipeline) ProcessEpoch(t time.Time, points []l1samples.SamplePoint) EpochResult {
	begin := p.clock.Now()
	r := EpochResult{Time: t, Samples: len(points)}

	gated := l1samples.Gate(points, p.sector)
	r.Gated = len(gated)
	cells := l2windows.Segment(gated, p.window, p.step)
	r.Cells = len(cells)

	contour, err := l3contour.Extract(cells, p.params.BoundaryThreshold, p.params.GridPoints)
	if err != nil {
		r.Err = err
		r.Duration = p.clock.Since(begin)
		return r
	}
	r.Contour = contour
	r.ContourPoints = len(contour)

	rel, err := p.clusterer.Cluster(contour)
	if err != nil {
		r.Err = err
		r.Duration = p.clock.Since(begin)
		return r
	}
	r.Relation = rel
	r.Region = l5regions.Build(rel)
	r.Duration = p.clock.Since(begin)
	return r
}

// Run processes one day. Epoch slots come from the configured epoch step
// and samples are matched to them by exact timestamp. An epoch without
// enough data yields a nil region and never aborts the run; only context
// cancellation or a sink failure returns an error.
func (p *Pipeline) Run(ctx context.Context, day Day) (_ *DayResult, err error) {
	ctx, span := p.tracer.Start(ctx, "oval.run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	started := p.clock.Now()
	date := timeutil.StartOfDay(day.Date)
	slots := timeutil.EpochGrid(date, p.params.EpochStep)

	slotIndex := make(map[int64]int, len(slots))
	for i, s := range slots {
		slotIndex[s.UnixNano()] = i
	}
	bySlot := make([][]l1samples.SamplePoint, len(slots))
	offGrid := 0
	for _, e := range day.Epochs {
		i, ok := slotIndex[e.Time.UnixNano()]
		if !ok {
			offGrid += len(e.Points)
			continue
		}
		bySlot[i] = append(bySlot[i], e.Points...)
	}

	res := &DayResult{
		RunID:   uuid.NewString(),
		Date:    date,
		Params:  p.params,
		Epochs:  make([]EpochResult, len(slots)),
		OffGrid: offGrid,
		Started: started,
	}
	monitoring.Logf("[oval] run %s: %s, %d epochs, %d tracks, %d workers",
		res.RunID, date.Format(l1samples.DateLayout), len(slots), len(day.Tracks), p.params.Workers)
	if offGrid > 0 {
		monitoring.Logf("[oval] run %s: %d samples off the %s epoch grid ignored", res.RunID, offGrid, p.params.EpochStep)
	}
	span.SetAttributes(
		attribute.String("oval.run_id", res.RunID),
		attribute.String("oval.day", date.Format(l1samples.DateLayout)),
		attribute.Int("oval.epochs", len(slots)),
		attribute.Int("oval.tracks", len(day.Tracks)),
		attribute.Int("oval.off_grid", offGrid),
	)

	// Phase 1: one region per epoch. Each goroutine writes only its slot.
	ectx, espan := p.tracer.Start(ctx, "oval.epochs")
	g, gctx := errgroup.WithContext(ectx)
	g.SetLimit(p.params.Workers)
	for i, slot := range slots {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			er := p.ProcessEpoch(slot, bySlot[i])
			res.Epochs[i] = er
			p.metrics.observeEpoch(er)
			logEpoch(er)
			return nil
		})
	}
	werr := g.Wait()
	espan.SetAttributes(attribute.Int("oval.usable_epochs", res.UsableEpochs()))
	espan.End()
	if werr != nil {
		return nil, fmt.Errorf("epoch phase: %w", werr)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("epoch phase: %w", err)
	}

	// Phase 2: the region table is read-only from here on.
	_, cspan := p.tracer.Start(ctx, "oval.crossings")
	epochs := make([]l6crossings.Epoch, len(res.Epochs))
	for i, er := range res.Epochs {
		epochs[i] = l6crossings.Epoch{Time: er.Time, Region: er.Region}
	}
	res.Raw = l6crossings.Detect(epochs, day.Tracks, p.params.GroupingThreshold)
	res.Cleaned = make(l6crossings.Crossings)
	for _, fb := range res.Raw.Flybys() {
		cleaned := l6crossings.Clean(fb.Events, p.params.ShortGap)
		res.Flybys = append(res.Flybys, FlybyCrossings{
			Station:   fb.Station,
			Satellite: fb.Satellite,
			Flyby:     fb.Index,
			Raw:       fb.Events,
			Cleaned:   cleaned,
		})
		if res.Cleaned[fb.Station] == nil {
			res.Cleaned[fb.Station] = make(map[string][][]l6crossings.Event)
		}
		res.Cleaned[fb.Station][fb.Satellite] = append(res.Cleaned[fb.Station][fb.Satellite], cleaned)
		p.metrics.observeEvents(StageRaw, fb.Events)
		p.metrics.observeEvents(StageClean, cleaned)
	}
	cspan.SetAttributes(
		attribute.Int("oval.flybys", len(res.Flybys)),
		attribute.Int("oval.raw_events", res.Raw.EventCount()),
		attribute.Int("oval.cleaned_events", res.Cleaned.EventCount()),
	)
	cspan.End()
	res.Duration = p.clock.Since(started)

	monitoring.Logf("[oval] run %s: %d/%d usable epochs, %d raw and %d cleaned events in %d flybys (%s)",
		res.RunID, res.UsableEpochs(), len(res.Epochs), res.Raw.EventCount(), res.Cleaned.EventCount(),
		len(res.Flybys), res.Duration.Round(time.Millisecond))

	for _, s := range p.sinks {
		if err := p.writeSink(ctx, s, res); err != nil {
			monitoring.Logf("[oval] run %s: sink failed: %v", res.RunID, err)
			return res, fmt.Errorf("write day result: %w", err)
		}
	}
	return res, nil
}

func (p *Pipeline) writeSink(ctx context.Context, s ResultSink, res *DayResult) error {
	ctx, span := p.tracer.Start(ctx, "oval.sink",
		trace.WithAttributes(attribute.String("oval.sink", fmt.Sprintf("%T", s))))
	defer span.End()
	err := s.WriteDay(ctx, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func logEpoch(r EpochResult) {
	if r.Err != nil {
		reason := "skipped"
		if errors.Is(r.Err, l3contour.ErrTooFewPoints) && r.Samples == 0 {
			reason = "empty"
		}
		monitoring.Debugf("epoch %s %s: %v (samples=%d cells=%d contour=%d)",
			r.Time.Format("15:04"), reason, r.Err, r.Samples, r.Cells, r.ContourPoints)
		return
	}
	monitoring.Debugf("epoch %s: %s usable=%t area=%.1f (samples=%d cells=%d contour=%d) in %s",
		r.Time.Format("15:04"), r.Kind(), r.Usable(), r.Region.Area(), r.Samples, r.Cells, r.ContourPoints, r.Duration)
}
