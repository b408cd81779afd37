package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/roti-lab/auroral.report/internal/fsutil"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
	"github.com/roti-lab/auroral.report/internal/security"
)

// DefaultTolerance is the Douglas-Peucker tolerance, in degrees, applied to
// polygon rings before plotting.
const DefaultTolerance = 0.05

// ErrNothingToPlot is returned by PlotEpoch for an epoch without contour
// points or polygons.
var ErrNothingToPlot = errors.New("epoch has nothing to plot")

// Options configures a Reporter.
type Options struct {
	// FS defaults to fsutil.OSFileSystem.
	FS fsutil.FileSystem
	// Dir is the output root. One subdirectory per day is created below it.
	Dir string
	// Tolerance simplifies rings before plotting. Zero uses
	// DefaultTolerance; a negative value disables simplification.
	Tolerance float64
	// EpochStride makes WriteDay plot every n-th usable epoch. Zero plots
	// none and only the timeline is written.
	EpochStride int
	// AssetsHost overrides where the timeline page loads echarts from.
	AssetsHost string
}

// Reporter writes epoch plots and crossing timelines.
type Reporter struct {
	fs         fsutil.FileSystem
	dir        string
	tolerance  float64
	stride     int
	assetsHost string
}

// New creates a reporter. The output directory is created if needed.
func New(opts Options) (*Reporter, error) {
	if opts.Dir == "" {
		return nil, errors.New("monitor output directory is required")
	}
	if opts.EpochStride < 0 {
		return nil, fmt.Errorf("epoch stride must be non-negative, got %d", opts.EpochStride)
	}
	r := &Reporter{
		fs:         opts.FS,
		dir:        filepath.Clean(opts.Dir),
		tolerance:  opts.Tolerance,
		stride:     opts.EpochStride,
		assetsHost: opts.AssetsHost,
	}
	if r.fs == nil {
		r.fs = fsutil.OSFileSystem{}
	}
	if r.tolerance == 0 {
		r.tolerance = DefaultTolerance
	}
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return r, nil
}

// Dir returns the output root.
func (r *Reporter) Dir() string { return r.dir }

// dayPath returns the validated path of name inside the day's directory,
// creating the directory.
func (r *Reporter) dayPath(day time.Time, name string) (string, error) {
	dir := filepath.Join(r.dir, day.UTC().Format(l1samples.DateLayout))
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, r.dir); err != nil {
		return "", err
	}
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create day dir: %w", err)
	}
	return path, nil
}

// WriteDay implements pipeline.ResultSink.
func (r *Reporter) WriteDay(ctx context.Context, res *pipeline.DayResult) error {
	if _, err := r.WriteTimeline(res); err != nil {
		return err
	}
	if r.stride == 0 {
		return nil
	}

	plotted, usable := 0, 0
	for _, e := range res.Epochs {
		if !e.Usable() {
			continue
		}
		usable++
		if (usable-1)%r.stride != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.PlotEpoch(e); err != nil {
			return fmt.Errorf("plot epoch %s: %w", e.Time.Format(time.RFC3339), err)
		}
		plotted++
	}
	monitoring.Logf("monitor: run %s wrote %d epoch plots to %s", res.RunID, plotted, r.dir)
	return nil
}

var _ pipeline.ResultSink = (*Reporter)(nil)
