package monitor

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
	"github.com/roti-lab/auroral.report/internal/security"
)

// TimelineFileName returns the timeline file name for a run.
func TimelineFileName(runID string) string {
	return "timeline_" + security.SanitizeFilename(runID) + ".html"
}

func rowLabel(station, satellite string) string { return station + "/" + satellite }

// timelineSeries groups one stage's events into per-type scatter data.
// Rows are ordered as the flybys are.
func timelineSeries(flybys []l6crossings.Flyby) (rows []string, entered, exited []opts.ScatterData) {
	seen := make(map[string]bool)
	for _, f := range flybys {
		label := rowLabel(f.Station, f.Satellite)
		if !seen[label] {
			seen[label] = true
			rows = append(rows, label)
		}
		for _, ev := range f.Events {
			d := opts.ScatterData{
				Name:  fmt.Sprintf("%s flyby %d %s", label, f.Index, ev),
				Value: []interface{}{ev.Time.UnixMilli(), label},
			}
			if ev.Type == l6crossings.EventEntered {
				entered = append(entered, d)
			} else {
				exited = append(exited, d)
			}
		}
	}
	return rows, entered, exited
}

// Timeline builds the crossing timeline chart for a run: cleaned entered
// and exited events per station/satellite row, with the raw events behind
// them.
func (r *Reporter) Timeline(res *pipeline.DayResult) *charts.Scatter {
	cleanFlybys := res.Cleaned.Flybys()
	rows, entered, exited := timelineSeries(cleanFlybys)
	rawRows, rawEntered, rawExited := timelineSeries(res.Raw.Flybys())
	for _, label := range rawRows {
		if !slices.Contains(rows, label) {
			rows = append(rows, label)
		}
	}
	raw := append(rawEntered, rawExited...)

	start := res.Date.UTC()
	height := 200 + 40*len(rows)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Auroral oval crossings",
			Width:      "1200px",
			Height:     fmt.Sprintf("%dpx", height),
			AssetsHost: r.assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Oval crossings " + start.Format("2006-01-02"),
			Subtitle: fmt.Sprintf("run=%s usable=%d/%d raw=%d clean=%d",
				res.RunID, res.UsableEpochs(), len(res.Epochs), res.Raw.EventCount(), res.Cleaned.EventCount()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "time",
			Name: "UTC",
			Min:  start.UnixMilli(),
			Max:  start.Add(24 * time.Hour).UnixMilli(),
		}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rows}),
	)
	scatter.AddSeries("raw", raw, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries(l6crossings.EventEntered.String(), entered, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	scatter.AddSeries(l6crossings.EventExited.String(), exited, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	return scatter
}

// WriteTimeline renders the run's timeline into its day directory and
// returns the path written.
func (r *Reporter) WriteTimeline(res *pipeline.DayResult) (string, error) {
	if res == nil {
		return "", fmt.Errorf("nil day result")
	}
	path, err := r.dayPath(res.Date, TimelineFileName(res.RunID))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.Timeline(res).Render(&buf); err != nil {
		return "", fmt.Errorf("render timeline: %w", err)
	}
	if err := r.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
