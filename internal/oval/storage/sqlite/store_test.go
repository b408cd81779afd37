package sqlite

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/oval/l5regions"
	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
	"github.com/roti-lab/auroral.report/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

var testDay = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "oval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func squareRegion() *l5regions.Region {
	poly := orb.Polygon{orb.Ring{{-100, 55}, {-80, 55}, {-80, 65}, {-100, 65}, {-100, 55}}}
	return &l5regions.Region{
		Kind:     l4clusters.RelationSingle,
		Polygons: []orb.Polygon{poly},
		Roles:    []l4clusters.Role{l4clusters.RoleSingle},
		Interior: orb.MultiPolygon{poly},
	}
}

func at(m int) time.Time { return testDay.Add(time.Duration(m) * time.Minute) }

func sampleResult(runID string, started time.Time) *pipeline.DayResult {
	raw := []l6crossings.Event{
		{Time: at(60), Type: l6crossings.EventEntered},
		{Time: at(65), Type: l6crossings.EventExited},
		{Time: at(70), Type: l6crossings.EventEntered},
		{Time: at(150), Type: l6crossings.EventExited},
	}
	cleaned := l6crossings.Clean(raw, 15*time.Minute)
	late := []l6crossings.Event{{Time: at(900), Type: l6crossings.EventEntered}}

	return &pipeline.DayResult{
		RunID:  runID,
		Date:   testDay,
		Params: config.DefaultParams(),
		Epochs: []pipeline.EpochResult{
			{Time: at(0), Err: l3contour.ErrTooFewPoints},
			{
				Time: at(5), Samples: 2806, Gated: 2806, Cells: 1500, ContourPoints: 120,
				Relation: &l4clusters.Relation{Kind: l4clusters.RelationSingle},
				Region:   squareRegion(),
			},
			{
				Time: at(10), Samples: 10,
				Relation: &l4clusters.Relation{Kind: l4clusters.RelationLeftRight},
				Region:   &l5regions.Region{Kind: l4clusters.RelationLeftRight},
			},
		},
		Flybys: []pipeline.FlybyCrossings{
			{Station: "kiru", Satellite: "G07", Flyby: 0, Raw: raw, Cleaned: cleaned},
			{Station: "kiru", Satellite: "G07", Flyby: 1, Raw: late, Cleaned: late},
			{Station: "abis", Satellite: "R02", Flyby: 0, Raw: late, Cleaned: late},
		},
		OffGrid:  3,
		Started:  started,
		Duration: 1500 * time.Millisecond,
	}
}

// =============================================================================
// Schema
// =============================================================================

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"oval_runs", "oval_epochs", "oval_crossings", "oval_flybys"} {
		var n int
		err := s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	// Reopening an up-to-date database is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.MigrateDown())
	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='oval_runs'`).Scan(&n))
	assert.Zero(t, n)
}

// =============================================================================
// Round trip
// =============================================================================

func TestWriteDay_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	res := sampleResult("run-1", testDay.Add(30*time.Hour))
	require.NoError(t, s.WriteDay(ctx, res))

	run, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, testDay, run.Day)
	assert.Equal(t, 3, run.Epochs)
	assert.Equal(t, 1, run.UsableEpochs)
	assert.Equal(t, 3, run.OffGrid)
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.True(t, run.CreatedAt.Equal(res.Started))
	assert.Equal(t, config.DefaultParams(), run.Params)

	epochs, err := s.Epochs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, epochs, 3)

	assert.Equal(t, l4clusters.RelationNone, epochs[0].Kind)
	assert.Nil(t, epochs[0].Region)
	assert.Equal(t, l3contour.ErrTooFewPoints.Error(), epochs[0].Err)

	assert.True(t, epochs[1].Time.Equal(at(5)))
	assert.Equal(t, l4clusters.RelationSingle, epochs[1].Kind)
	assert.True(t, epochs[1].Usable)
	assert.InDelta(t, 200, epochs[1].Area, 1e-9)
	assert.Equal(t, 120, epochs[1].ContourPoints)
	require.NotNil(t, epochs[1].Region)
	assert.True(t, epochs[1].Region.Contains(-90, 60))
	assert.Equal(t, squareRegion().Polygons, epochs[1].Region.Polygons)

	assert.Equal(t, l4clusters.RelationLeftRight, epochs[2].Kind)
	assert.False(t, epochs[2].Usable)
	require.NotNil(t, epochs[2].Region)
	assert.False(t, epochs[2].Region.Usable())

	clean, err := s.Crossings(ctx, "run-1", pipeline.StageClean)
	require.NoError(t, err)
	want := l6crossings.Crossings{
		"kiru": {"G07": {res.Flybys[0].Cleaned, res.Flybys[1].Cleaned}},
		"abis": {"R02": {res.Flybys[2].Cleaned}},
	}
	if diff := cmp.Diff(want, clean); diff != "" {
		t.Errorf("clean crossings mismatch (-want +got):\n%s", diff)
	}

	raw, err := s.Crossings(ctx, "run-1", pipeline.StageRaw)
	require.NoError(t, err)
	assert.Equal(t, 6, raw.EventCount())
	assert.Len(t, raw["kiru"]["G07"][0], 4)
}

func TestCrossings_KeepsEmptyFlybys(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	late := []l6crossings.Event{{Time: at(900), Type: l6crossings.EventEntered}}
	res := sampleResult("gaps", testDay)
	res.Flybys = []pipeline.FlybyCrossings{
		{Station: "kiru", Satellite: "G07", Flyby: 0, Raw: late},
		{Station: "kiru", Satellite: "G07", Flyby: 1, Raw: late, Cleaned: late},
		{Station: "kiru", Satellite: "G07", Flyby: 2, Raw: late},
		{Station: "abis", Satellite: "R02", Flyby: 0},
	}
	require.NoError(t, s.WriteDay(ctx, res))

	clean, err := s.Crossings(ctx, "gaps", pipeline.StageClean)
	require.NoError(t, err)
	want := l6crossings.Crossings{
		"kiru": {"G07": {{}, late, {}}},
		"abis": {"R02": {{}}},
	}
	if diff := cmp.Diff(want, clean); diff != "" {
		t.Errorf("clean crossings mismatch (-want +got):\n%s", diff)
	}

	raw, err := s.Crossings(ctx, "gaps", pipeline.StageRaw)
	require.NoError(t, err)
	require.Len(t, raw["kiru"]["G07"], 3)
	assert.Equal(t, late, raw["kiru"]["G07"][2])
	assert.Equal(t, [][]l6crossings.Event{{}}, raw["abis"]["R02"])

	var rawCount, cleanCount int
	require.NoError(t, s.DB().QueryRow(
		`SELECT raw_count, clean_count FROM oval_flybys WHERE run_id = ? AND station = 'kiru' AND flyby = 1`, "gaps",
	).Scan(&rawCount, &cleanCount))
	assert.Equal(t, 1, rawCount)
	assert.Equal(t, 1, cleanCount)
}

func TestWriteDay_DuplicateRunFails(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteDay(ctx, sampleResult("dup", testDay)))
	assert.Error(t, s.WriteDay(ctx, sampleResult("dup", testDay)))
	assert.Error(t, s.WriteDay(ctx, nil))

	// The failed write left nothing behind.
	runs, err := s.ListRuns(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListAndDeleteRuns(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteDay(ctx, sampleResult("older", testDay.Add(time.Hour))))
	require.NoError(t, s.WriteDay(ctx, sampleResult("newer", testDay.Add(2*time.Hour))))
	other := sampleResult("other-day", testDay.Add(3*time.Hour))
	other.Date = testDay.AddDate(0, 0, 1)
	require.NoError(t, s.WriteDay(ctx, other))

	all, err := s.ListRuns(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other-day", all[0].RunID)

	day, err := s.ListRuns(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, "newer", day[0].RunID)
	assert.Equal(t, "older", day[1].RunID)

	require.NoError(t, s.DeleteRun(ctx, "older"))
	assert.ErrorIs(t, s.DeleteRun(ctx, "older"), ErrRunNotFound)
	_, err = s.Run(ctx, "older")
	assert.ErrorIs(t, err, ErrRunNotFound)

	// Epochs and crossings go with the run.
	epochs, err := s.Epochs(ctx, "older")
	require.NoError(t, err)
	assert.Empty(t, epochs)
	c, err := s.Crossings(ctx, "older", pipeline.StageRaw)
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestStore_AsPipelineSink(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	p := testParams()
	pl, err := pipeline.New(pipeline.Options{Params: p, Sinks: []pipeline.ResultSink{s}})
	require.NoError(t, err)

	samples := testutil.BandSamples(-120, -60, 40, 85, 1)
	day := pipeline.Day{Date: testDay}
	day.Epochs = append(day.Epochs,
		epochSamples(at(360), samples), epochSamples(at(365), samples), epochSamples(at(370), samples))
	day.Tracks = []l6crossings.Track{
		testutil.MeridianTrack("kiru", "G07", at(360), 5*time.Minute, 3, -90, 45, 60),
	}

	res, err := pl.Run(context.Background(), day)
	require.NoError(t, err)

	run, err := s.Run(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 288, run.Epochs)
	assert.Equal(t, 3, run.UsableEpochs)
	assert.Equal(t, p, run.Params)

	clean, err := s.Crossings(context.Background(), res.RunID, pipeline.StageClean)
	require.NoError(t, err)
	if diff := cmp.Diff(res.Cleaned, clean); diff != "" {
		t.Errorf("stored crossings differ (-run +stored):\n%s", diff)
	}
}

// =============================================================================
// Admin routes
// =============================================================================

func TestAdminRoutes(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.WriteDay(context.Background(), sampleResult("run-1", testDay)))
	require.NoError(t, s.AttachAdminRoutes(http.NewServeMux()))

	t.Run("runs", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleRuns), http.MethodGet, "/debug/oval/runs?day=2024-03-05")
		testutil.AssertStatus(t, w, http.StatusOK)
		var runs []RunSummary
		testutil.DecodeJSON(t, w, &runs)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0].RunID)
	})
	t.Run("runs empty day", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleRuns), http.MethodGet, "/debug/oval/runs?day=2020-01-01")
		testutil.AssertStatus(t, w, http.StatusOK)
		assert.JSONEq(t, "[]", w.Body.String())
	})
	t.Run("runs bad day", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleRuns), http.MethodGet, "/debug/oval/runs?day=yesterday")
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
	t.Run("runs wrong method", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleRuns), http.MethodPost, "/debug/oval/runs")
		testutil.AssertStatus(t, w, http.StatusMethodNotAllowed)
	})
	t.Run("crossings", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleCrossings), http.MethodGet, "/debug/oval/crossings?run=run-1")
		testutil.AssertStatus(t, w, http.StatusOK)
		var got l6crossings.Crossings
		testutil.DecodeJSON(t, w, &got)
		assert.Equal(t, 4, got.EventCount())
		assert.Equal(t, l6crossings.EventEntered, got["kiru"]["G07"][0][0].Type)
		assert.Len(t, got["kiru"]["G07"], 2)
	})
	t.Run("crossings unknown run", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleCrossings), http.MethodGet, "/debug/oval/crossings?run=nope")
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
	t.Run("crossings bad stage", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleCrossings), http.MethodGet, "/debug/oval/crossings?run=run-1&stage=x")
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
	t.Run("backup", func(t *testing.T) {
		w := testutil.Serve(http.HandlerFunc(s.handleBackup), http.MethodGet, "/debug/backup")
		testutil.AssertStatus(t, w, http.StatusOK)
		assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
		// gzip magic
		require.Greater(t, w.Body.Len(), 2)
		assert.Equal(t, []byte{0x1f, 0x8b}, w.Body.Bytes()[:2])
	})
}

func TestRetryOnBusy(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	other := errors.New("constraint failed")
	assert.ErrorIs(t, retryOnBusy(func() error { calls++; return other }), other)
	assert.Equal(t, 1, calls)
}
