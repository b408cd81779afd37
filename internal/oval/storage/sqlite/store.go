package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/oval/l5regions"
	"github.com/roti-lab/auroral.report/internal/oval/l6crossings"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("oval run not found")

// Store persists pipeline results in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps the per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database path given to Open.
func (s *Store) Path() string { return s.path }

// retryOnBusy retries f while SQLite reports lock contention.
func retryOnBusy(f func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if err = f(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// WriteDay saves a run, its epochs and its raw and cleaned crossing events
// in one transaction.
func (s *Store) WriteDay(ctx context.Context, res *pipeline.DayResult) error {
	if res == nil {
		return errors.New("nil day result")
	}
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	err = retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertRun(ctx, tx, res, string(params)); err != nil {
			return err
		}
		if err := insertEpochs(ctx, tx, res); err != nil {
			return err
		}
		if err := insertCrossings(ctx, tx, res); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	monitoring.Debugf("stored run %s (%d epochs, %d flybys)", res.RunID, len(res.Epochs), len(res.Flybys))
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, res *pipeline.DayResult, params string) error {
	created := res.Started
	if created.IsZero() {
		created = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO oval_runs (
			run_id, day, created_at, duration_ms, epoch_count, usable_epochs, off_grid, params_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Date.UTC().Format(l1samples.DateLayout), created.UnixNano(),
		res.Duration.Milliseconds(), len(res.Epochs), res.UsableEpochs(), res.OffGrid, params,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertEpochs(ctx context.Context, tx *sql.Tx, res *pipeline.DayResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO oval_epochs (
			run_id, epoch_unix_nanos, relation, samples, gated, cells, contour_points,
			usable, area, region_geojson, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare epoch insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range res.Epochs {
		var region, errText interface{}
		if e.Region != nil {
			data, err := e.Region.MarshalGeoJSON()
			if err != nil {
				return fmt.Errorf("encode region %s: %w", e.Time.Format(time.RFC3339), err)
			}
			region = string(data)
		}
		if e.Err != nil {
			errText = e.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			res.RunID, e.Time.UnixNano(), e.Kind().String(), e.Samples, e.Gated, e.Cells, e.ContourPoints,
			e.Usable(), e.Region.Area(), region, errText,
		); err != nil {
			return fmt.Errorf("insert epoch %s: %w", e.Time.Format(time.RFC3339), err)
		}
	}
	return nil
}

func insertCrossings(ctx context.Context, tx *sql.Tx, res *pipeline.DayResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO oval_crossings (
			run_id, station, satellite, flyby, stage, seq, event_unix_nanos, event_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare crossing insert: %w", err)
	}
	defer stmt.Close()

	flybyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO oval_flybys (
			run_id, station, satellite, flyby, raw_count, clean_count
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare flyby insert: %w", err)
	}
	defer flybyStmt.Close()

	for _, fb := range res.Flybys {
		if _, err := flybyStmt.ExecContext(ctx,
			res.RunID, fb.Station, fb.Satellite, fb.Flyby, len(fb.Raw), len(fb.Cleaned),
		); err != nil {
			return fmt.Errorf("insert flyby %s/%s #%d: %w", fb.Station, fb.Satellite, fb.Flyby, err)
		}
		for _, stage := range []struct {
			name   string
			events []l6crossings.Event
		}{{pipeline.StageRaw, fb.Raw}, {pipeline.StageClean, fb.Cleaned}} {
			for seq, ev := range stage.events {
				if _, err := stmt.ExecContext(ctx,
					res.RunID, fb.Station, fb.Satellite, fb.Flyby, stage.name, seq,
					ev.Time.UnixNano(), ev.Type.String(),
				); err != nil {
					return fmt.Errorf("insert crossing %s/%s: %w", fb.Station, fb.Satellite, err)
				}
			}
		}
	}
	return nil
}

// RunSummary is one stored run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Day          time.Time     `json:"day"`
	CreatedAt    time.Time     `json:"created_at"`
	Duration     time.Duration `json:"duration"`
	Epochs       int           `json:"epochs"`
	UsableEpochs int           `json:"usable_epochs"`
	OffGrid      int           `json:"off_grid"`
	Params       config.Params `json:"params"`
}

const runColumns = `run_id, day, created_at, duration_ms, epoch_count, usable_epochs, off_grid, params_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunSummary, error) {
	var (
		r          RunSummary
		day        string
		created    int64
		durationMs int64
		params     sql.NullString
	)
	if err := row.Scan(&r.RunID, &day, &created, &durationMs, &r.Epochs, &r.UsableEpochs, &r.OffGrid, &params); err != nil {
		return nil, err
	}
	d, err := time.Parse(l1samples.DateLayout, day)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad day %q: %w", r.RunID, day, err)
	}
	r.Day = d
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Duration = time.Duration(durationMs) * time.Millisecond
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &r.Params); err != nil {
			return nil, fmt.Errorf("run %s: bad params: %w", r.RunID, err)
		}
	}
	return &r, nil
}

// Run returns one run by id.
func (s *Store) Run(ctx context.Context, runID string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM oval_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns runs newest first. A zero day lists every run.
func (s *Store) ListRuns(ctx context.Context, day time.Time) ([]*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM oval_runs`
	var args []interface{}
	if !day.IsZero() {
		query += ` WHERE day = ?`
		args = append(args, day.UTC().Format(l1samples.DateLayout))
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its epochs and crossings.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM oval_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrRunNotFound
		}
		return nil
	})
}

// EpochRecord is one stored epoch.
type EpochRecord struct {
	Time          time.Time
	Kind          l4clusters.RelationKind
	Samples       int
	Gated         int
	Cells         int
	ContourPoints int
	Usable        bool
	Area          float64
	Region        *l5regions.Region
	Err           string
}

// Epochs returns a run's epochs in time order with their regions decoded.
func (s *Store) Epochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch_unix_nanos, relation, samples, gated, cells, contour_points,
		       usable, area, region_geojson, error
		FROM oval_epochs
		WHERE run_id = ?
		ORDER BY epoch_unix_nanos`, runID)
	if err != nil {
		return nil, fmt.Errorf("query epochs: %w", err)
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var (
			e        EpochRecord
			ns       int64
			relation string
			region   sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(&ns, &relation, &e.Samples, &e.Gated, &e.Cells, &e.ContourPoints,
			&e.Usable, &e.Area, &region, &errText); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		e.Time = time.Unix(0, ns).UTC()
		e.Kind = l4clusters.ParseRelationKind(relation)
		e.Err = errText.String
		if region.Valid {
			r, err := l5regions.ParseGeoJSON([]byte(region.String), e.Kind)
			if err != nil {
				return nil, fmt.Errorf("epoch %s: %w", e.Time.Format(time.RFC3339), err)
			}
			e.Region = r
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Crossings returns a run's events for one stage (raw or clean), grouped
// by flyby in the shape the detector produces. Group i holds flyby i; a
// flyby whose stage kept no events comes back as an empty group.
func (s *Store) Crossings(ctx context.Context, runID, stage string) (l6crossings.Crossings, error) {
	out := make(l6crossings.Crossings)
	groups := func(station, satellite string, flyby int) [][]l6crossings.Event {
		if out[station] == nil {
			out[station] = make(map[string][][]l6crossings.Event)
		}
		g := out[station][satellite]
		for len(g) <= flyby {
			g = append(g, []l6crossings.Event{})
		}
		out[station][satellite] = g
		return g
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT station, satellite, flyby
		FROM oval_flybys
		WHERE run_id = ?
		ORDER BY station, satellite, flyby`, runID)
	if err != nil {
		return nil, fmt.Errorf("query flybys: %w", err)
	}
	for rows.Next() {
		var (
			station, satellite string
			flyby              int
		)
		if err := rows.Scan(&station, &satellite, &flyby); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan flyby: %w", err)
		}
		groups(station, satellite, flyby)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query flybys: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT station, satellite, flyby, event_unix_nanos, event_type
		FROM oval_crossings
		WHERE run_id = ? AND stage = ?
		ORDER BY station, satellite, flyby, seq`, runID, stage)
	if err != nil {
		return nil, fmt.Errorf("query crossings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			station, satellite, typ string
			flyby                   int
			ns                      int64
		)
		if err := rows.Scan(&station, &satellite, &flyby, &ns, &typ); err != nil {
			return nil, fmt.Errorf("scan crossing: %w", err)
		}
		et, err := l6crossings.ParseEventType(typ)
		if err != nil {
			return nil, err
		}
		g := groups(station, satellite, flyby)
		g[flyby] = append(g[flyby], l6crossings.Event{Time: time.Unix(0, ns).UTC(), Type: et})
	}
	return out, rows.Err()
}
