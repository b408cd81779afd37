package sqlite

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/roti-lab/auroral.report/internal/httputil"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
)

// AttachAdminRoutes mounts debugging routes under /debug/ on mux:
// tailsql over the store, a gzipped backup download, and JSON views of
// stored runs.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(s.path), s.db, &tailsql.DBOptions{
		Label: "Oval DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(s.handleBackup))
	debug.Handle("oval/runs", "Stored oval runs (?day=YYYY-MM-DD)", http.HandlerFunc(s.handleRuns))
	debug.Handle("oval/crossings", "Crossings of one run (?run=ID&stage=raw|clean)", http.HandlerFunc(s.handleCrossings))
	return nil
}

func (s *Store) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("oval-backup-%d.db", time.Now().UnixNano()))
	if _, err := s.db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to create backup: %v", err))
		return
	}
	backupFile, err := os.Open(backupPath)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to open backup file: %v", err))
		return
	}
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("failed to remove backup file: %v", err)
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("failed to stream backup: %v", err)
	}
}

func (s *Store) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	var day time.Time
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.Parse(l1samples.DateLayout, v)
		if err != nil {
			httputil.BadRequest(w, "day must be YYYY-MM-DD")
			return
		}
		day = d
	}
	runs, err := s.ListRuns(r.Context(), day)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []*RunSummary{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Store) handleCrossings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	runID := q.Get("run")
	if runID == "" {
		httputil.BadRequest(w, "missing run")
		return
	}
	stage := q.Get("stage")
	if stage == "" {
		stage = pipeline.StageClean
	}
	if stage != pipeline.StageClean && stage != pipeline.StageRaw {
		httputil.BadRequest(w, "stage must be raw or clean")
		return
	}
	if _, err := s.Run(r.Context(), runID); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	c, err := s.Crossings(r.Context(), runID, stage)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, c)
}
