// Command oval runs the auroral oval crossing pipeline over one or more
// daily ROTI bundles, stores the results in sqlite and optionally renders
// plots and serves debug routes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/monitoring"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
	"github.com/roti-lab/auroral.report/internal/oval/monitor"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
	"github.com/roti-lab/auroral.report/internal/oval/storage/sqlite"
	"github.com/roti-lab/auroral.report/internal/tracing"
	"github.com/roti-lab/auroral.report/internal/version"
)

type options struct {
	configPath string
	dbPath     string
	plotDir    string
	plotStride int
	listen     string
	serve      bool
	workers    int
	jsonOut    bool
	verbose    bool
	version    bool
	inputs     []string
}

// parseFlags reads command-line flags, taking defaults from env.
func parseFlags(args []string, env config.Env, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("oval", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: oval [flags] DAY.json[.gz] ...\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.configPath, "config", env.ConfigPath, "Tuning config JSON file")
	fs.StringVar(&o.dbPath, "db", env.DBPath, "sqlite database path")
	fs.StringVar(&o.plotDir, "plots", env.PlotDir, "Directory for epoch plots and timelines (empty disables)")
	fs.IntVar(&o.plotStride, "plot-stride", env.PlotStride, "Plot every n-th usable epoch (0 writes only the timeline)")
	fs.StringVar(&o.listen, "listen", env.Listen, "Serve /debug/ and /metrics on this address")
	fs.BoolVar(&o.serve, "serve", false, "Keep serving after all days are processed, until interrupted")
	fs.IntVar(&o.workers, "workers", 0, "Override the configured epoch worker count")
	fs.BoolVar(&o.jsonOut, "json", false, "Print cleaned crossings of each day as JSON to stdout")
	fs.BoolVar(&o.verbose, "verbose", env.Verbose, "Log per-epoch outcomes")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.inputs = fs.Args()

	if o.version {
		return o, nil
	}
	if len(o.inputs) == 0 {
		return o, errors.New("at least one day bundle is required")
	}
	if o.dbPath == "" {
		return o, errors.New("-db is required")
	}
	if o.plotStride < 0 {
		return o, fmt.Errorf("-plot-stride must be non-negative, got %d", o.plotStride)
	}
	if o.workers < 0 {
		return o, fmt.Errorf("-workers must be non-negative, got %d", o.workers)
	}
	if o.serve && o.listen == "" {
		return o, errors.New("-serve requires -listen")
	}
	return o, nil
}

// loadParams resolves the tuning config and applies flag overrides.
func loadParams(o options) (config.Params, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return config.Params{}, err
	}
	params, err := cfg.Resolve()
	if err != nil {
		return config.Params{}, err
	}
	if o.workers > 0 {
		params.Workers = o.workers
	}
	return params, nil
}

// tracingConfig maps OVAL_TRACE* variables onto the tracer setup. Stdout
// spans go to stderr so they never mix with -json output.
func tracingConfig(env config.Env) tracing.Config {
	return tracing.Config{
		Enabled:     env.Tracing,
		ServiceName: "oval",
		Exporter:    env.TraceExporter,
		Endpoint:    env.TraceEndpoint,
		SampleRatio: env.TraceRatio,
		Writer:      os.Stderr,
	}
}

// adminMux builds the debug and metrics routes.
func adminMux(store *sqlite.Store, reg *prometheus.Registry) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux, nil
}

// processDay runs one bundle and reports its cleaned crossings.
func processDay(ctx context.Context, pl *pipeline.Pipeline, path string, jsonOut io.Writer) error {
	bundle, err := l1samples.LoadDay(path)
	if err != nil {
		return err
	}
	res, err := pl.Run(ctx, pipeline.DayFromBundle(bundle))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("%s: run %s day %s usable %d/%d raw %d clean %d in %s",
		path, res.RunID, res.Date.Format(l1samples.DateLayout), res.UsableEpochs(), len(res.Epochs),
		res.Raw.EventCount(), res.Cleaned.EventCount(), res.Duration.Round(time.Millisecond))
	if jsonOut == nil {
		return nil
	}
	enc := json.NewEncoder(jsonOut)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		RunID     string      `json:"run_id"`
		Day       string      `json:"day"`
		Crossings interface{} `json:"crossings"`
	}{res.RunID, res.Date.Format(l1samples.DateLayout), res.Cleaned})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}
	o, err := parseFlags(os.Args[1:], env, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if o.version {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(o.verbose)

	shutdownTracing, err := tracing.Init(context.Background(), tracingConfig(env))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, 5*time.Second)

	params, err := loadParams(o)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := sqlite.Open(o.dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	sinks := []pipeline.ResultSink{store}
	if o.plotDir != "" {
		rep, err := monitor.New(monitor.Options{Dir: o.plotDir, EpochStride: o.plotStride})
		if err != nil {
			log.Fatalf("failed to create plot writer: %v", err)
		}
		sinks = append(sinks, rep)
	}

	pl, err := pipeline.New(pipeline.Options{Params: params, Sinks: sinks, Metrics: metrics})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if o.listen != "" {
		mux, err := adminMux(store, reg)
		if err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}
		server = &http.Server{Addr: o.listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("serving debug routes on %s", o.listen)
	}

	var jsonOut io.Writer
	if o.jsonOut {
		jsonOut = os.Stdout
	}
	failed := 0
	for _, path := range o.inputs {
		if err := processDay(ctx, pl, path, jsonOut); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("failed to process %s: %v", path, err)
			failed++
		}
	}

	if server != nil {
		if o.serve && ctx.Err() == nil {
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			server.Close()
		}
	}
	if failed > 0 {
		tracing.ShutdownWithTimeout(shutdownTracing, 5*time.Second)
		store.Close()
		log.Fatalf("%d of %d days failed", failed, len(o.inputs))
	}
}
