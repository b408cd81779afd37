package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of the environment variables read by LoadEnv.
const EnvPrefix = "OVAL"

// Env holds the CLI defaults taken from OVAL_* variables. Flags override
// every field.
type Env struct {
	DBPath     string `envconfig:"DB_PATH" default:"oval.db"`
	PlotDir    string `envconfig:"PLOT_DIR"`
	ConfigPath string `envconfig:"CONFIG" default:"config/oval.defaults.json"`
	Listen     string `envconfig:"LISTEN"`
	PlotStride int    `envconfig:"PLOT_STRIDE" default:"12"`
	Verbose    bool   `envconfig:"VERBOSE"`

	Tracing       bool    `envconfig:"TRACING"`
	TraceExporter string  `envconfig:"TRACE_EXPORTER" default:"stdout"`
	TraceEndpoint string  `envconfig:"TRACE_ENDPOINT"`
	TraceRatio    float64 `envconfig:"TRACE_RATIO" default:"1"`
}

// LoadEnv loads dotenv files (a missing file is not an error) and then
// processes OVAL_* variables into an Env. Variables already set in the
// process environment win over dotenv values.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("failed to process %s_* environment: %w", EnvPrefix, err)
	}
	if env.PlotStride < 0 {
		return Env{}, fmt.Errorf("%s_PLOT_STRIDE must be non-negative, got %d", EnvPrefix, env.PlotStride)
	}
	if env.TraceRatio < 0 || env.TraceRatio > 1 {
		return Env{}, fmt.Errorf("%s_TRACE_RATIO must be in [0, 1], got %v", EnvPrefix, env.TraceRatio)
	}
	return env, nil
}
