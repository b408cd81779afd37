package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/oval.defaults.json"

// ROTIMax is the upper end of the ROTI range (TECU/min) accepted for the
// boundary threshold.
const ROTIMax = 10.0

// OvalConfig represents the root configuration for the oval pipeline.
// Fields are pointers so that a partial JSON file only overrides what it
// names; the Get* methods supply defaults for the rest.
type OvalConfig struct {
	// Sector gating
	MinLon *float64 `json:"min_lon,omitempty"`
	MaxLon *float64 `json:"max_lon,omitempty"`
	MinLat *float64 `json:"min_lat,omitempty"`

	// Sliding window aggregation
	WindowLat *float64 `json:"window_lat,omitempty"`
	WindowLon *float64 `json:"window_lon,omitempty"`
	StepLat   *float64 `json:"step_lat,omitempty"`
	StepLon   *float64 `json:"step_lon,omitempty"`

	// Contour extraction
	GridPoints        *int     `json:"grid_points,omitempty"`
	BoundaryThreshold *float64 `json:"boundary_threshold,omitempty"`

	// Clustering
	DBSCANEps        *float64 `json:"dbscan_eps,omitempty"`
	DBSCANMinSamples *int     `json:"dbscan_min_samples,omitempty"`
	MinClusterSize   *int     `json:"min_cluster_size,omitempty"`
	MaxLatitude      *float64 `json:"max_latitude,omitempty"`

	// Crossing detection
	GroupingThreshold *string `json:"grouping_threshold,omitempty"` // duration string like "3h"
	ShortGap          *string `json:"short_gap,omitempty"`          // duration string like "15m"
	EpochStep         *string `json:"epoch_step,omitempty"`         // duration string like "5m"

	// Execution
	Workers *int `json:"workers,omitempty"`
}

// Params is the fully resolved, flat parameter set handed to the pipeline.
type Params struct {
	MinLon float64 `validate:"gte=-180,lte=180"`
	MaxLon float64 `validate:"gte=-180,lte=180,gtfield=MinLon"`
	MinLat float64 `validate:"gte=-90,lte=90"`

	WindowLat float64 `validate:"gt=0"`
	WindowLon float64 `validate:"gt=0"`
	StepLat   float64 `validate:"gt=0"`
	StepLon   float64 `validate:"gt=0"`

	GridPoints        int     `validate:"gte=2"`
	BoundaryThreshold float64 `validate:"gt=0,lte=10"`

	DBSCANEps        float64 `validate:"gt=0"`
	DBSCANMinSamples int     `validate:"gte=1"`
	MinClusterSize   int     `validate:"gte=1"`
	MaxLatitude      float64 `validate:"gte=-90,lte=90,gtfield=MinLat"`

	GroupingThreshold time.Duration `validate:"gt=0"`
	ShortGap          time.Duration `validate:"gt=0"`
	EpochStep         time.Duration `validate:"gt=0"`

	Workers int `validate:"gte=1"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyOvalConfig returns an OvalConfig with all fields set to nil.
// Use LoadConfig to load actual values from the defaults file.
func EmptyOvalConfig() *OvalConfig {
	return &OvalConfig{}
}

// LoadConfig loads an OvalConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadConfig(path string) (*OvalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyOvalConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *OvalConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/oval/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/oval/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. Unset fields fall back to
// defaults which are valid by construction.
func (c *OvalConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"window_lat", c.WindowLat},
		{"window_lon", c.WindowLon},
		{"step_lat", c.StepLat},
		{"step_lon", c.StepLon},
		{"dbscan_eps", c.DBSCANEps},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.BoundaryThreshold != nil {
		if *c.BoundaryThreshold <= 0 || *c.BoundaryThreshold > ROTIMax {
			return fmt.Errorf("boundary_threshold must be in (0, %g], got %f", ROTIMax, *c.BoundaryThreshold)
		}
	}

	if c.GridPoints != nil && *c.GridPoints < 2 {
		return fmt.Errorf("grid_points must be at least 2, got %d", *c.GridPoints)
	}
	if c.DBSCANMinSamples != nil && *c.DBSCANMinSamples < 1 {
		return fmt.Errorf("dbscan_min_samples must be at least 1, got %d", *c.DBSCANMinSamples)
	}
	if c.MinClusterSize != nil && *c.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be at least 1, got %d", *c.MinClusterSize)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"grouping_threshold", c.GroupingThreshold},
		{"short_gap", c.ShortGap},
		{"epoch_step", c.EpochStep},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.v)
		}
	}

	if c.GetMinLon() >= c.GetMaxLon() {
		return fmt.Errorf("min_lon (%f) must be less than max_lon (%f)", c.GetMinLon(), c.GetMaxLon())
	}
	if c.GetMinLat() >= c.GetMaxLatitude() {
		return fmt.Errorf("min_lat (%f) must be less than max_latitude (%f)", c.GetMinLat(), c.GetMaxLatitude())
	}

	return nil
}

// Resolve flattens the config into Params and checks the result with the
// struct validator.
func (c *OvalConfig) Resolve() (Params, error) {
	if err := c.Validate(); err != nil {
		return Params{}, err
	}
	p := Params{
		MinLon:            c.GetMinLon(),
		MaxLon:            c.GetMaxLon(),
		MinLat:            c.GetMinLat(),
		WindowLat:         c.GetWindowLat(),
		WindowLon:         c.GetWindowLon(),
		StepLat:           c.GetStepLat(),
		StepLon:           c.GetStepLon(),
		GridPoints:        c.GetGridPoints(),
		BoundaryThreshold: c.GetBoundaryThreshold(),
		DBSCANEps:         c.GetDBSCANEps(),
		DBSCANMinSamples:  c.GetDBSCANMinSamples(),
		MinClusterSize:    c.GetMinClusterSize(),
		MaxLatitude:       c.GetMaxLatitude(),
		GroupingThreshold: c.GetGroupingThreshold(),
		ShortGap:          c.GetShortGap(),
		EpochStep:         c.GetEpochStep(),
		Workers:           c.GetWorkers(),
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks p against its struct tags. Params built by hand, as in
// tests, go through the same checks as resolved configs.
func (p Params) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid resolved parameters: %w", err)
	}
	return nil
}

// DefaultParams returns the resolved built-in defaults.
func DefaultParams() Params {
	p, err := EmptyOvalConfig().Resolve()
	if err != nil {
		panic("built-in defaults are invalid: " + err.Error())
	}
	return p
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetMinLon returns the western gating longitude or the default.
func (c *OvalConfig) GetMinLon() float64 { return getFloat(c.MinLon, -120) }

// GetMaxLon returns the eastern gating longitude or the default.
func (c *OvalConfig) GetMaxLon() float64 { return getFloat(c.MaxLon, -60) }

// GetMinLat returns the equatorward gating latitude or the default. It is
// also the closure edge for the poleward boundary curve.
func (c *OvalConfig) GetMinLat() float64 { return getFloat(c.MinLat, 40) }

// GetWindowLat returns the window height in degrees or the default.
func (c *OvalConfig) GetWindowLat() float64 { return getFloat(c.WindowLat, 5) }

// GetWindowLon returns the window width in degrees or the default.
func (c *OvalConfig) GetWindowLon() float64 { return getFloat(c.WindowLon, 10) }

// GetStepLat returns the latitude step of the sliding window or the default.
func (c *OvalConfig) GetStepLat() float64 { return getFloat(c.StepLat, 0.7) }

// GetStepLon returns the longitude step of the sliding window or the default.
func (c *OvalConfig) GetStepLon() float64 { return getFloat(c.StepLon, 0.2) }

// GetGridPoints returns the interpolation grid resolution or the default.
func (c *OvalConfig) GetGridPoints() int { return getInt(c.GridPoints, 100) }

// GetBoundaryThreshold returns the ROTI isoline level or the default.
func (c *OvalConfig) GetBoundaryThreshold() float64 { return getFloat(c.BoundaryThreshold, 0.07) }

// GetDBSCANEps returns the DBSCAN neighbourhood radius in degrees or the default.
func (c *OvalConfig) GetDBSCANEps() float64 { return getFloat(c.DBSCANEps, 0.7) }

// GetDBSCANMinSamples returns the DBSCAN core-point threshold or the default.
func (c *OvalConfig) GetDBSCANMinSamples() int { return getInt(c.DBSCANMinSamples, 3) }

// GetMinClusterSize returns the minimum boundary cluster size or the default.
func (c *OvalConfig) GetMinClusterSize() int { return getInt(c.MinClusterSize, 100) }

// GetMaxLatitude returns the pole edge used for closure or the default.
func (c *OvalConfig) GetMaxLatitude() float64 { return getFloat(c.MaxLatitude, 90) }

// GetGroupingThreshold returns the gap that separates crossing episodes.
func (c *OvalConfig) GetGroupingThreshold() time.Duration {
	return getDuration(c.GroupingThreshold, 3*time.Hour)
}

// GetShortGap returns the burst-merge gap used by the event cleaner.
func (c *OvalConfig) GetShortGap() time.Duration {
	return getDuration(c.ShortGap, 15*time.Minute)
}

// GetEpochStep returns the boundary epoch spacing.
func (c *OvalConfig) GetEpochStep() time.Duration {
	return getDuration(c.EpochStep, 5*time.Minute)
}

// GetWorkers returns the number of epochs processed concurrently.
func (c *OvalConfig) GetWorkers() int { return getInt(c.Workers, 1) }
