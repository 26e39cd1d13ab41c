package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mswcd/fieldkit/internal/survey"
	"github.com/mswcd/fieldkit/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/fieldkit.defaults.json"

// Config is the root runtime configuration. Every field is optional; the
// Get* methods supply the default for anything left unset, so partial
// files are safe.
type Config struct {
	// Cave map projection
	Scale            *float64 `json:"scale,omitempty"` // plotting units per metre
	OriginX          *float64 `json:"origin_x,omitempty"`
	OriginY          *float64 `json:"origin_y,omitempty"`
	InvalidLegPolicy *string  `json:"invalid_leg_policy,omitempty"` // "skip" or "abort"

	// Display units
	Units       *string `json:"units,omitempty"`        // speed units for GPS readouts
	LengthUnits *string `json:"length_units,omitempty"` // "m" or "ft"

	// GPS
	GPSStaleAfter   *string  `json:"gps_stale_after,omitempty"`  // duration string like "10s"
	GPSMinInterval  *string  `json:"gps_min_interval,omitempty"` // duration string like "1s"
	GPSMinDistanceM *float64 `json:"gps_min_distance_m,omitempty"`
	GPSBaudRate     *int     `json:"gps_baud_rate,omitempty"`

	// Rendering
	PlotWidthInches  *float64 `json:"plot_width_inches,omitempty"`
	PlotHeightInches *float64 `json:"plot_height_inches,omitempty"`
}

// Env holds the settings taken from the process environment. Flags given
// on the command line win over these.
type Env struct {
	DBPath  string `env:"FIELDKIT_DB_PATH" envDefault:"fieldkit.db"`
	Listen  string `env:"FIELDKIT_LISTEN" envDefault:":8080"`
	GPSPort string `env:"FIELDKIT_GPS_PORT" envDefault:"/dev/ttyACM0"`
	Config  string `env:"FIELDKIT_CONFIG"`
}

// ParseEnv loads Env from environment variables.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// Load loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Scale != nil && !(*c.Scale > 0) {
		return fmt.Errorf("scale must be greater than 0, got %f", *c.Scale)
	}

	if c.InvalidLegPolicy != nil {
		if _, err := survey.ParsePolicy(*c.InvalidLegPolicy); err != nil {
			return err
		}
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q, expected one of: %s", *c.Units, units.GetValidUnitsString())
	}

	if c.LengthUnits != nil && !units.IsValidLength(*c.LengthUnits) {
		return fmt.Errorf("invalid length_units %q, expected m or ft", *c.LengthUnits)
	}

	for name, v := range map[string]*string{
		"gps_stale_after":  c.GPSStaleAfter,
		"gps_min_interval": c.GPSMinInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	if c.GPSMinDistanceM != nil && *c.GPSMinDistanceM < 0 {
		return fmt.Errorf("gps_min_distance_m must be non-negative, got %f", *c.GPSMinDistanceM)
	}

	if c.GPSBaudRate != nil && *c.GPSBaudRate <= 0 {
		return fmt.Errorf("gps_baud_rate must be positive, got %d", *c.GPSBaudRate)
	}

	return nil
}

// GetScale returns the scale value or the default.
func (c *Config) GetScale() float64 {
	if c.Scale == nil {
		return survey.DefaultScale
	}
	return *c.Scale
}

// GetOrigin returns the projection origin. The default is the centre of a
// 360x740 portrait canvas.
func (c *Config) GetOrigin() survey.Point {
	origin := survey.Point{X: 180, Y: 370}
	if c.OriginX != nil {
		origin.X = *c.OriginX
	}
	if c.OriginY != nil {
		origin.Y = *c.OriginY
	}
	return origin
}

// GetInvalidLegPolicy returns the configured policy, SkipInvalid by default.
func (c *Config) GetInvalidLegPolicy() survey.Policy {
	if c.InvalidLegPolicy == nil {
		return survey.SkipInvalid
	}
	p, err := survey.ParsePolicy(*c.InvalidLegPolicy)
	if err != nil {
		return survey.SkipInvalid
	}
	return p
}

// ProjectionOptions bundles the projection settings for survey.Project.
func (c *Config) ProjectionOptions() survey.Options {
	return survey.Options{
		Origin: c.GetOrigin(),
		Scale:  c.GetScale(),
		Policy: c.GetInvalidLegPolicy(),
	}
}

// GetUnits returns the speed display units, km/h by default.
func (c *Config) GetUnits() string {
	if c.Units == nil {
		return units.KMPH
	}
	return *c.Units
}

// GetLengthUnits returns the length display units, metres by default.
func (c *Config) GetLengthUnits() string {
	if c.LengthUnits == nil {
		return units.Meters
	}
	return *c.LengthUnits
}

// GetGPSStaleAfter returns how long a fix stays current.
func (c *Config) GetGPSStaleAfter() time.Duration {
	return parseDurationOr(c.GPSStaleAfter, 10*time.Second)
}

// GetGPSMinInterval returns the minimum time between accepted fixes.
func (c *Config) GetGPSMinInterval() time.Duration {
	return parseDurationOr(c.GPSMinInterval, time.Second)
}

// GetGPSMinDistanceM returns the minimum movement between accepted fixes.
func (c *Config) GetGPSMinDistanceM() float64 {
	if c.GPSMinDistanceM == nil {
		return 1
	}
	return *c.GPSMinDistanceM
}

// GetGPSBaudRate returns the NMEA receiver baud rate.
func (c *Config) GetGPSBaudRate() int {
	if c.GPSBaudRate == nil {
		return 4800
	}
	return *c.GPSBaudRate
}

// GetPlotSize returns the rendered plot size in inches.
func (c *Config) GetPlotSize() (width, height float64) {
	width, height = 6, 6
	if c.PlotWidthInches != nil && *c.PlotWidthInches > 0 {
		width = *c.PlotWidthInches
	}
	if c.PlotHeightInches != nil && *c.PlotHeightInches > 0 {
		height = *c.PlotHeightInches
	}
	return width, height
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
