// Package config loads the simulated sensor configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/units"
)

// DefaultConfigPath is the path to the bundled dense sensor configuration.
const DefaultConfigPath = "config/dense_scanner_spec.yaml"

// MaxConfigFileSize bounds the size of sensor configuration files.
const MaxConfigFileSize = 1 * 1024 * 1024 // 1MB

// ErrUnsupportedFormat is returned for configuration files that are neither
// JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// SensorConfig is the on-disk sensor description. Fields left out of the
// file fall back to the defaults returned by the Get* methods, so partial
// configs are safe.
type SensorConfig struct {
	AngleMin       *float64 `json:"angle_min,omitempty" yaml:"angle_min,omitempty"`
	AngleMax       *float64 `json:"angle_max,omitempty" yaml:"angle_max,omitempty"`
	AngleIncrement *float64 `json:"angle_increment,omitempty" yaml:"angle_increment,omitempty"`
	RangeMin       *float64 `json:"range_min,omitempty" yaml:"range_min,omitempty"`
	RangeMax       *float64 `json:"range_max,omitempty" yaml:"range_max,omitempty"`
	FrameID        *string  `json:"frame_id,omitempty" yaml:"frame_id,omitempty"`

	// AngleUnit is "rad" (default) or "deg" and applies to the three angle
	// fields.
	AngleUnit *string `json:"angle_unit,omitempty" yaml:"angle_unit,omitempty"`

	// ScanInterval paces trajectory replay, e.g. "100ms". Empty or zero
	// replays as fast as possible.
	ScanInterval *string `json:"scan_interval,omitempty" yaml:"scan_interval,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptySensorConfig returns a SensorConfig with all fields set to nil.
func EmptySensorConfig() *SensorConfig {
	return &SensorConfig{}
}

// DefaultSensorConfig returns a config with every field set to its default:
// a 180° forward fan at 1° resolution reaching 10 units.
func DefaultSensorConfig() *SensorConfig {
	return &SensorConfig{
		AngleMin:       ptrFloat64(-math.Pi / 2),
		AngleMax:       ptrFloat64(math.Pi / 2),
		AngleIncrement: ptrFloat64(math.Pi / 180),
		RangeMin:       ptrFloat64(0),
		RangeMax:       ptrFloat64(10),
		FrameID:        ptrString(""),
		AngleUnit:      ptrString(units.Rad),
		ScanInterval:   ptrString(""),
	}
}

// LoadSensorConfig loads a SensorConfig from a .json, .yaml or .yml file.
// The file is validated to be under MaxConfigFileSize.
func LoadSensorConfig(fsys fsutil.FileSystem, path string) (*SensorConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: config file must have .json, .yaml or .yml extension, got %q", ErrUnsupportedFormat, ext)
	}

	data, err := fsutil.ReadLimited(fsys, cleanPath, MaxConfigFileSize)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg := EmptySensorConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the bundled sensor configuration from
// DefaultConfigPath, searching the current directory and its parents.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SensorConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/replay/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSensorConfig(fsutil.OSFileSystem{}, path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that can be checked without building the beam
// fan. Geometric consistency is checked by beams.NewBeamSet.
func (c *SensorConfig) Validate() error {
	if c.AngleUnit != nil && !units.IsValid(*c.AngleUnit) {
		return fmt.Errorf("angle_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.AngleUnit)
	}

	if c.ScanInterval != nil && *c.ScanInterval != "" {
		d, err := time.ParseDuration(*c.ScanInterval)
		if err != nil {
			return fmt.Errorf("invalid scan_interval '%s': %w", *c.ScanInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("scan_interval must be non-negative, got %s", d)
		}
	}

	if c.RangeMin != nil && *c.RangeMin < 0 {
		return fmt.Errorf("range_min must be non-negative, got %f", *c.RangeMin)
	}
	if c.RangeMax != nil && *c.RangeMax <= 0 {
		return fmt.Errorf("range_max must be positive, got %f", *c.RangeMax)
	}

	_, err := c.ToBeamConfig()
	return err
}

// ToBeamConfig converts the angles to radians and validates the result as a
// beam fan.
func (c *SensorConfig) ToBeamConfig() (beams.Config, error) {
	unit := c.GetAngleUnit()
	bc := beams.Config{
		AngleMin:       units.ToRadians(c.GetAngleMin(), unit),
		AngleMax:       units.ToRadians(c.GetAngleMax(), unit),
		AngleIncrement: units.ToRadians(c.GetAngleIncrement(), unit),
		RangeMin:       c.GetRangeMin(),
		RangeMax:       c.GetRangeMax(),
		FrameID:        c.GetFrameID(),
	}
	if _, _, err := beams.NewBeamSet(bc); err != nil {
		return beams.Config{}, err
	}
	return bc, nil
}

// GetAngleUnit returns the angle_unit value or the default.
func (c *SensorConfig) GetAngleUnit() string {
	if c.AngleUnit == nil || *c.AngleUnit == "" {
		return units.Rad // default
	}
	return *c.AngleUnit
}

// GetAngleMin returns angle_min in the configured unit, or the default.
func (c *SensorConfig) GetAngleMin() float64 {
	if c.AngleMin == nil {
		return c.defaultAngle(-math.Pi / 2)
	}
	return *c.AngleMin
}

// GetAngleMax returns angle_max in the configured unit, or the default.
func (c *SensorConfig) GetAngleMax() float64 {
	if c.AngleMax == nil {
		return c.defaultAngle(math.Pi / 2)
	}
	return *c.AngleMax
}

// GetAngleIncrement returns angle_increment in the configured unit, or the
// default.
func (c *SensorConfig) GetAngleIncrement() float64 {
	if c.AngleIncrement == nil {
		return c.defaultAngle(math.Pi / 180)
	}
	return *c.AngleIncrement
}

// GetRangeMin returns the range_min value or the default.
func (c *SensorConfig) GetRangeMin() float64 {
	if c.RangeMin == nil {
		return 0 // default
	}
	return *c.RangeMin
}

// GetRangeMax returns the range_max value or the default.
func (c *SensorConfig) GetRangeMax() float64 {
	if c.RangeMax == nil {
		return 10 // default
	}
	return *c.RangeMax
}

// GetFrameID returns the frame_id value or the default.
func (c *SensorConfig) GetFrameID() string {
	if c.FrameID == nil {
		return "" // default
	}
	return *c.FrameID
}

// GetScanInterval parses and returns the ScanInterval as a time.Duration.
func (c *SensorConfig) GetScanInterval() time.Duration {
	if c.ScanInterval == nil || *c.ScanInterval == "" {
		return 0 // default
	}
	d, err := time.ParseDuration(*c.ScanInterval)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// defaultAngle expresses a default given in radians in the configured unit.
func (c *SensorConfig) defaultAngle(rad float64) float64 {
	if c.GetAngleUnit() == units.Deg {
		return units.RadToDeg(rad)
	}
	return rad
}
