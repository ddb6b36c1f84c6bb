package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/lidar/beams"
)

func TestDefaultSensorConfig(t *testing.T) {
	cfg := DefaultSensorConfig()

	if cfg.AngleMin == nil || *cfg.AngleMin != -math.Pi/2 {
		t.Errorf("Expected AngleMin -π/2, got %v", cfg.AngleMin)
	}
	if cfg.RangeMax == nil || *cfg.RangeMax != 10 {
		t.Errorf("Expected RangeMax 10, got %v", cfg.RangeMax)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bc, err := cfg.ToBeamConfig()
	if err != nil {
		t.Fatalf("ToBeamConfig() error: %v", err)
	}
	if bc.AngleIncrement != math.Pi/180 {
		t.Errorf("AngleIncrement = %f, want π/180", bc.AngleIncrement)
	}
}

func TestEmptySensorConfigGetters(t *testing.T) {
	cfg := EmptySensorConfig()

	if cfg.GetAngleMin() != -math.Pi/2 {
		t.Errorf("GetAngleMin() = %f, want -π/2", cfg.GetAngleMin())
	}
	if cfg.GetAngleMax() != math.Pi/2 {
		t.Errorf("GetAngleMax() = %f, want π/2", cfg.GetAngleMax())
	}
	if cfg.GetAngleIncrement() != math.Pi/180 {
		t.Errorf("GetAngleIncrement() = %f, want π/180", cfg.GetAngleIncrement())
	}
	if cfg.GetRangeMin() != 0 || cfg.GetRangeMax() != 10 {
		t.Errorf("ranges = [%f, %f], want [0, 10]", cfg.GetRangeMin(), cfg.GetRangeMax())
	}
	if cfg.GetFrameID() != "" {
		t.Errorf("GetFrameID() = %q, want empty", cfg.GetFrameID())
	}
	if cfg.GetScanInterval() != 0 {
		t.Errorf("GetScanInterval() = %s, want 0", cfg.GetScanInterval())
	}
}

func TestDegreeDefaults(t *testing.T) {
	cfg := &SensorConfig{AngleUnit: ptrString("deg"), AngleIncrement: ptrFloat64(30)}

	if got := cfg.GetAngleMin(); math.Abs(got+90) > 1e-9 {
		t.Errorf("GetAngleMin() = %f, want -90", got)
	}
	bc, err := cfg.ToBeamConfig()
	if err != nil {
		t.Fatalf("ToBeamConfig() error: %v", err)
	}
	if math.Abs(bc.AngleIncrement-math.Pi/6) > 1e-12 {
		t.Errorf("AngleIncrement = %f, want π/6", bc.AngleIncrement)
	}
	if math.Abs(bc.AngleMax-math.Pi/2) > 1e-12 {
		t.Errorf("AngleMax = %f, want π/2", bc.AngleMax)
	}
}

func TestLoadSensorConfig(t *testing.T) {
	tmpDir := t.TempDir()
	fsys := fsutil.OSFileSystem{}

	jsonPath := filepath.Join(tmpDir, "sensor.json")
	testJSON := `{
  "angle_min": -1.0,
  "angle_max": 1.0,
  "angle_increment": 0.5,
  "range_max": 4.5,
  "frame_id": "front"
}`
	if err := os.WriteFile(jsonPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSensorConfig(fsys, jsonPath)
	if err != nil {
		t.Fatalf("LoadSensorConfig failed: %v", err)
	}
	if cfg.GetAngleIncrement() != 0.5 {
		t.Errorf("GetAngleIncrement() = %f, want 0.5", cfg.GetAngleIncrement())
	}
	if cfg.GetFrameID() != "front" {
		t.Errorf("GetFrameID() = %q, want front", cfg.GetFrameID())
	}
	// Omitted fields fall back to defaults.
	if cfg.RangeMin != nil || cfg.GetRangeMin() != 0 {
		t.Errorf("RangeMin should be unset with default 0, got %v", cfg.RangeMin)
	}

	yamlPath := filepath.Join(tmpDir, "sensor.yml")
	testYAML := "angle_unit: deg\nangle_min: -45\nangle_max: 45\nangle_increment: 15\nrange_max: 3\nscan_interval: 250ms\n"
	if err := os.WriteFile(yamlPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err = LoadSensorConfig(fsys, yamlPath)
	if err != nil {
		t.Fatalf("LoadSensorConfig failed: %v", err)
	}
	if cfg.GetScanInterval() != 250*time.Millisecond {
		t.Errorf("GetScanInterval() = %s, want 250ms", cfg.GetScanInterval())
	}
	bc, err := cfg.ToBeamConfig()
	if err != nil {
		t.Fatalf("ToBeamConfig() error: %v", err)
	}
	b, _, err := beams.NewBeamSet(bc)
	if err != nil {
		t.Fatalf("NewBeamSet() error: %v", err)
	}
	if b.Len() != 7 {
		t.Errorf("beam count = %d, want 7", b.Len())
	}
}

func TestLoadSensorConfig_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	files := map[string]string{
		"sensor.txt":        `{}`,
		"bad.json":          `{not json`,
		"bad.yaml":          "angle_min: [1, 2",
		"zero_inc.json":     `{"angle_increment": 0}`,
		"reversed.yaml":     "angle_unit: deg\nangle_min: 10\nangle_max: -10\nangle_increment: 1\n",
		"bad_unit.json":     `{"angle_unit": "grad"}`,
		"bad_interval.json": `{"scan_interval": "soon"}`,
		"neg_range.json":    `{"range_min": -1}`,
	}
	for name, content := range files {
		if err := fsys.WriteFile(name, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fsys.WriteFile("big.json", []byte(strings.Repeat(" ", MaxConfigFileSize+1)), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		wantErr string
	}{
		{"sensor.txt", "extension"},
		{"bad.json", "failed to parse config JSON"},
		{"bad.yaml", "failed to parse config YAML"},
		{"zero_inc.json", "angle_increment"},
		{"reversed.yaml", "angle_min"},
		{"bad_unit.json", "angle_unit"},
		{"bad_interval.json", "scan_interval"},
		{"neg_range.json", "range_min"},
		{"big.json", "too large"},
		{"missing.json", "failed to stat"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := LoadSensorConfig(fsys, tt.path)
			if err == nil {
				t.Fatalf("expected error for %s", tt.path)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	_, err := LoadSensorConfig(fsys, "sensor.txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = LoadSensorConfig(fsys, "zero_inc.json")
	if !errors.Is(err, beams.ErrInvalidConfig) {
		t.Errorf("expected beams.ErrInvalidConfig, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetFrameID() != "laser_dense" {
		t.Errorf("GetFrameID() = %q, want laser_dense", cfg.GetFrameID())
	}
	bc, err := cfg.ToBeamConfig()
	if err != nil {
		t.Fatalf("ToBeamConfig() error: %v", err)
	}
	b, _, err := beams.NewBeamSet(bc)
	if err != nil {
		t.Fatalf("NewBeamSet() error: %v", err)
	}
	if b.Len() != 181 {
		t.Errorf("beam count = %d, want 181", b.Len())
	}
}
