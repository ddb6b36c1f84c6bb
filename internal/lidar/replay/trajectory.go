// Package replay plays a recorded trajectory through a simulated scanner.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scansim/internal/fsutil"
	"github.com/banshee-data/scansim/internal/lidar/beams"
)

// MaxTrajectoryFileSize bounds the size of trajectory files.
const MaxTrajectoryFileSize = 8 << 20

// ErrInvalidTrajectory is wrapped by every trajectory validation error.
var ErrInvalidTrajectory = errors.New("invalid trajectory")

// Waypoint is one timestamped sensor pose.
type Waypoint struct {
	Timestamp float64
	Pose      beams.Pose
}

type waypointRecord struct {
	Timestamp float64   `json:"timestamp" yaml:"timestamp"`
	Pose      []float64 `json:"pose" yaml:"pose"`
}

// LoadTrajectory reads a JSON or YAML list of {timestamp, pose: [x, y,
// heading]} records. Timestamps must not decrease.
func LoadTrajectory(fsys fsutil.FileSystem, path string) ([]Waypoint, error) {
	data, err := fsutil.ReadLimited(fsys, path, MaxTrajectoryFileSize)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}

	var records []waypointRecord
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &records)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		return nil, fmt.Errorf("trajectory file must be .json, .yaml or .yml, got %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse trajectory %s: %w", path, err)
	}
	return toWaypoints(records)
}

// toWaypoints validates decoded trajectory records.
func toWaypoints(records []waypointRecord) ([]Waypoint, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no waypoints", ErrInvalidTrajectory)
	}
	out := make([]Waypoint, len(records))
	for i, r := range records {
		pose, err := beams.PoseFromSlice(r.Pose)
		if err != nil {
			return nil, fmt.Errorf("%w: waypoint %d: %w", ErrInvalidTrajectory, i, err)
		}
		if i > 0 && r.Timestamp < records[i-1].Timestamp {
			return nil, fmt.Errorf("%w: waypoint %d: timestamp %g precedes %g",
				ErrInvalidTrajectory, i, r.Timestamp, records[i-1].Timestamp)
		}
		out[i] = Waypoint{Timestamp: r.Timestamp, Pose: pose}
	}
	return out, nil
}
