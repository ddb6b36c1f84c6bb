package geomap

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/scansim/internal/fsutil"
)

// MaxMapFileSize bounds the size of map files accepted by LoadFile.
const MaxMapFileSize = 4 << 20

// Record is the serialised map. When both obstacle forms are present,
// ObstacleDict is used.
type Record struct {
	BoundaryCoords [][]float64      `json:"boundary_coords" yaml:"boundary_coords"`
	ObstacleDict   []ObstacleRecord `json:"obstacle_dict,omitempty" yaml:"-"`
	ObstacleList   [][][]float64    `json:"obstacle_list,omitempty" yaml:"obstacle_list,omitempty"`
}

// Option adjusts how a map is built from a record.
type Option func(*loadOptions)

type loadOptions struct {
	rescale float64
}

// WithRescale multiplies every coordinate by factor after loading.
func WithRescale(factor float64) Option {
	return func(o *loadOptions) { o.rescale = factor }
}

// FromRecord builds a validated map from rec.
func FromRecord(rec Record, opts ...Option) (*Map, error) {
	obstacles := rec.ObstacleDict
	if obstacles == nil {
		obstacles = listToRecords(rec.ObstacleList)
	}
	return build(rec.BoundaryCoords, obstacles, opts)
}

// FromRaw builds a map from a boundary and bare obstacle vertex lists. Ids are
// assigned by position and names default to obstacle_<index>.
func FromRaw(boundary [][]float64, obstacles [][][]float64, opts ...Option) (*Map, error) {
	return build(boundary, listToRecords(obstacles), opts)
}

// LoadFile reads a JSON or YAML map file.
func LoadFile(fsys fsutil.FileSystem, path string, opts ...Option) (*Map, error) {
	data, err := fsutil.ReadLimited(fsys, path, MaxMapFileSize)
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}

	var rec Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse map JSON %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := decodeYAML(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse map YAML %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("map file must be .json, .yaml or .yml, got %q", ext)
	}

	m, err := FromRecord(rec, opts...)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	return m, nil
}

// Record returns the map in its serialised form, obstacles ordered by id.
func (m *Map) Record() Record {
	rec := Record{BoundaryCoords: toCoordList(m.boundary)}
	for _, o := range m.Obstacles() {
		rec.ObstacleDict = append(rec.ObstacleDict, ObstacleRecord{
			ID:       o.ID,
			Name:     o.Name,
			Vertices: toCoordList(o.Vertices),
		})
	}
	return rec
}

// decodeYAML routes obstacle_dict through ParseObstacleRecord so that YAML
// and JSON accept the same id spellings.
func decodeYAML(data []byte, rec *Record) error {
	var doc struct {
		Record        `yaml:",inline"`
		ObstacleDict []map[string]any `yaml:"obstacle_dict"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	*rec = doc.Record
	if doc.ObstacleDict == nil {
		return nil
	}
	rec.ObstacleDict = make([]ObstacleRecord, 0, len(doc.ObstacleDict))
	for _, raw := range doc.ObstacleDict {
		o, err := ParseObstacleRecord(raw)
		if err != nil {
			return err
		}
		rec.ObstacleDict = append(rec.ObstacleDict, o)
	}
	return nil
}

func build(boundary [][]float64, obstacles []ObstacleRecord, opts []Option) (*Map, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := New()
	if err := m.RegisterBoundary(boundary); err != nil {
		return nil, err
	}
	for _, rec := range obstacles {
		if err := m.RegisterObstacle(rec); err != nil {
			return nil, err
		}
	}
	if o.rescale != 0 {
		m.Rescale(o.rescale)
	}
	return m, nil
}

func listToRecords(list [][][]float64) []ObstacleRecord {
	out := make([]ObstacleRecord, len(list))
	for i, vertices := range list {
		out[i] = ObstacleRecord{ID: i, Name: defaultObstacleName(i), Vertices: vertices}
		if out[i].Vertices == nil {
			out[i].Vertices = [][]float64{}
		}
	}
	return out
}

func toCoordList(vs []r2.Vec) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = []float64{v.X, v.Y}
	}
	return out
}
