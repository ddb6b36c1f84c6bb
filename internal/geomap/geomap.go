package geomap

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrValidation is wrapped by every error caused by a malformed map record.
var ErrValidation = errors.New("invalid map geometry")

// Obstacle is a solid polygonal region.
type Obstacle struct {
	ID       int
	Name     string
	Vertices []r2.Vec
}

// Map is a boundary ring plus the registered obstacles.
type Map struct {
	boundary  []r2.Vec
	obstacles map[int]*Obstacle
}

// New returns an empty map. A boundary must be registered before the map is
// useful for scanning.
func New() *Map {
	return &Map{obstacles: make(map[int]*Obstacle)}
}

// RegisterBoundary validates coords and replaces the boundary ring.
func (m *Map) RegisterBoundary(coords [][]float64) error {
	vertices, err := toVertices(coords)
	if err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	m.boundary = vertices
	return nil
}

// RegisterObstacle validates rec and stores it under rec.ID, replacing any
// obstacle already registered with that id. An empty name defaults to
// obstacle_<id>.
func (m *Map) RegisterObstacle(rec ObstacleRecord) error {
	if rec.Vertices == nil {
		return fmt.Errorf("obstacle %d: %w: missing vertex list", rec.ID, ErrValidation)
	}
	vertices, err := toVertices(rec.Vertices)
	if err != nil {
		return fmt.Errorf("obstacle %d: %w", rec.ID, err)
	}
	name := rec.Name
	if name == "" {
		name = defaultObstacleName(rec.ID)
	}
	m.obstacles[rec.ID] = &Obstacle{ID: rec.ID, Name: name, Vertices: vertices}
	return nil
}

// Boundary returns a copy of the boundary ring.
func (m *Map) Boundary() []r2.Vec {
	return append([]r2.Vec(nil), m.boundary...)
}

// HasBoundary reports whether a boundary has been registered.
func (m *Map) HasBoundary() bool {
	return len(m.boundary) > 0
}

// Obstacle returns a copy of the obstacle registered under id.
func (m *Map) Obstacle(id int) (Obstacle, bool) {
	o, ok := m.obstacles[id]
	if !ok {
		return Obstacle{}, false
	}
	return copyObstacle(o), true
}

// Obstacles returns copies of all obstacles ordered by id.
func (m *Map) Obstacles() []Obstacle {
	ids := make([]int, 0, len(m.obstacles))
	for id := range m.obstacles {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Obstacle, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyObstacle(m.obstacles[id]))
	}
	return out
}

// ObstacleCoords returns the vertex rings of all obstacles ordered by id.
func (m *Map) ObstacleCoords() [][]r2.Vec {
	obstacles := m.Obstacles()
	out := make([][]r2.Vec, len(obstacles))
	for i, o := range obstacles {
		out[i] = o.Vertices
	}
	return out
}

// BoundaryScope returns the extent of the boundary vertices only. All four
// values are zero when no boundary is registered.
func (m *Map) BoundaryScope() (xMin, xMax, yMin, yMax float64) {
	if len(m.boundary) == 0 {
		return 0, 0, 0, 0
	}
	xs := make([]float64, len(m.boundary))
	ys := make([]float64, len(m.boundary))
	for i, v := range m.boundary {
		xs[i], ys[i] = v.X, v.Y
	}
	return floats.Min(xs), floats.Max(xs), floats.Min(ys), floats.Max(ys)
}

// TransformCoordinates applies f in place to every boundary and obstacle
// vertex. No validation is re-run.
func (m *Map) TransformCoordinates(f func(r2.Vec) r2.Vec) {
	for i, v := range m.boundary {
		m.boundary[i] = f(v)
	}
	for _, o := range m.obstacles {
		for i, v := range o.Vertices {
			o.Vertices[i] = f(v)
		}
	}
}

// Rescale multiplies every coordinate by factor.
func (m *Map) Rescale(factor float64) {
	m.TransformCoordinates(func(v r2.Vec) r2.Vec {
		return r2.Scale(factor, v)
	})
}

func toVertices(coords [][]float64) ([]r2.Vec, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: vertex list is empty", ErrValidation)
	}
	out := make([]r2.Vec, len(coords))
	for i, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: vertex %d has %d components, want 2", ErrValidation, i, len(c))
		}
		out[i] = r2.Vec{X: c[0], Y: c[1]}
	}
	return out, nil
}

func copyObstacle(o *Obstacle) Obstacle {
	return Obstacle{
		ID:       o.ID,
		Name:     o.Name,
		Vertices: append([]r2.Vec(nil), o.Vertices...),
	}
}

func defaultObstacleName(id int) string {
	return fmt.Sprintf("obstacle_%d", id)
}
