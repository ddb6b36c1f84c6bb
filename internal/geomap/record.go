package geomap

import (
	"encoding/json"
	"fmt"
	"math"
)

// ObstacleRecord is the serialised form of one obstacle. Vertices is nil when
// the record carried no vertex list at all.
type ObstacleRecord struct {
	ID       int         `json:"id"`
	Name     string      `json:"name,omitempty"`
	Vertices [][]float64 `json:"vertices"`
}

// UnmarshalJSON accepts the obstacle id under either "id" or "id_".
func (r *ObstacleRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec, err := ParseObstacleRecord(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// ParseObstacleRecord converts a loosely typed obstacle record into an
// ObstacleRecord. An id is required, the name defaults to obstacle_<id>, and
// the vertices key must be present. Vertex dimensionality is checked later by
// Map.RegisterObstacle.
func ParseObstacleRecord(raw map[string]any) (ObstacleRecord, error) {
	idValue, ok := raw["id"]
	if !ok {
		idValue, ok = raw["id_"]
	}
	if !ok {
		return ObstacleRecord{}, fmt.Errorf("%w: obstacle record has no id", ErrValidation)
	}
	id, err := toInt(idValue)
	if err != nil {
		return ObstacleRecord{}, fmt.Errorf("%w: obstacle id: %v", ErrValidation, err)
	}

	rec := ObstacleRecord{ID: id, Name: defaultObstacleName(id)}
	if name, ok := raw["name"]; ok && name != nil {
		s, isString := name.(string)
		if !isString {
			return ObstacleRecord{}, fmt.Errorf("%w: obstacle %d: name must be a string", ErrValidation, id)
		}
		if s != "" {
			rec.Name = s
		}
	}

	verts, ok := raw["vertices"]
	if !ok || verts == nil {
		return ObstacleRecord{}, fmt.Errorf("%w: obstacle %d: missing vertex list", ErrValidation, id)
	}
	rec.Vertices, err = toCoords(verts)
	if err != nil {
		return ObstacleRecord{}, fmt.Errorf("%w: obstacle %d: %v", ErrValidation, id, err)
	}
	return rec, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("unsupported coordinate type %T", v)
	}
}

// toCoords converts a decoded vertex list. Dimension checks are left to the
// map so that error messages stay uniform; only non-numeric values fail here.
func toCoords(v any) ([][]float64, error) {
	switch c := v.(type) {
	case [][]float64:
		return c, nil
	case []any:
		out := make([][]float64, len(c))
		for i, vertex := range c {
			components, ok := vertex.([]any)
			if !ok {
				return nil, fmt.Errorf("vertex %d is %T, want a coordinate pair", i, vertex)
			}
			pt := make([]float64, len(components))
			for j, comp := range components {
				f, err := toFloat(comp)
				if err != nil {
					return nil, fmt.Errorf("vertex %d: %v", i, err)
				}
				pt[j] = f
			}
			out[i] = pt
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vertex list is %T, want a list", v)
	}
}
