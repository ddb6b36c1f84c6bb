package geomap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/scansim/internal/fsutil"
)

func TestParseObstacleRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     map[string]any
		want    ObstacleRecord
		wantErr string
	}{
		{
			name: "id with name",
			raw:  map[string]any{"id": 2.0, "name": "crate", "vertices": []any{[]any{1.0, 2.0}}},
			want: ObstacleRecord{ID: 2, Name: "crate", Vertices: [][]float64{{1, 2}}},
		},
		{
			name: "underscore id and default name",
			raw:  map[string]any{"id_": 4, "vertices": []any{[]any{1, 2}}},
			want: ObstacleRecord{ID: 4, Name: "obstacle_4", Vertices: [][]float64{{1, 2}}},
		},
		{
			name:    "missing id",
			raw:     map[string]any{"vertices": []any{}},
			wantErr: "no id",
		},
		{
			name:    "fractional id",
			raw:     map[string]any{"id": 1.5, "vertices": []any{}},
			wantErr: "not an integer",
		},
		{
			name:    "missing vertices",
			raw:     map[string]any{"id": 1},
			wantErr: "missing vertex list",
		},
		{
			name:    "non-numeric coordinate",
			raw:     map[string]any{"id": 1, "vertices": []any{[]any{"a", 1.0}}},
			wantErr: "unsupported coordinate type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObstacleRecord(tt.raw)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromRaw(t *testing.T) {
	m, err := FromRaw(square(0, 0, 10), [][][]float64{square(1, 1, 1), square(5, 5, 1)}, WithRescale(2))
	require.NoError(t, err)

	obstacles := m.Obstacles()
	require.Len(t, obstacles, 2)
	assert.Equal(t, "obstacle_0", obstacles[0].Name)
	assert.Equal(t, "obstacle_1", obstacles[1].Name)
	assert.Equal(t, r2.Vec{X: 10, Y: 10}, obstacles[1].Vertices[0])

	_, xMax, _, _ := m.BoundaryScope()
	assert.Equal(t, 20.0, xMax)
}

func TestFromRawRejectsEmptyObstacle(t *testing.T) {
	_, err := FromRaw(square(0, 0, 10), [][][]float64{nil})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordJSON(t *testing.T) {
	const doc = `{
		"boundary_coords": [[0,0],[10,0],[10,10],[0,10]],
		"obstacle_dict": [
			{"id_": 3, "name": "pillar", "vertices": [[4,4],[6,4],[6,6],[4,6]]},
			{"id": 1, "vertices": [[1,1],[2,1],[2,2]]}
		],
		"obstacle_list": [[[8,8],[9,8],[9,9]]]
	}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))
	m, err := FromRecord(rec)
	require.NoError(t, err)

	obstacles := m.Obstacles()
	require.Len(t, obstacles, 2, "obstacle_dict takes precedence over obstacle_list")
	assert.Equal(t, 1, obstacles[0].ID)
	assert.Equal(t, "obstacle_1", obstacles[0].Name)
	assert.Equal(t, "pillar", obstacles[1].Name)

	out, err := json.Marshal(m.Record())
	require.NoError(t, err)
	var back Record
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, m.Record(), back)
}

func TestLoadFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("maps/a.json", []byte(`{
		"boundary_coords": [[0,0],[10,0],[10,10],[0,10]],
		"obstacle_list": [[[4,4],[6,4],[6,6],[4,6]]]
	}`), 0o644))
	require.NoError(t, fsys.WriteFile("maps/b.yaml", []byte(`
boundary_coords: [[0, 0], [10, 0], [10, 10], [0, 10]]
obstacle_dict:
  - id_: 5
    name: box
    vertices: [[4, 4], [6, 4], [6, 6], [4, 6]]
`), 0o644))
	require.NoError(t, fsys.WriteFile("maps/c.txt", []byte(`{}`), 0o644))
	require.NoError(t, fsys.WriteFile("maps/d.json", []byte(`{"boundary_coords": []}`), 0o644))

	t.Run("json", func(t *testing.T) {
		m, err := LoadFile(fsys, "maps/a.json")
		require.NoError(t, err)
		o, ok := m.Obstacle(0)
		require.True(t, ok)
		assert.Equal(t, "obstacle_0", o.Name)
	})

	t.Run("yaml with rescale", func(t *testing.T) {
		m, err := LoadFile(fsys, "maps/b.yaml", WithRescale(0.5))
		require.NoError(t, err)
		o, ok := m.Obstacle(5)
		require.True(t, ok)
		assert.Equal(t, "box", o.Name)
		assert.Equal(t, r2.Vec{X: 2, Y: 2}, o.Vertices[0])
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadFile(fsys, "maps/c.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be .json")
	})

	t.Run("invalid geometry", func(t *testing.T) {
		_, err := LoadFile(fsys, "maps/d.json")
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(fsys, "maps/none.json")
		require.Error(t, err)
	})
}
