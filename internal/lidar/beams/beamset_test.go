package beams

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/units"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func defaultConfig() Config {
	return Config{
		AngleMin:       -math.Pi / 2,
		AngleMax:       math.Pi / 2,
		AngleIncrement: math.Pi / 180,
		RangeMin:       0,
		RangeMax:       10,
		FrameID:        "laser",
	}
}

func TestNewBeamSetAngles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want []float64
	}{
		{
			name: "two beams spanning the fan",
			cfg:  Config{AngleMin: -math.Pi / 2, AngleMax: math.Pi / 2, AngleIncrement: math.Pi, RangeMax: 10},
			want: []float64{-math.Pi / 2, math.Pi / 2},
		},
		{
			name: "exact steps",
			cfg:  Config{AngleMin: 0, AngleMax: 1, AngleIncrement: 0.25, RangeMax: 1},
			want: []float64{0, 0.25, 0.5, 0.75, 1},
		},
		{
			name: "short last step is dropped",
			cfg:  Config{AngleMin: 0, AngleMax: 1, AngleIncrement: 0.3, RangeMax: 1},
			want: []float64{0, 0.3, 0.6, 0.9},
		},
		{
			name: "half step short keeps terminal beam",
			cfg:  Config{AngleMin: 0, AngleMax: 2.5, AngleIncrement: 1, RangeMax: 1},
			want: []float64{0, 1, 2, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, err := NewBeamSet(tt.cfg)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, b.Angles(), approx); diff != "" {
				t.Errorf("angles mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tt.want), b.Len())
		})
	}
}

func TestNewBeamSetDefaultFan(t *testing.T) {
	b, advs, err := NewBeamSet(defaultConfig())
	require.NoError(t, err)
	assert.Empty(t, advs)

	angles := b.Angles()
	require.Equal(t, 181, len(angles))
	assert.Equal(t, -math.Pi/2, angles[0])
	assert.InDelta(t, math.Pi/2, angles[len(angles)-1], 1e-9)
	for i := 1; i < len(angles); i++ {
		assert.GreaterOrEqual(t, angles[i], angles[i-1])
	}
	assert.Equal(t, "laser", b.FrameID())
	assert.Equal(t, 10.0, b.RangeMax())
	assert.Equal(t, 0.0, b.RangeMin())
}

func TestNewBeamSetRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero increment", func(c *Config) { c.AngleIncrement = 0 }},
		{"negative increment", func(c *Config) { c.AngleIncrement = -0.1 }},
		{"increment wider than fan", func(c *Config) { c.AngleIncrement = 4 }},
		{"min above max", func(c *Config) {
			c.AngleMin, c.AngleMax = units.DegToRad(10), units.DegToRad(-10)
		}},
		{"empty fan", func(c *Config) { c.AngleMin, c.AngleMax = 0, 0 }},
		{"negative range_min", func(c *Config) { c.RangeMin = -1 }},
		{"range_max not above range_min", func(c *Config) { c.RangeMin, c.RangeMax = 5, 5 }},
		{"nan angle", func(c *Config) { c.AngleMax = math.NaN() }},
		{"infinite range", func(c *Config) { c.RangeMax = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			b, _, err := NewBeamSet(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, b)
		})
	}
}

func TestForwardAdvisory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		min, max float64
		want     bool
	}{
		{"brackets zero", -1, 1, false},
		{"starts at zero", 0, 1, true},
		{"ends at zero", -1, 0, true},
		{"all positive", 0.5, 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, advs, err := NewBeamSet(Config{AngleMin: tt.min, AngleMax: tt.max, AngleIncrement: 0.5, RangeMax: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.want, advisory.Has(advs, advisory.ForwardNotBracketed))
		})
	}
}

func TestAnglesDeg(t *testing.T) {
	b, _, err := NewBeamSet(Config{
		AngleMin:       units.DegToRad(-90),
		AngleMax:       units.DegToRad(90),
		AngleIncrement: units.DegToRad(45),
		RangeMax:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{-90, -45, 0, 45, 90}, b.AnglesDeg())
}

func TestAnglesReturnsCopy(t *testing.T) {
	b, _, err := NewBeamSet(defaultConfig())
	require.NoError(t, err)
	a := b.Angles()
	a[0] = 42
	assert.Equal(t, -math.Pi/2, b.Angles()[0])
}
