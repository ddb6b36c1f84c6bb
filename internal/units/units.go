// Package units provides shared constants and conversions for angle units
package units

import "math"

// Unit constants
const (
	Rad = "rad"
	Deg = "deg"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Rad, Deg}

// IsValid checks if the given unit is in the list of valid units.
// The empty string is accepted and means radians.
func IsValid(unit string) bool {
	if unit == "" {
		return true
	}
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "rad, deg"
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// RoundDeg converts radians to degrees rounded to 4 decimal places, the
// precision used when angles are shown to people.
func RoundDeg(rad float64) float64 {
	return math.Round(RadToDeg(rad)*1e4) / 1e4
}

// ToRadians converts an angle in unit to radians
func ToRadians(v float64, unit string) float64 {
	switch unit {
	case Deg:
		return DegToRad(v)
	default:
		return v // radians if unknown or empty
	}
}

// NormalizeAngle wraps an angle in radians into (-π, π].
func NormalizeAngle(rad float64) float64 {
	a := math.Mod(rad, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
