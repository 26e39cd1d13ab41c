// Package units provides shared constants and conversions for speed and
// length units shown to field users.
package units

import "strings"

// Speed unit constants
const (
	MPS   = "mps"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
	Knots = "knots"
)

// MetersPerSecondPerKnot is the exact length of a nautical mile (1852 m)
// divided by one hour.
const MetersPerSecondPerKnot = 1852.0 / 3600.0

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH, Knots}

// IsValid checks if the given unit is in the list of valid speed units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// GPS fixes are stored in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS / MetersPerSecondPerKnot
	default:
		return speedMPS
	}
}

// KnotsToMPS converts a speed over ground reported in knots to m/s.
func KnotsToMPS(knots float64) float64 {
	return knots * MetersPerSecondPerKnot
}
