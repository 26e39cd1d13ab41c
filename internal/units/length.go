package units

// Length unit constants
const (
	Meters = "m"
	Feet   = "ft"
)

const metersPerFoot = 0.3048

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{Meters, Feet}

// IsValidLength checks if the given unit is a known length unit
func IsValidLength(unit string) bool {
	return unit == Meters || unit == Feet
}

// ConvertLength converts metres to the target length unit. Unknown units
// leave the value in metres.
func ConvertLength(meters float64, targetUnits string) float64 {
	if targetUnits == Feet {
		return meters / metersPerFoot
	}
	return meters
}
