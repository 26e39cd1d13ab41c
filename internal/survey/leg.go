// Package survey projects cave-survey legs onto a 2D plotting plane.
//
// A survey is an ordered chain of legs. Each leg carries a slope distance,
// a compass azimuth, an inclination and LRUD wall offsets measured at its
// start station. Project folds the chain into a centerline polyline with a
// perpendicular wall span per leg, starting from a caller-supplied origin.
package survey

import (
	"math"
	"strconv"
)

// Record keys, shared by the JSON codec and LegError.Field.
const (
	FieldFrom        = "from"
	FieldTo          = "to"
	FieldDistance    = "dist"
	FieldAzimuth     = "azi"
	FieldInclination = "clino"
	FieldLeft        = "left"
	FieldRight       = "right"
	FieldUp          = "up"
	FieldDown        = "down"
)

// Leg is one measured survey shot between two stations. Distances are in
// metres, angles in degrees. Station labels are descriptive only.
type Leg struct {
	From        string
	To          string
	Distance    float64
	Azimuth     float64
	Inclination float64
	Left        float64
	Right       float64
	// Up and Down are carried through storage but do not contribute to the
	// plan projection.
	Up   float64
	Down float64
}

type legField struct {
	name     string
	value    float64
	positive bool
}

func (l Leg) fields() []legField {
	return []legField{
		{FieldDistance, l.Distance, true},
		{FieldAzimuth, l.Azimuth, false},
		{FieldInclination, l.Inclination, false},
		{FieldLeft, l.Left, true},
		{FieldRight, l.Right, true},
		{FieldUp, l.Up, true},
		{FieldDown, l.Down, true},
	}
}

// Validate checks that every numeric field is finite and that distance and
// wall offsets are not negative. Out-of-range azimuth and inclination values
// are accepted as-is. The returned *LegError has Index 0; Project fills in
// the real position.
func (l Leg) Validate() error {
	for _, f := range l.fields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &LegError{Field: f.name, Value: strconv.FormatFloat(f.value, 'g', -1, 64), Err: ErrNotFinite}
		}
		if f.positive && f.value < 0 {
			return &LegError{Field: f.name, Value: strconv.FormatFloat(f.value, 'g', -1, 64), Err: ErrNegative}
		}
	}
	return nil
}
