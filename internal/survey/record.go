package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Measurement is the unparsed text of a numeric record field. It decodes
// from a JSON number, a JSON string or null, so records typed into forms
// and records written by older tools share one representation.
type Measurement string

// M formats a float as a Measurement.
func M(v float64) Measurement {
	return Measurement(strconv.FormatFloat(v, 'f', -1, 64))
}

// Float parses the measurement. Empty text is ErrMissingValue, unparsable
// text ErrNotNumeric and NaN/Inf ErrNotFinite.
func (m Measurement) Float() (float64, error) {
	s := strings.TrimSpace(string(m))
	if s == "" {
		return 0, ErrMissingValue
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ParseFloat reports overflow with a ±Inf value and ErrRange.
		if math.IsInf(v, 0) {
			return 0, ErrNotFinite
		}
		return 0, ErrNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

func (m *Measurement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Measurement(s)
	default:
		*m = Measurement(data)
	}
	return nil
}

func (m Measurement) MarshalJSON() ([]byte, error) {
	if m == "" {
		return []byte("null"), nil
	}
	if v, err := m.Float(); err == nil {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(string(m))
}

// Record is the storage and form-entry shape of a leg.
type Record struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Dist  Measurement `json:"dist"`
	Azi   Measurement `json:"azi"`
	Clino Measurement `json:"clino"`
	Left  Measurement `json:"left"`
	Right Measurement `json:"right"`
	Up    Measurement `json:"up"`
	Down  Measurement `json:"down"`
}

// RecordFromLeg converts a parsed leg back to its record form.
func RecordFromLeg(l Leg) Record {
	return Record{
		From:  l.From,
		To:    l.To,
		Dist:  M(l.Distance),
		Azi:   M(l.Azimuth),
		Clino: M(l.Inclination),
		Left:  M(l.Left),
		Right: M(l.Right),
		Up:    M(l.Up),
		Down:  M(l.Down),
	}
}

// Leg parses and validates the record. Failures are *LegError values with
// Index 0.
func (r Record) Leg() (Leg, error) {
	leg := Leg{From: r.From, To: r.To}
	for _, f := range []struct {
		name string
		raw  Measurement
		dst  *float64
	}{
		{FieldDistance, r.Dist, &leg.Distance},
		{FieldAzimuth, r.Azi, &leg.Azimuth},
		{FieldInclination, r.Clino, &leg.Inclination},
		{FieldLeft, r.Left, &leg.Left},
		{FieldRight, r.Right, &leg.Right},
		{FieldUp, r.Up, &leg.Up},
		{FieldDown, r.Down, &leg.Down},
	} {
		v, err := f.raw.Float()
		if err != nil {
			return Leg{}, &LegError{Field: f.name, Value: string(f.raw), Err: err}
		}
		*f.dst = v
	}
	if err := leg.Validate(); err != nil {
		return Leg{}, err
	}
	return leg, nil
}

// DecodeRecords parses a JSON array of records. Only the JSON shape is
// checked here; numeric fields are validated when the records are
// projected or converted with Record.Leg.
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse survey records: %w", err)
	}
	return records, nil
}

// EncodeRecords writes records as an indented JSON array.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "    ")
}
