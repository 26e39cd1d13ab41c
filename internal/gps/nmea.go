package gps

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"

	"github.com/mswcd/fieldkit/internal/units"
)

// UERE is the assumed user equivalent range error in metres, used to turn
// HDOP into a horizontal accuracy estimate.
const UERE = 5.0

// Fix is a position report. A GGA sentence fills altitude, accuracy and
// satellites; an RMC sentence fills speed.
type Fix struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltitudeM  float64   `json:"altitude_m"`
	SpeedMPS   float64   `json:"speed_mps"`
	AccuracyM  float64   `json:"accuracy_m"`
	Satellites int       `json:"satellites"`
	Time       time.Time `json:"time"`

	HasAltitude bool `json:"-"`
	HasSpeed    bool `json:"-"`
}

// ParseSentence decodes one NMEA line. ok is false for sentence types that
// carry no position and for sentences the receiver flags as invalid.
func ParseSentence(line string) (fix Fix, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Fix{}, false, nil
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, fmt.Errorf("failed to parse NMEA sentence: %w", err)
	}

	switch m := s.(type) {
	case nmea.GGA:
		if m.FixQuality == "" || m.FixQuality == "0" {
			return Fix{}, false, nil
		}
		return Fix{
			Lat:         m.Latitude,
			Lon:         m.Longitude,
			AltitudeM:   m.Altitude,
			AccuracyM:   m.HDOP * UERE,
			Satellites:  int(m.NumSatellites),
			HasAltitude: true,
		}, true, nil
	case nmea.RMC:
		if m.Validity != "A" {
			return Fix{}, false, nil
		}
		return Fix{
			Lat:      m.Latitude,
			Lon:      m.Longitude,
			SpeedMPS: units.KnotsToMPS(m.Speed),
			HasSpeed: true,
		}, true, nil
	}
	return Fix{}, false, nil
}
