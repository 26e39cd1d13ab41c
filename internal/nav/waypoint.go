// Package nav holds land-navigation waypoints and the geodesy used to reach
// them from the current GPS fix.
package nav

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrNameRequired = errors.New("waypoint name is required")
	ErrBadLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrBadLongitude = errors.New("longitude must be within [-180, 180]")
)

// Waypoint is a named location saved in the field.
type Waypoint struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Validate trims the name and checks coordinates.
func (w *Waypoint) Validate() error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return ErrNameRequired
	}
	if math.IsNaN(w.Lat) || w.Lat < -90 || w.Lat > 90 {
		return ErrBadLatitude
	}
	if math.IsNaN(w.Lon) || w.Lon < -180 || w.Lon > 180 {
		return ErrBadLongitude
	}
	return nil
}

// Point returns the waypoint as an orb point (lon, lat order).
func (w Waypoint) Point() orb.Point {
	return orb.Point{w.Lon, w.Lat}
}

// Label is the one-line summary shown in waypoint lists.
func (w Waypoint) Label() string {
	return fmt.Sprintf("Lat: %.4f, Lon: %.4f", w.Lat, w.Lon)
}

// Heading describes how to reach a waypoint from a position.
type Heading struct {
	Waypoint  Waypoint `json:"waypoint"`
	DistanceM float64  `json:"distance_m"`
	// BearingDeg is the initial great-circle bearing, clockwise from true
	// north, in [0, 360).
	BearingDeg float64 `json:"bearing_deg"`
	Cardinal   string  `json:"cardinal"`
}

// HeadingTo computes distance and bearing from (lat, lon) to w.
func HeadingTo(lat, lon float64, w Waypoint) Heading {
	from := orb.Point{lon, lat}
	bearing := math.Mod(geo.Bearing(from, w.Point())+360, 360)
	return Heading{
		Waypoint:   w,
		DistanceM:  geo.DistanceHaversine(from, w.Point()),
		BearingDeg: bearing,
		Cardinal:   Cardinal(bearing),
	}
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal names the eight-point compass sector containing bearing.
func Cardinal(bearing float64) string {
	b := math.Mod(math.Mod(bearing, 360)+360, 360)
	return compassPoints[int(math.Floor((b+22.5)/45))%len(compassPoints)]
}

// FeatureCollection exports waypoints as GeoJSON points carrying id, name
// and description properties.
func FeatureCollection(ws []Waypoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, w := range ws {
		f := geojson.NewFeature(w.Point())
		if w.ID != "" {
			f.ID = w.ID
		}
		f.Properties["name"] = w.Name
		f.Properties["description"] = w.Description
		fc.Append(f)
	}
	return fc
}
