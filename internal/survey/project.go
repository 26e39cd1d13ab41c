package survey

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultScale is the number of plotting units per metre used when the
// caller has no preference.
const DefaultScale = 10.0

// Point is a position on the plotting plane.
type Point = r2.Vec

// Segment is a straight line between two plotting points.
type Segment struct {
	Start Point
	End   Point
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return r2.Norm(r2.Sub(s.End, s.Start))
}

// Station is the projection of one accepted leg.
type Station struct {
	// Index is the position of the source leg in the input.
	Index int
	From  string
	To    string
	// Start is the cursor before the leg, End the cursor after it.
	Start Point
	End   Point
	// WallLeft and WallRight are anchored at Start.
	WallLeft  Point
	WallRight Point
}

// Centerline returns the Start→End segment.
func (s Station) Centerline() Segment { return Segment{Start: s.Start, End: s.End} }

// Wall returns the left→right wall span.
func (s Station) Wall() Segment { return Segment{Start: s.WallLeft, End: s.WallRight} }

// Policy selects how Project treats a leg that fails validation.
type Policy int

const (
	// SkipInvalid records the leg as rejected, leaves the cursor where it
	// was and continues with the next leg.
	SkipInvalid Policy = iota
	// AbortOnInvalid stops at the first rejected leg. Stations projected
	// before it are still returned.
	AbortOnInvalid
)

func (p Policy) String() string {
	switch p {
	case SkipInvalid:
		return "skip"
	case AbortOnInvalid:
		return "abort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "skip" or "abort" (case-insensitive). An empty string
// selects SkipInvalid.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SkipInvalid, nil
	case "abort":
		return AbortOnInvalid, nil
	default:
		return SkipInvalid, fmt.Errorf("unknown invalid leg policy %q: expected skip or abort", s)
	}
}

// Options are supplied on every call; nothing is remembered between calls.
type Options struct {
	Origin Point
	// Scale is plotting units per metre.
	Scale  float64
	Policy Policy
}

func (o Options) validate() error {
	if math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) || o.Scale <= 0 {
		return fmt.Errorf("%w: got %v", ErrNonPositiveScale, o.Scale)
	}
	if !finite(o.Origin.X) || !finite(o.Origin.Y) {
		return fmt.Errorf("%w: got (%v, %v)", ErrInvalidOrigin, o.Origin.X, o.Origin.Y)
	}
	return nil
}

// Projection is the result of one traverse fold.
type Projection struct {
	// Stations holds one entry per accepted leg, in input order.
	Stations []Station
	// Rejected lists legs that failed validation, in input order.
	Rejected []*LegError
	// Cursor is the position after the last accepted leg.
	Cursor Point
}

// Centerlines returns the centerline segment of every station.
func (p Projection) Centerlines() []Segment {
	out := make([]Segment, len(p.Stations))
	for i, st := range p.Stations {
		out[i] = st.Centerline()
	}
	return out
}

// Walls returns the wall span of every station.
func (p Projection) Walls() []Segment {
	out := make([]Segment, len(p.Stations))
	for i, st := range p.Stations {
		out[i] = st.Wall()
	}
	return out
}

// Bounds returns the bounding box of every centerline and wall point.
// ok is false for an empty projection.
func (p Projection) Bounds() (lo, hi Point, ok bool) {
	if len(p.Stations) == 0 {
		return Point{}, Point{}, false
	}
	lo = p.Stations[0].Start
	hi = lo
	for _, st := range p.Stations {
		for _, pt := range [...]Point{st.Start, st.End, st.WallLeft, st.WallRight} {
			lo.X = math.Min(lo.X, pt.X)
			lo.Y = math.Min(lo.Y, pt.Y)
			hi.X = math.Max(hi.X, pt.X)
			hi.Y = math.Max(hi.Y, pt.Y)
		}
	}
	return lo, hi, true
}

// HorizontalLength is the summed centerline length in plotting units.
func (p Projection) HorizontalLength() float64 {
	var total float64
	for _, st := range p.Stations {
		total += st.Centerline().Length()
	}
	return total
}

// Project folds legs into plotting-plane stations starting at opts.Origin.
//
// For every leg the compass azimuth is turned into a mathematical heading
// (90° − azimuth), the slope distance is reduced to its horizontal run
// (distance × cos(inclination)) and the cursor advances by scale × run
// along that heading. The left wall point lies at heading 90° − (azimuth −
// 90°) and the right one at 90° − (azimuth + 90°), both measured from the
// cursor before it moves.
//
// A leg that fails Validate is handled according to opts.Policy. With
// AbortOnInvalid the error wraps the *LegError and the partial projection
// is returned alongside it.
func Project(legs []Leg, opts Options) (Projection, error) {
	return project(len(legs), func(i int) (Leg, error) {
		return legs[i], legs[i].Validate()
	}, opts)
}

// ProjectRecords is Project for unparsed records. A record that does not
// parse is rejected in the same way as a leg that does not validate.
func ProjectRecords(records []Record, opts Options) (Projection, error) {
	return project(len(records), func(i int) (Leg, error) {
		return records[i].Leg()
	}, opts)
}

func project(n int, legAt func(int) (Leg, error), opts Options) (Projection, error) {
	if err := opts.validate(); err != nil {
		return Projection{}, err
	}

	p := Projection{
		Stations: make([]Station, 0, n),
		Cursor:   opts.Origin,
	}
	for i := 0; i < n; i++ {
		leg, err := legAt(i)
		if err != nil {
			legErr := indexed(err, i)
			p.Rejected = append(p.Rejected, legErr)
			if opts.Policy == AbortOnInvalid {
				return p, fmt.Errorf("projection aborted: %w", legErr)
			}
			continue
		}
		st := step(p.Cursor, leg, opts.Scale)
		st.Index = i
		p.Stations = append(p.Stations, st)
		p.Cursor = st.End
	}
	return p, nil
}

func step(cursor Point, leg Leg, scale float64) Station {
	run := leg.Distance * math.Cos(Radians(leg.Inclination))
	return Station{
		From:      leg.From,
		To:        leg.To,
		Start:     cursor,
		End:       r2.Add(cursor, r2.Scale(run*scale, heading(90-leg.Azimuth))),
		WallLeft:  r2.Add(cursor, r2.Scale(leg.Left*scale, heading(90-(leg.Azimuth-90)))),
		WallRight: r2.Add(cursor, r2.Scale(leg.Right*scale, heading(90-(leg.Azimuth+90)))),
	}
}

// heading returns the unit vector at deg degrees counter-clockwise from +X.
func heading(deg float64) Point {
	sin, cos := math.Sincos(Radians(deg))
	return Point{X: cos, Y: sin}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func indexed(err error, i int) *LegError {
	var legErr *LegError
	if errors.As(err, &legErr) {
		cp := *legErr
		cp.Index = i
		return &cp
	}
	return &LegError{Index: i, Err: err}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
