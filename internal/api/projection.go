package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mswcd/fieldkit/internal/db"
	"github.com/mswcd/fieldkit/internal/survey"
	"github.com/mswcd/fieldkit/internal/units"
)

type pointView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func viewPoint(p survey.Point) pointView { return pointView{X: p.X, Y: p.Y} }

type stationView struct {
	Seq       int       `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Start     pointView `json:"start"`
	End       pointView `json:"end"`
	WallLeft  pointView `json:"wall_left"`
	WallRight pointView `json:"wall_right"`
}

type rejectedView struct {
	Seq   int    `json:"seq"`
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}

type boundsView struct {
	Min pointView `json:"min"`
	Max pointView `json:"max"`
}

type optionsView struct {
	Scale  float64   `json:"scale"`
	Origin pointView `json:"origin"`
	Policy string    `json:"policy"`
}

type projectionView struct {
	Options          optionsView    `json:"options"`
	Stations         []stationView  `json:"stations"`
	Rejected         []rejectedView `json:"rejected"`
	Cursor           pointView      `json:"cursor"`
	Bounds           *boundsView    `json:"bounds,omitempty"`
	HorizontalLength float64        `json:"horizontal_length"`
	LengthUnits      string         `json:"length_units"`
	Error            string         `json:"error,omitempty"`
}

// projectionOptions starts from the configured defaults and applies any
// scale, origin_x, origin_y and policy query overrides.
func (s *Server) projectionOptions(q url.Values) (survey.Options, error) {
	opts := s.cfg.ProjectionOptions()

	parse := func(key string, dst *float64) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q", key, v)
		}
		*dst = f
		return nil
	}
	if err := parse("scale", &opts.Scale); err != nil {
		return opts, err
	}
	if err := parse("origin_x", &opts.Origin.X); err != nil {
		return opts, err
	}
	if err := parse("origin_y", &opts.Origin.Y); err != nil {
		return opts, err
	}
	if v := q.Get("policy"); v != "" {
		policy, err := survey.ParsePolicy(v)
		if err != nil {
			return opts, err
		}
		opts.Policy = policy
	}
	return opts, nil
}

// project runs the projector over stored legs and builds the response
// view. A non-nil error means the options were rejected; an aborted run is
// reported through view.Error instead.
func (s *Server) project(stored []db.StoredLeg, opts survey.Options) (projectionView, survey.Projection, error) {
	proj, err := survey.Project(db.Legs(stored), opts)
	if err != nil && !errors.Is(err, survey.ErrInvalidLegData) {
		return projectionView{}, proj, err
	}

	lengthUnits := s.cfg.GetLengthUnits()
	view := projectionView{
		Options: optionsView{
			Scale:  opts.Scale,
			Origin: viewPoint(opts.Origin),
			Policy: opts.Policy.String(),
		},
		Stations:         make([]stationView, len(proj.Stations)),
		Rejected:         make([]rejectedView, len(proj.Rejected)),
		Cursor:           viewPoint(proj.Cursor),
		HorizontalLength: units.ConvertLength(proj.HorizontalLength()/opts.Scale, lengthUnits),
		LengthUnits:      lengthUnits,
	}
	if err != nil {
		view.Error = err.Error()
	}
	for i, st := range proj.Stations {
		view.Stations[i] = stationView{
			Seq:       stored[st.Index].Seq,
			From:      st.From,
			To:        st.To,
			Start:     viewPoint(st.Start),
			End:       viewPoint(st.End),
			WallLeft:  viewPoint(st.WallLeft),
			WallRight: viewPoint(st.WallRight),
		}
	}
	for i, r := range proj.Rejected {
		view.Rejected[i] = rejectedView{
			Seq:   stored[r.Index].Seq,
			Field: r.Field,
			Value: r.Value,
			Error: r.Err.Error(),
		}
	}
	if lo, hi, ok := proj.Bounds(); ok {
		view.Bounds = &boundsView{Min: viewPoint(lo), Max: viewPoint(hi)}
	}
	return view, proj, nil
}

// loadProjection reads the survey's legs and projects them with the
// request's options, writing an error response and returning false on
// failure.
func (s *Server) loadProjection(w http.ResponseWriter, r *http.Request) (projectionView, survey.Projection, bool) {
	opts, err := s.projectionOptions(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return projectionView{}, survey.Projection{}, false
	}
	stored, err := s.db.SurveyLegs(r.PathValue("id"))
	if err != nil {
		writeDBError(w, err)
		return projectionView{}, survey.Projection{}, false
	}
	view, proj, err := s.project(stored, opts)
	if err != nil {
		badRequest(w, err)
		return projectionView{}, survey.Projection{}, false
	}
	return view, proj, true
}
