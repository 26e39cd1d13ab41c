package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/mswcd/fieldkit/internal/gps"
	"github.com/mswcd/fieldkit/internal/httputil"
	"github.com/mswcd/fieldkit/internal/nav"
	"github.com/mswcd/fieldkit/internal/units"
)

type waypointView struct {
	nav.Waypoint
	Label string `json:"label"`
}

func viewWaypoint(w nav.Waypoint) waypointView {
	return waypointView{Waypoint: w, Label: w.Label()}
}

// currentFix writes 404 and returns false when no fix is available.
func (s *Server) currentFix(w http.ResponseWriter) (gps.Fix, bool) {
	if s.tracker == nil {
		httputil.NotFound(w, gps.ErrNoFix.Error())
		return gps.Fix{}, false
	}
	fix, err := s.tracker.Current()
	if err != nil {
		httputil.NotFound(w, err.Error())
		return gps.Fix{}, false
	}
	return fix, true
}

func (s *Server) handleWaypoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws, err := s.db.ListWaypoints()
		if err != nil {
			writeDBError(w, err)
			return
		}
		views := make([]waypointView, len(ws))
		for i, wp := range ws {
			views[i] = viewWaypoint(wp)
		}
		httputil.WriteJSONOK(w, views)

	case http.MethodPost:
		// Lat and Lon default to the current fix, as when marking the
		// spot you are standing on.
		var req struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Lat         *float64 `json:"lat"`
			Lon         *float64 `json:"lon"`
		}
		if err := httputil.DecodeJSON(r, maxBodyBytes, &req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		wp := nav.Waypoint{Name: req.Name, Description: req.Description}
		if req.Lat == nil || req.Lon == nil {
			fix, ok := s.currentFix(w)
			if !ok {
				return
			}
			wp.Lat, wp.Lon = fix.Lat, fix.Lon
		} else {
			wp.Lat, wp.Lon = *req.Lat, *req.Lon
		}
		if err := s.db.CreateWaypoint(&wp); err != nil {
			if errors.Is(err, nav.ErrNameRequired) || errors.Is(err, nav.ErrBadLatitude) || errors.Is(err, nav.ErrBadLongitude) {
				httputil.BadRequest(w, err.Error())
				return
			}
			writeDBError(w, err)
			return
		}
		httputil.Created(w, viewWaypoint(wp))

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleWaypoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		wp, err := s.db.GetWaypoint(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		httputil.WriteJSONOK(w, viewWaypoint(*wp))

	case http.MethodDelete:
		if err := s.db.DeleteWaypoint(id); err != nil {
			writeDBError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) waypointsGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ws, err := s.db.ListWaypoints()
	if err != nil {
		writeDBError(w, err)
		return
	}
	data, err := nav.FeatureCollection(ws).MarshalJSON()
	if err != nil {
		log.Printf("api: encode geojson: %v", err)
		httputil.InternalServerError(w, "failed to encode waypoints")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func (s *Server) navigateToWaypoint(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	wp, err := s.db.GetWaypoint(r.PathValue("id"))
	if err != nil {
		writeDBError(w, err)
		return
	}
	fix, ok := s.currentFix(w)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, nav.HeadingTo(fix.Lat, fix.Lon, *wp))
}

func (s *Server) saveWaypointsFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ws, err := s.db.ListWaypoints()
	if err != nil {
		writeDBError(w, err)
		return
	}
	if err := s.files.SaveWaypoints(ws); err != nil {
		log.Printf("api: save waypoints: %v", err)
		httputil.InternalServerError(w, "failed to save waypoints")
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"path": s.files.WaypointPath(), "waypoints": len(ws)})
}

func (s *Server) loadWaypointsFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ws, err := s.files.LoadWaypoints()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.db.ReplaceWaypoints(ws); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"waypoints": len(ws)})
}

type fixView struct {
	gps.Fix
	Speed      float64 `json:"speed"`
	SpeedUnits string  `json:"speed_units"`
}

func (s *Server) showFix(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	fix, ok := s.currentFix(w)
	if !ok {
		return
	}
	speedUnits := s.cfg.GetUnits()
	httputil.WriteJSONOK(w, fixView{
		Fix:        fix,
		Speed:      units.ConvertSpeed(fix.SpeedMPS, speedUnits),
		SpeedUnits: speedUnits,
	})
}
