package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/mswcd/fieldkit/internal/db"
	"github.com/mswcd/fieldkit/internal/httputil"
	"github.com/mswcd/fieldkit/internal/render"
	"github.com/mswcd/fieldkit/internal/survey"
	"github.com/mswcd/fieldkit/internal/surveyfile"
)

type legView struct {
	Seq int `json:"seq"`
	survey.Record
}

func viewLegs(stored []db.StoredLeg) []legView {
	legs := make([]legView, len(stored))
	for i, l := range stored {
		legs[i] = legView{Seq: l.Seq, Record: survey.RecordFromLeg(l.Leg)}
	}
	return legs
}

// badRequest reports err, naming the leg field when it is a *survey.LegError.
func badRequest(w http.ResponseWriter, err error) {
	var legErr *survey.LegError
	if errors.As(err, &legErr) {
		httputil.WriteFieldError(w, http.StatusBadRequest, legErr.Error(), legErr.Field, legErr.Index)
		return
	}
	httputil.BadRequest(w, err.Error())
}

func (s *Server) handleSurveys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		surveys, err := s.db.ListSurveys()
		if err != nil {
			writeDBError(w, err)
			return
		}
		httputil.WriteJSONOK(w, surveys)

	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := httputil.DecodeJSON(r, maxBodyBytes, &req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		created, err := s.db.CreateSurvey(req.Name)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.Created(w, created)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		sv, err := s.db.GetSurvey(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		stored, err := s.db.SurveyLegs(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]interface{}{
			"survey": sv,
			"legs":   viewLegs(stored),
		})

	case http.MethodDelete:
		if err := s.db.DeleteSurvey(id); err != nil {
			writeDBError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleLegs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		stored, err := s.db.SurveyLegs(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		httputil.WriteJSONOK(w, viewLegs(stored))

	case http.MethodPost:
		s.appendLeg(w, r, id)

	case http.MethodDelete:
		s.legMu.Lock()
		err := s.db.ClearSurvey(id)
		s.legMu.Unlock()
		if err != nil {
			writeDBError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// appendLeg stores one record and answers with the reprojected survey.
func (s *Server) appendLeg(w http.ResponseWriter, r *http.Request, id string) {
	opts, err := s.projectionOptions(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}

	var rec survey.Record
	if err := httputil.DecodeJSON(r, maxBodyBytes, &rec); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	leg, err := rec.Leg()
	if err != nil {
		badRequest(w, err)
		return
	}

	s.legMu.Lock()
	seq, err := s.db.AppendLeg(id, leg)
	var stored []db.StoredLeg
	if err == nil {
		stored, err = s.db.SurveyLegs(id)
	}
	s.legMu.Unlock()
	if err != nil {
		if errors.Is(err, survey.ErrInvalidLegData) {
			badRequest(w, err)
			return
		}
		writeDBError(w, err)
		return
	}

	view, _, err := s.project(stored, opts)
	if err != nil {
		badRequest(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{
		"seq":        seq,
		"log":        survey.LogLine(leg),
		"projection": view,
	})
}

func (s *Server) handleLeg(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq < 1 {
		httputil.BadRequest(w, fmt.Sprintf("invalid leg sequence %q", r.PathValue("seq")))
		return
	}

	s.legMu.Lock()
	err = s.db.DeleteLeg(r.PathValue("id"), seq)
	s.legMu.Unlock()
	if err != nil {
		writeDBError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showProjection(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	view, _, ok := s.loadProjection(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if view.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, view)
}

func (s *Server) surveyTitle(id string) string {
	sv, err := s.db.GetSurvey(id)
	if err != nil {
		return id
	}
	return sv.Name
}

func (s *Server) renderPlot(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		_, proj, ok := s.loadProjection(w, r)
		if !ok {
			return
		}
		width, height := s.cfg.GetPlotSize()
		opts := render.PlotOptions{
			Title:        s.surveyTitle(r.PathValue("id")),
			WidthInches:  width,
			HeightInches: height,
			Labels:       r.URL.Query().Get("labels") != "false",
		}

		// render to a buffer first so a failure can still send a JSON error
		var buf bytes.Buffer
		if err := render.WritePlot(&buf, proj, format, opts); err != nil {
			log.Printf("api: render %s: %v", format, err)
			httputil.InternalServerError(w, "failed to render plot")
			return
		}
		w.Header().Set("Content-Type", contentType)
		io.Copy(w, &buf)
	}
}

func (s *Server) renderChart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	_, proj, ok := s.loadProjection(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.WriteChart(&buf, proj, render.ChartOptions{Title: s.surveyTitle(r.PathValue("id"))}); err != nil {
		log.Printf("api: render chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.Copy(w, &buf)
}

func (s *Server) showStationLog(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	stored, err := s.db.SurveyLegs(r.PathValue("id"))
	if err != nil {
		writeDBError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string][]string{"lines": survey.LogLines(db.Legs(stored))})
}

func (s *Server) saveSurveyFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.PathValue("id")
	stored, err := s.db.SurveyLegs(id)
	if err != nil {
		writeDBError(w, err)
		return
	}

	records := make([]survey.Record, len(stored))
	for i, l := range stored {
		records[i] = survey.RecordFromLeg(l.Leg)
	}
	if err := s.files.SaveSurvey(id, records); err != nil {
		if errors.Is(err, surveyfile.ErrNothingToSave) {
			httputil.BadRequest(w, err.Error())
			return
		}
		log.Printf("api: save survey %s: %v", id, err)
		httputil.InternalServerError(w, "failed to save survey")
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"path": s.files.SurveyPath(id), "legs": len(records)})
}

// loadSurveyFile replaces the survey's legs with the saved file. Nothing is
// replaced if any record is invalid.
func (s *Server) loadSurveyFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.PathValue("id")
	records, err := s.files.LoadSurvey(id)
	if err != nil {
		if errors.Is(err, surveyfile.ErrNoSavedProject) {
			httputil.NotFound(w, err.Error())
			return
		}
		badRequest(w, err)
		return
	}

	legs := make([]survey.Leg, len(records))
	for i, rec := range records {
		leg, err := rec.Leg()
		if err != nil {
			var legErr *survey.LegError
			if errors.As(err, &legErr) {
				legErr.Index = i
			}
			badRequest(w, err)
			return
		}
		legs[i] = leg
	}

	s.legMu.Lock()
	err = s.db.ReplaceLegs(id, legs)
	s.legMu.Unlock()
	if err != nil {
		if errors.Is(err, survey.ErrInvalidLegData) {
			badRequest(w, err)
			return
		}
		writeDBError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"legs": len(legs)})
}
