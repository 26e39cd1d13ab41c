// Package api serves surveys, projections, renders, waypoints and the GPS
// fix over HTTP.
package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mswcd/fieldkit/internal/config"
	"github.com/mswcd/fieldkit/internal/db"
	"github.com/mswcd/fieldkit/internal/gps"
	"github.com/mswcd/fieldkit/internal/httputil"
	"github.com/mswcd/fieldkit/internal/surveyfile"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// FixSource reports the current GPS position.
type FixSource interface {
	Current() (gps.Fix, error)
}

type Server struct {
	db      *db.DB
	tracker FixSource
	files   *surveyfile.Store
	cfg     *config.Config

	// legMu serializes leg writes with the reprojection that follows them,
	// so a response always reflects the write it acknowledges.
	legMu sync.Mutex
}

func NewServer(database *db.DB, tracker FixSource, files *surveyfile.Store, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	return &Server{
		db:      database,
		tracker: tracker,
		files:   files,
		cfg:     cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/surveys", s.handleSurveys)
	mux.HandleFunc("/surveys/{id}", s.handleSurvey)
	mux.HandleFunc("/surveys/{id}/legs", s.handleLegs)
	mux.HandleFunc("/surveys/{id}/legs/{seq}", s.handleLeg)
	mux.HandleFunc("/surveys/{id}/projection", s.showProjection)
	mux.HandleFunc("/surveys/{id}/plot.png", s.renderPlot("png", "image/png"))
	mux.HandleFunc("/surveys/{id}/plot.svg", s.renderPlot("svg", "image/svg+xml"))
	mux.HandleFunc("/surveys/{id}/chart", s.renderChart)
	mux.HandleFunc("/surveys/{id}/log", s.showStationLog)
	mux.HandleFunc("/surveys/{id}/save", s.saveSurveyFile)
	mux.HandleFunc("/surveys/{id}/load", s.loadSurveyFile)

	mux.HandleFunc("/waypoints", s.handleWaypoints)
	mux.HandleFunc("/waypoints.geojson", s.waypointsGeoJSON)
	mux.HandleFunc("/waypoints/save", s.saveWaypointsFile)
	mux.HandleFunc("/waypoints/load", s.loadWaypointsFile)
	mux.HandleFunc("/waypoints/{id}", s.handleWaypoint)
	mux.HandleFunc("/waypoints/{id}/nav", s.navigateToWaypoint)

	mux.HandleFunc("/gps", s.showFix)
	return mux
}

// writeDBError maps storage errors onto HTTP statuses.
func writeDBError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	log.Printf("api: %v", err)
	httputil.InternalServerError(w, "internal error")
}

// requireMethod writes 405 and returns false unless r uses one of methods.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	httputil.MethodNotAllowed(w)
	return false
}
