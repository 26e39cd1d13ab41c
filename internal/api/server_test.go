package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswcd/fieldkit/internal/config"
	"github.com/mswcd/fieldkit/internal/db"
	"github.com/mswcd/fieldkit/internal/fsutil"
	"github.com/mswcd/fieldkit/internal/gps"
	"github.com/mswcd/fieldkit/internal/surveyfile"
	"github.com/mswcd/fieldkit/internal/testutil"
)

type fakeFix struct {
	fix gps.Fix
	err error
}

func (f *fakeFix) Current() (gps.Fix, error) { return f.fix, f.err }

type testEnv struct {
	server *Server
	mux    *http.ServeMux
	db     *db.DB
	fix    *fakeFix
	fs     *fsutil.MemoryFileSystem
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := testutil.NewTestDB(t)
	fix := &fakeFix{err: gps.ErrNoFix}
	mfs := fsutil.NewMemoryFileSystem()
	s := NewServer(database, fix, surveyfile.NewStore(mfs, "/projects"), config.EmptyConfig())
	return &testEnv{server: s, mux: s.ServeMux(), db: database, fix: fix, fs: mfs}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) createSurvey(t *testing.T, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/surveys", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[db.Survey](t, rec).ID
}

const legAB = `{"from":"A","to":"B","dist":10,"azi":0,"clino":0,"left":2,"right":3,"up":1,"down":1}`

func TestSurveyLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/surveys", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/surveys", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/surveys", `{"title":"x"}`).Code)

	id := e.createSurvey(t, "Gua Pindul")

	rec = e.do(t, http.MethodGet, "/surveys/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Survey db.Survey  `json:"survey"`
		Legs   []legView `json:"legs"`
	}](t, rec)
	assert.Equal(t, "Gua Pindul", body.Survey.Name)
	assert.Empty(t, body.Legs)

	testutil.AssertStatusCode(t, e.do(t, http.MethodDelete, "/surveys/"+id, "").Code, http.StatusNoContent)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/surveys/"+id, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodPut, "/surveys", "").Code)
}

func TestAppendLegReturnsProjection(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")

	rec := e.do(t, http.MethodPost, "/surveys/"+id+"/legs?scale=1&origin_x=0&origin_y=0", legAB)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[struct {
		Seq        int            `json:"seq"`
		Log        string         `json:"log"`
		Projection projectionView `json:"projection"`
	}](t, rec)
	assert.Equal(t, 1, body.Seq)
	assert.Equal(t, "St: A-B, Dist: 10m, Azi: 0°", body.Log)
	require.Len(t, body.Projection.Stations, 1)

	st := body.Projection.Stations[0]
	assert.InDelta(t, 0, st.End.X, 1e-9)
	assert.InDelta(t, 10, st.End.Y, 1e-9)
	assert.InDelta(t, -2, st.WallLeft.X, 1e-9)
	assert.InDelta(t, 3, st.WallRight.X, 1e-9)
	assert.InDelta(t, 10, body.Projection.HorizontalLength, 1e-9)
	assert.Equal(t, "m", body.Projection.LengthUnits)
}

func TestAppendLegRejectsNonNumeric(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")

	rec := e.do(t, http.MethodPost, "/surveys/"+id+"/legs",
		`{"from":"A","to":"B","dist":"abc","azi":0,"clino":0,"left":1,"right":1,"up":0,"down":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "dist", body["field"])

	rec = e.do(t, http.MethodPost, "/surveys/"+id+"/legs",
		`{"from":"A","to":"B","dist":5,"azi":0,"clino":0,"left":-1,"right":1,"up":0,"down":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "left", decode[map[string]interface{}](t, rec)["field"])

	rec = e.do(t, http.MethodGet, "/surveys/"+id+"/legs", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/surveys/missing/legs", legAB).Code)
}

func TestProjectionQuery(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs", legAB).Code)

	// defaults: scale 10 from origin (180, 370)
	rec := e.do(t, http.MethodGet, "/surveys/"+id+"/projection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[projectionView](t, rec)
	assert.Equal(t, 10.0, view.Options.Scale)
	assert.InDelta(t, 180, view.Stations[0].End.X, 1e-9)
	assert.InDelta(t, 470, view.Stations[0].End.Y, 1e-9)
	assert.InDelta(t, 10, view.HorizontalLength, 1e-9, "length is reported in metres")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/surveys/"+id+"/projection?scale=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/surveys/"+id+"/projection?scale=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/surveys/"+id+"/projection?policy=maybe", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/surveys/nope/projection", "").Code)
}

// insertRawLeg stores a leg without validation, as an older database or a
// hand edit might.
func (e *testEnv) insertRawLeg(t *testing.T, id string, seq int, dist float64) {
	t.Helper()
	_, err := e.db.Exec(`
		INSERT INTO survey_legs (survey_id, seq, from_station, to_station, dist, azi, clino, left_m, right_m, up_m, down_m)
		VALUES (?, ?, ?, ?, ?, 0, 0, 1, 1, 0, 0)
	`, id, seq, fmt.Sprintf("S%d", seq), fmt.Sprintf("S%d", seq+1), dist)
	require.NoError(t, err)
}

func TestProjectionPolicyWithStoredInvalidLeg(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")
	e.insertRawLeg(t, id, 1, 10)
	e.insertRawLeg(t, id, 2, -4)
	e.insertRawLeg(t, id, 3, 5)

	base := "/surveys/" + id + "/projection?scale=1&origin_x=0&origin_y=0"

	t.Run("abort", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, base+"&policy=abort", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		view := decode[projectionView](t, rec)
		assert.NotEmpty(t, view.Error)
		assert.Equal(t, "abort", view.Options.Policy)
		require.Len(t, view.Stations, 1)
		assert.Equal(t, 1, view.Stations[0].Seq)
		require.Len(t, view.Rejected, 1)
		assert.Equal(t, 2, view.Rejected[0].Seq)
		assert.Equal(t, "dist", view.Rejected[0].Field)
		assert.InDelta(t, 10, view.Cursor.Y, 1e-9)
	})

	t.Run("skip", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, base+"&policy=skip", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		view := decode[projectionView](t, rec)
		assert.Empty(t, view.Error)
		require.Len(t, view.Stations, 2)
		assert.Equal(t, 1, view.Stations[0].Seq)
		assert.Equal(t, 3, view.Stations[1].Seq)
		require.Len(t, view.Rejected, 1)
		assert.Equal(t, 2, view.Rejected[0].Seq)
		assert.InDelta(t, 10, view.Stations[1].Start.Y, 1e-9, "rejected leg must not move the cursor")
		assert.InDelta(t, 15, view.Cursor.Y, 1e-9)
	})
}

func TestDeleteLegs(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs", legAB).Code)
	}

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/surveys/"+id+"/legs/2", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/surveys/"+id+"/legs/2", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodDelete, "/surveys/"+id+"/legs/zero", "").Code)

	view := decode[projectionView](t, e.do(t, http.MethodGet, "/surveys/"+id+"/projection", ""))
	require.Len(t, view.Stations, 2)
	assert.Equal(t, 1, view.Stations[0].Seq)
	assert.Equal(t, 3, view.Stations[1].Seq)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/surveys/"+id+"/legs", "").Code)
	assert.JSONEq(t, `[]`, e.do(t, http.MethodGet, "/surveys/"+id+"/legs", "").Body.String())
}

func TestStationLog(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs", legAB).Code)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs",
		`{"from":"B","to":"C","dist":"4.5","azi":"270","clino":0,"left":0,"right":0,"up":0,"down":0}`).Code)

	rec := e.do(t, http.MethodGet, "/surveys/"+id+"/log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"St: A-B, Dist: 10m, Azi: 0°",
		"St: B-C, Dist: 4.5m, Azi: 270°",
	}, decode[map[string][]string](t, rec)["lines"])
}

func TestRenderEndpoints(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "Render Cave")
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs", legAB).Code)

	rec := e.do(t, http.MethodGet, "/surveys/"+id+"/plot.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = e.do(t, http.MethodGet, "/surveys/"+id+"/plot.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = e.do(t, http.MethodGet, "/surveys/"+id+"/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Render Cave")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/surveys/missing/plot.png", "").Code)
}

func TestSurveyFileSaveLoad(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/surveys/"+id+"/save", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/surveys/"+id+"/load", "").Code)

	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/surveys/"+id+"/legs", legAB).Code)
	rec := e.do(t, http.MethodPost, "/surveys/"+id+"/save", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, e.fs.Exists("/projects/"+id+"/caving_survey.json"))

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/surveys/"+id+"/legs", "").Code)
	rec = e.do(t, http.MethodPost, "/surveys/"+id+"/load", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	legs := decode[[]legView](t, e.do(t, http.MethodGet, "/surveys/"+id+"/legs", ""))
	require.Len(t, legs, 1)
	assert.Equal(t, "B", legs[0].To)
}

func TestSurveyFileLoadRejectsBadRecord(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSurvey(t, "s")
	require.NoError(t, e.fs.WriteFile("/projects/"+id+"/caving_survey.json", []byte(testutil.SampleSurvey), 0o644))

	rec := e.do(t, http.MethodPost, "/surveys/"+id+"/load", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "dist", body["field"])
	assert.Equal(t, float64(1), body["index"])
}

func TestWaypoints(t *testing.T) {
	e := newTestEnv(t)

	// no coordinates and no fix
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/waypoints", `{"name":"here"}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/waypoints", `{"name":"x","lat":95,"lon":0}`).Code)

	rec := e.do(t, http.MethodPost, "/waypoints", `{"name":"Camp","description":"dry","lat":-7.5,"lon":110.2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	camp := decode[waypointView](t, rec)
	assert.Equal(t, "Lat: -7.5000, Lon: 110.2000", camp.Label)

	e.fix.fix, e.fix.err = gps.Fix{Lat: -7.6, Lon: 110.2}, nil
	rec = e.do(t, http.MethodPost, "/waypoints", `{"name":"Here"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, -7.6, decode[waypointView](t, rec).Lat)

	list := decode[[]waypointView](t, e.do(t, http.MethodGet, "/waypoints", ""))
	require.Len(t, list, 2)

	rec = e.do(t, http.MethodGet, "/waypoints/"+camp.ID+"/nav", "")
	require.Equal(t, http.StatusOK, rec.Code)
	heading := decode[map[string]interface{}](t, rec)
	assert.InDelta(t, 11132, heading["distance_m"], 15)
	assert.Equal(t, "N", heading["cardinal"])

	rec = e.do(t, http.MethodGet, "/waypoints.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/waypoints/"+camp.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/waypoints/"+camp.ID, "").Code)
}

func TestWaypointFileSaveLoad(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/waypoints", `{"name":"Camp","lat":1,"lon":2}`).Code)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/waypoints/save", "").Code)
	assert.True(t, e.fs.Exists("/projects/waypoints.json"))

	require.NoError(t, e.fs.WriteFile("/projects/waypoints.json",
		[]byte(`[{"name":"A","desc":"","lat":1,"lon":1},{"name":"B","desc":"x","lat":2,"lon":2}]`), 0o644))
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/waypoints/load", "").Code)

	list := decode[[]waypointView](t, e.do(t, http.MethodGet, "/waypoints", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[1].Description)
}

func TestGPSEndpoint(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/gps", "").Code)

	e.fix.fix, e.fix.err = gps.Fix{Lat: 1, Lon: 2, SpeedMPS: 10}, nil
	rec := e.do(t, http.MethodGet, "/gps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "kmph", body["speed_units"])
	assert.InDelta(t, 36, body["speed"], 1e-9)
	assert.Equal(t, float64(1), body["lat"])
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, statusCodeColor(200), "200")
}
