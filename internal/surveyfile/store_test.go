package surveyfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswcd/fieldkit/internal/fsutil"
	"github.com/mswcd/fieldkit/internal/nav"
	"github.com/mswcd/fieldkit/internal/survey"
)

func TestSurveyRoundTrip(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store := NewStore(mfs, "/data")

	records := []survey.Record{
		survey.RecordFromLeg(survey.Leg{From: "A", To: "B", Distance: 10, Left: 2, Right: 3}),
		survey.RecordFromLeg(survey.Leg{From: "B", To: "C", Distance: 4.5, Azimuth: 270, Inclination: -10}),
	}
	require.NoError(t, store.SaveSurvey("cave-1", records))
	assert.True(t, mfs.Exists("/data/cave-1/caving_survey.json"))

	got, err := store.LoadSurvey("cave-1")
	require.NoError(t, err)
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("LoadSurvey() mismatch (-want +got):\n%s", diff)
	}
}

func TestSurveyPathStaysUnderRoot(t *testing.T) {
	store := NewStore(fsutil.NewMemoryFileSystem(), "/data")
	assert.Equal(t, "/data/caving_survey.json", store.SurveyPath(""))
	assert.Equal(t, "/data/unknown/caving_survey.json", store.SurveyPath(".."))
	assert.Equal(t, "/data/etc_passwd/caving_survey.json", store.SurveyPath("../../etc/passwd"))
}

func TestSaveEmptySurvey(t *testing.T) {
	store := NewStore(fsutil.NewMemoryFileSystem(), "/data")
	assert.ErrorIs(t, store.SaveSurvey("", nil), ErrNothingToSave)
}

func TestLoadMissingSurvey(t *testing.T) {
	store := NewStore(fsutil.NewMemoryFileSystem(), "/data")
	_, err := store.LoadSurvey("")
	assert.ErrorIs(t, err, ErrNoSavedProject)
}

func TestLoadSurveyWithStringFields(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/data/caving_survey.json", []byte(`[
    {"from": "A", "to": "B", "dist": "abc", "azi": 0, "clino": 0, "left": 1, "right": 1, "up": 0, "down": 0}
]`), 0o644))

	records, err := NewStore(mfs, "/data").LoadSurvey("")
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = records[0].Leg()
	var legErr *survey.LegError
	require.ErrorAs(t, err, &legErr)
	assert.Equal(t, survey.FieldDistance, legErr.Field)
}

func TestWaypointsFile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store := NewStore(mfs, "/data")

	ws, err := store.LoadWaypoints()
	require.NoError(t, err)
	assert.Empty(t, ws)

	in := []nav.Waypoint{
		{ID: "ignored", Name: "Camp", Description: "dry ledge", Lat: -7.9, Lon: 110.6},
		{Name: "Sink", Lat: -7.91, Lon: 110.61},
	}
	require.NoError(t, store.SaveWaypoints(in))

	raw, err := mfs.ReadFile("/data/waypoints.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"desc": "dry ledge"`)
	assert.NotContains(t, string(raw), "ignored")

	out, err := store.LoadWaypoints()
	require.NoError(t, err)
	want := []nav.Waypoint{
		{Name: "Camp", Description: "dry ledge", Lat: -7.9, Lon: 110.6},
		{Name: "Sink", Lat: -7.91, Lon: 110.61},
	}
	assert.Equal(t, want, out)
}

func TestLoadWaypointsMalformed(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/data/waypoints.json", []byte("{"), 0o644))
	_, err := NewStore(mfs, "/data").LoadWaypoints()
	assert.Error(t, err)
}
