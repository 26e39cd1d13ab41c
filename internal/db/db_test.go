package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswcd/fieldkit/internal/nav"
	"github.com/mswcd/fieldkit/internal/survey"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func leg(from, to string, dist, azi float64) survey.Leg {
	return survey.Leg{From: from, To: to, Distance: dist, Azimuth: azi, Left: 1, Right: 1.5, Up: 2, Down: 0.5}
}

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous) // NORMAL

	var tempStore int
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 2, tempStore) // MEMORY

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestSurveyCRUD(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreateSurvey("   ")
	assert.Error(t, err)

	a, err := db.CreateSurvey("Gua Pindul")
	require.NoError(t, err)
	assert.Len(t, a.ID, 36)
	b, err := db.CreateSurvey("Luweng Jaran")
	require.NoError(t, err)

	got, err := db.GetSurvey(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gua Pindul", got.Name)
	assert.Zero(t, got.LegCount)

	list, err := db.ListSurveys()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	_, err = db.GetSurvey("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeleteSurvey(b.ID))
	assert.ErrorIs(t, db.DeleteSurvey(b.ID), ErrNotFound)
}

func TestAppendLegOrdering(t *testing.T) {
	db := newTestDB(t)
	s, err := db.CreateSurvey("s")
	require.NoError(t, err)

	for i, l := range []survey.Leg{leg("A", "B", 10, 0), leg("B", "C", 5, 90), leg("C", "D", 3, 180)} {
		seq, err := db.AppendLeg(s.ID, l)
		require.NoError(t, err)
		assert.Equal(t, i+1, seq)
	}

	legs, err := db.SurveyLegs(s.ID)
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, leg("A", "B", 10, 0), legs[0].Leg)
	assert.Equal(t, []string{"A", "B", "C"}, []string{legs[0].From, legs[1].From, legs[2].From})

	got, err := db.GetSurvey(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LegCount)
}

func TestAppendLegRejectsInvalid(t *testing.T) {
	db := newTestDB(t)
	s, err := db.CreateSurvey("s")
	require.NoError(t, err)

	_, err = db.AppendLeg(s.ID, leg("A", "B", -1, 0))
	assert.ErrorIs(t, err, survey.ErrInvalidLegData)

	_, err = db.AppendLeg("missing", leg("A", "B", 1, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLegKeepsSequence(t *testing.T) {
	db := newTestDB(t)
	s, err := db.CreateSurvey("s")
	require.NoError(t, err)
	for _, l := range []survey.Leg{leg("A", "B", 1, 0), leg("B", "C", 1, 0), leg("C", "D", 1, 0)} {
		_, err := db.AppendLeg(s.ID, l)
		require.NoError(t, err)
	}

	require.NoError(t, db.DeleteLeg(s.ID, 2))
	assert.ErrorIs(t, db.DeleteLeg(s.ID, 2), ErrNotFound)

	legs, err := db.SurveyLegs(s.ID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, 1, legs[0].Seq)
	assert.Equal(t, 3, legs[1].Seq)

	seq, err := db.AppendLeg(s.ID, leg("D", "E", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, seq)
}

func TestClearAndReplaceLegs(t *testing.T) {
	db := newTestDB(t)
	s, err := db.CreateSurvey("s")
	require.NoError(t, err)
	_, err = db.AppendLeg(s.ID, leg("A", "B", 1, 0))
	require.NoError(t, err)

	replacement := []survey.Leg{leg("X", "Y", 2, 45), leg("Y", "Z", 3, 135)}
	require.NoError(t, db.ReplaceLegs(s.ID, replacement))

	legs, err := db.SurveyLegs(s.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement, Legs(legs))
	assert.Equal(t, 2, legs[1].Seq)

	// A bad leg leaves the stored survey untouched.
	err = db.ReplaceLegs(s.ID, []survey.Leg{leg("P", "Q", 1, 0), leg("Q", "R", -4, 0)})
	var legErr *survey.LegError
	require.ErrorAs(t, err, &legErr)
	assert.Equal(t, 1, legErr.Index)
	legs, err = db.SurveyLegs(s.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement, Legs(legs))

	require.NoError(t, db.ClearSurvey(s.ID))
	legs, err = db.SurveyLegs(s.ID)
	require.NoError(t, err)
	assert.Empty(t, legs)

	assert.ErrorIs(t, db.ClearSurvey("missing"), ErrNotFound)
	_, err = db.SurveyLegs("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSurveyCascadesLegs(t *testing.T) {
	db := newTestDB(t)
	s, err := db.CreateSurvey("s")
	require.NoError(t, err)
	_, err = db.AppendLeg(s.ID, leg("A", "B", 1, 0))
	require.NoError(t, err)

	require.NoError(t, db.DeleteSurvey(s.ID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM survey_legs`).Scan(&n))
	assert.Zero(t, n)
}

func TestWaypointCRUD(t *testing.T) {
	db := newTestDB(t)

	w := &nav.Waypoint{Name: "Entrance", Description: "gate", Lat: -7.9, Lon: 110.6}
	require.NoError(t, db.CreateWaypoint(w))
	assert.NotEmpty(t, w.ID)
	assert.False(t, w.CreatedAt.IsZero())

	assert.ErrorIs(t, db.CreateWaypoint(&nav.Waypoint{Name: "bad", Lat: 100}), nav.ErrBadLatitude)

	got, err := db.GetWaypoint(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "gate", got.Description)
	assert.Equal(t, -7.9, got.Lat)

	list, err := db.ListWaypoints()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, db.DeleteWaypoint(w.ID))
	_, err = db.GetWaypoint(w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteWaypoint(w.ID), ErrNotFound)
}

func TestReplaceWaypoints(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateWaypoint(&nav.Waypoint{Name: "old", Lat: 1, Lon: 1}))

	ws := []nav.Waypoint{{Name: "a", Lat: 1, Lon: 2}, {Name: "b", Lat: 3, Lon: 4}}
	require.NoError(t, db.ReplaceWaypoints(ws))

	list, err := db.ListWaypoints()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	assert.ErrorIs(t, db.ReplaceWaypoints([]nav.Waypoint{{Name: ""}}), nav.ErrNameRequired)
	list, err = db.ListWaypoints()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
