package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mswcd/fieldkit/internal/survey"
)

// ErrNotFound is returned when a survey, leg or waypoint does not exist.
var ErrNotFound = errors.New("not found")

// Survey is a named, ordered chain of legs.
type Survey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	LegCount  int       `json:"leg_count"`
}

// StoredLeg is a leg with its position in the survey. Seq starts at 1 and
// is not renumbered when earlier legs are deleted.
type StoredLeg struct {
	Seq int
	survey.Leg
}

func unixToTime(v float64) time.Time {
	sec := int64(v)
	return time.Unix(sec, int64((v-float64(sec))*1e9))
}

// CreateSurvey inserts a survey with a fresh UUID.
func (db *DB) CreateSurvey(name string) (*Survey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("survey name is required")
	}

	s := &Survey{ID: uuid.NewString(), Name: name}
	created := nowUnix()
	if _, err := db.Exec(
		`INSERT INTO surveys (survey_id, name, created_at) VALUES (?, ?, ?)`,
		s.ID, s.Name, created,
	); err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}
	s.CreatedAt = unixToTime(created)
	return s, nil
}

// GetSurvey retrieves a survey by ID.
func (db *DB) GetSurvey(id string) (*Survey, error) {
	query := `
		SELECT s.survey_id, s.name, s.created_at, COUNT(l.seq)
		FROM surveys s
		LEFT JOIN survey_legs l ON l.survey_id = s.survey_id
		WHERE s.survey_id = ?
		GROUP BY s.survey_id
	`

	var s Survey
	var created float64
	err := db.QueryRow(query, id).Scan(&s.ID, &s.Name, &created, &s.LegCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("survey %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	s.CreatedAt = unixToTime(created)
	return &s, nil
}

// ListSurveys returns all surveys, oldest first.
func (db *DB) ListSurveys() ([]Survey, error) {
	query := `
		SELECT s.survey_id, s.name, s.created_at, COUNT(l.seq)
		FROM surveys s
		LEFT JOIN survey_legs l ON l.survey_id = s.survey_id
		GROUP BY s.survey_id
		ORDER BY s.created_at, s.rowid
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	surveys := []Survey{}
	for rows.Next() {
		var s Survey
		var created float64
		if err := rows.Scan(&s.ID, &s.Name, &created, &s.LegCount); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		s.CreatedAt = unixToTime(created)
		surveys = append(surveys, s)
	}
	return surveys, rows.Err()
}

// DeleteSurvey removes a survey and, by cascade, its legs.
func (db *DB) DeleteSurvey(id string) error {
	res, err := db.Exec(`DELETE FROM surveys WHERE survey_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("survey %s", id))
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func surveyExists(q interface {
	QueryRow(string, ...any) *sql.Row
}, id string) error {
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM surveys WHERE survey_id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up survey: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("survey %s: %w", id, ErrNotFound)
	}
	return nil
}

const insertLeg = `
	INSERT INTO survey_legs (
		survey_id, seq, from_station, to_station,
		dist, azi, clino, left_m, right_m, up_m, down_m
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertLegArgs(surveyID string, seq int, l survey.Leg) []any {
	return []any{
		surveyID, seq, l.From, l.To,
		l.Distance, l.Azimuth, l.Inclination, l.Left, l.Right, l.Up, l.Down,
	}
}

// AppendLeg validates leg and stores it after the last leg of the survey,
// returning its sequence number. Numbering continues past deleted legs.
func (db *DB) AppendLeg(surveyID string, leg survey.Leg) (int, error) {
	if err := leg.Validate(); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := surveyExists(tx, surveyID); err != nil {
		return 0, err
	}

	var seq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM survey_legs WHERE survey_id = ?`, surveyID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate leg sequence: %w", err)
	}

	if _, err := tx.Exec(insertLeg, insertLegArgs(surveyID, seq, leg)...); err != nil {
		return 0, fmt.Errorf("failed to append leg: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit leg: %w", err)
	}
	return seq, nil
}

// SurveyLegs returns the legs of a survey in recording order.
func (db *DB) SurveyLegs(surveyID string) ([]StoredLeg, error) {
	if err := surveyExists(db, surveyID); err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT seq, from_station, to_station,
			dist, azi, clino, left_m, right_m, up_m, down_m
		FROM survey_legs
		WHERE survey_id = ?
		ORDER BY seq
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	legs := []StoredLeg{}
	for rows.Next() {
		var l StoredLeg
		if err := rows.Scan(
			&l.Seq, &l.From, &l.To,
			&l.Distance, &l.Azimuth, &l.Inclination,
			&l.Left, &l.Right, &l.Up, &l.Down,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

// Legs strips sequence numbers, leaving the ordered chain for projection.
func Legs(stored []StoredLeg) []survey.Leg {
	legs := make([]survey.Leg, len(stored))
	for i, l := range stored {
		legs[i] = l.Leg
	}
	return legs
}

// DeleteLeg removes one leg. Later legs keep their sequence numbers.
func (db *DB) DeleteLeg(surveyID string, seq int) error {
	res, err := db.Exec(`DELETE FROM survey_legs WHERE survey_id = ? AND seq = ?`, surveyID, seq)
	if err != nil {
		return fmt.Errorf("failed to delete leg: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("leg %d of survey %s", seq, surveyID))
}

// ClearSurvey removes every leg but keeps the survey.
func (db *DB) ClearSurvey(surveyID string) error {
	if err := surveyExists(db, surveyID); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM survey_legs WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("failed to clear survey: %w", err)
	}
	return nil
}

// ReplaceLegs atomically swaps the survey's legs for legs, numbered from 1.
// Nothing is written if any leg fails validation.
func (db *DB) ReplaceLegs(surveyID string, legs []survey.Leg) error {
	for i, l := range legs {
		if err := l.Validate(); err != nil {
			var legErr *survey.LegError
			if errors.As(err, &legErr) {
				legErr.Index = i
			}
			return err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := surveyExists(tx, surveyID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM survey_legs WHERE survey_id = ?`, surveyID); err != nil {
		return fmt.Errorf("failed to clear survey: %w", err)
	}

	stmt, err := tx.Prepare(insertLeg)
	if err != nil {
		return fmt.Errorf("failed to prepare leg insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range legs {
		if _, err := stmt.Exec(insertLegArgs(surveyID, i+1, l)...); err != nil {
			return fmt.Errorf("failed to insert leg %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit legs: %w", err)
	}
	return nil
}
