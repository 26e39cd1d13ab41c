package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mswcd/fieldkit/internal/nav"
)

// CreateWaypoint validates w, assigns it a UUID and stores it.
func (db *DB) CreateWaypoint(w *nav.Waypoint) error {
	if err := w.Validate(); err != nil {
		return err
	}

	w.ID = uuid.NewString()
	created := nowUnix()
	if _, err := db.Exec(
		`INSERT INTO waypoints (waypoint_id, name, description, lat, lon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Description, w.Lat, w.Lon, created,
	); err != nil {
		return fmt.Errorf("failed to create waypoint: %w", err)
	}
	w.CreatedAt = unixToTime(created)
	return nil
}

// GetWaypoint retrieves a waypoint by ID.
func (db *DB) GetWaypoint(id string) (*nav.Waypoint, error) {
	var w nav.Waypoint
	var created float64
	err := db.QueryRow(`
		SELECT waypoint_id, name, description, lat, lon, created_at
		FROM waypoints
		WHERE waypoint_id = ?
	`, id).Scan(&w.ID, &w.Name, &w.Description, &w.Lat, &w.Lon, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("waypoint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waypoint: %w", err)
	}
	w.CreatedAt = unixToTime(created)
	return &w, nil
}

// ListWaypoints returns all waypoints in the order they were saved.
func (db *DB) ListWaypoints() ([]nav.Waypoint, error) {
	rows, err := db.Query(`
		SELECT waypoint_id, name, description, lat, lon, created_at
		FROM waypoints
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints: %w", err)
	}
	defer rows.Close()

	waypoints := []nav.Waypoint{}
	for rows.Next() {
		var w nav.Waypoint
		var created float64
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.Lat, &w.Lon, &created); err != nil {
			return nil, fmt.Errorf("failed to scan waypoint: %w", err)
		}
		w.CreatedAt = unixToTime(created)
		waypoints = append(waypoints, w)
	}
	return waypoints, rows.Err()
}

// DeleteWaypoint removes a waypoint.
func (db *DB) DeleteWaypoint(id string) error {
	res, err := db.Exec(`DELETE FROM waypoints WHERE waypoint_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waypoint: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("waypoint %s", id))
}

// ReplaceWaypoints swaps all stored waypoints for ws, e.g. when importing a
// waypoints file. IDs are reassigned.
func (db *DB) ReplaceWaypoints(ws []nav.Waypoint) error {
	for i := range ws {
		if err := ws[i].Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM waypoints`); err != nil {
		return fmt.Errorf("failed to clear waypoints: %w", err)
	}
	created := nowUnix()
	for i := range ws {
		ws[i].ID = uuid.NewString()
		ws[i].CreatedAt = unixToTime(created)
		if _, err := tx.Exec(
			`INSERT INTO waypoints (waypoint_id, name, description, lat, lon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ws[i].ID, ws[i].Name, ws[i].Description, ws[i].Lat, ws[i].Lon, created,
		); err != nil {
			return fmt.Errorf("failed to insert waypoint %d: %w", i, err)
		}
	}
	return tx.Commit()
}
