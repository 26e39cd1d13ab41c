// Package surveyfile reads and writes the JSON project files kept alongside
// the database: an array of leg records per survey and a shared waypoint
// list.
package surveyfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mswcd/fieldkit/internal/fsutil"
	"github.com/mswcd/fieldkit/internal/nav"
	"github.com/mswcd/fieldkit/internal/security"
	"github.com/mswcd/fieldkit/internal/survey"
)

const (
	SurveyFileName   = "caving_survey.json"
	WaypointFileName = "waypoints.json"
)

var (
	// ErrNothingToSave is returned when saving a survey with no legs.
	ErrNothingToSave = errors.New("no survey data to save")
	// ErrNoSavedProject is returned when loading a survey that was never saved.
	ErrNoSavedProject = errors.New("no saved survey project")
)

// Store keeps project files under a root directory.
type Store struct {
	fs   fsutil.FileSystem
	root string
}

func NewStore(fs fsutil.FileSystem, root string) *Store {
	return &Store{fs: fs, root: root}
}

// SurveyPath is where the survey with the given key is saved. An empty key
// selects the single-project file at the root; other keys are reduced to a
// single directory name under the root.
func (s *Store) SurveyPath(key string) string {
	if key == "" {
		return filepath.Join(s.root, SurveyFileName)
	}
	return filepath.Join(s.root, security.SanitizeFilename(key), SurveyFileName)
}

func (s *Store) WaypointPath() string {
	return filepath.Join(s.root, WaypointFileName)
}

// SaveSurvey writes records to the survey file for key.
func (s *Store) SaveSurvey(key string, records []survey.Record) error {
	if len(records) == 0 {
		return ErrNothingToSave
	}
	return WriteSurvey(s.fs, s.SurveyPath(key), records)
}

// LoadSurvey reads the survey file for key.
func (s *Store) LoadSurvey(key string) ([]survey.Record, error) {
	return ReadSurvey(s.fs, s.SurveyPath(key))
}

// ReadSurvey decodes a survey file. A missing file is ErrNoSavedProject.
func ReadSurvey(fs fsutil.FileSystem, path string) ([]survey.Record, error) {
	if !fs.Exists(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSavedProject)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return survey.DecodeRecords(data)
}

// WriteSurvey encodes records and replaces path atomically.
func WriteSurvey(fs fsutil.FileSystem, path string, records []survey.Record) error {
	data, err := survey.EncodeRecords(records)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fs, path, data, 0o644)
}

// waypointEntry is the on-disk waypoint shape.
type waypointEntry struct {
	Name string  `json:"name"`
	Desc string  `json:"desc"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// SaveWaypoints writes the waypoint list. IDs and timestamps are not kept.
func (s *Store) SaveWaypoints(ws []nav.Waypoint) error {
	entries := make([]waypointEntry, len(ws))
	for i, w := range ws {
		entries[i] = waypointEntry{Name: w.Name, Desc: w.Description, Lat: w.Lat, Lon: w.Lon}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode waypoints: %w", err)
	}
	return fsutil.WriteFileAtomic(s.fs, s.WaypointPath(), data, 0o644)
}

// LoadWaypoints reads the waypoint list. A missing file yields no waypoints.
func (s *Store) LoadWaypoints() ([]nav.Waypoint, error) {
	path := s.WaypointPath()
	if !s.fs.Exists(path) {
		return []nav.Waypoint{}, nil
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []waypointEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	ws := make([]nav.Waypoint, len(entries))
	for i, e := range entries {
		ws[i] = nav.Waypoint{Name: e.Name, Description: e.Desc, Lat: e.Lat, Lon: e.Lon}
	}
	return ws, nil
}
