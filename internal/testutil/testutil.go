// Package testutil provides shared test fixtures for packages above the
// storage layer.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mswcd/fieldkit/internal/db"
)

// SampleSurvey is a three-leg survey file whose second record has a
// non-numeric distance.
const SampleSurvey = `[
    {"from": "A", "to": "B", "dist": 10, "azi": 0, "clino": 0, "left": 2, "right": 3, "up": 1, "down": 1},
    {"from": "B", "to": "C", "dist": "abc", "azi": 90, "clino": 0, "left": 1, "right": 1, "up": 0, "down": 0},
    {"from": "B", "to": "C", "dist": 5, "azi": 90, "clino": 0, "left": 1, "right": 1, "up": 0, "down": 0}
]`

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestDB opens a migrated database in a per-test temporary directory
// and closes it when the test ends.
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return database
}

// WriteTempFile writes data to name inside a fresh temporary directory and
// returns the full path.
func WriteTempFile(t testing.TB, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
