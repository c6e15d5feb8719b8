package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sensord/internal/reading"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReading creates a reading whose fields are derived from n so
// that records are distinguishable.
func createTestReading(n int) reading.Reading {
	return reading.Reading{
		Temperature: 20 + float64(n)/10,
		Humidity:    50 + float64(n),
		Lux:         float64(100 * n),
		Level:       float64(n % 5),
		Motion:      n%2 == 1,
	}
}
