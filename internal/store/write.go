package store

import (
	"context"
	"fmt"

	"github.com/roach88/sensord/internal/reading"
)

// Insert appends a reading to sensor_data and returns the assigned ID.
//
// The timestamp column is filled by SQLite at insert time. The reading is
// not validated here; callers validate before persisting.
func (s *Store) Insert(ctx context.Context, r reading.Reading) (int64, error) {
	ir := 0
	if r.Motion {
		ir = 1
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_data (temp, humidity, lux, level, ir)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.Temperature,
		r.Humidity,
		r.Lux,
		r.Level,
		ir,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert reading: last insert id: %w", err)
	}

	return id, nil
}
