package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sensord/internal/reading"
)

const selectColumns = `id, temp, humidity, lux, level, ir, timestamp`

// FetchByID retrieves a single record.
// Returns found=false (and no error) if no record has that ID.
func (s *Store) FetchByID(ctx context.Context, id int64) (reading.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM sensor_data
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reading.Record{}, false, nil
	}
	if err != nil {
		return reading.Record{}, false, fmt.Errorf("fetch record %d: %w", id, err)
	}
	return rec, true, nil
}

// MaxID returns the highest record ID, or 0 if the table is empty.
func (s *Store) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM sensor_data`).Scan(&id); err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	return id, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Recent returns up to limit records, newest first.
//
// Returns an empty slice (not nil) if the table is empty.
func (s *Store) Recent(ctx context.Context, limit int) ([]reading.Record, error) {
	if limit <= 0 {
		return []reading.Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM sensor_data
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	records := []reading.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (reading.Record, error) {
	var (
		rec reading.Record
		ir  int64
		ts  string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Temperature,
		&rec.Humidity,
		&rec.Lux,
		&rec.Level,
		&ir,
		&ts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reading.Record{}, err
		}
		return reading.Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Motion = ir != 0
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return reading.Record{}, fmt.Errorf("parse timestamp %q of record %d: %w", ts, rec.ID, err)
	}

	return rec, nil
}
