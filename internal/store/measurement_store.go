package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/icewatch/internal/db"
	"github.com/vbonduro/icewatch/internal/domain"
)

// ErrNotFound is returned when a measurement id does not exist.
var ErrNotFound = errors.New("measurement not found")

const measurementColumns = `id, lat, lng, thickness, image_url, created_at`

type MeasurementStore struct {
	db *db.DB
}

func NewMeasurementStore(d *db.DB) *MeasurementStore {
	return &MeasurementStore{db: d}
}

func (s *MeasurementStore) Create(ctx context.Context, m domain.NewMeasurement) (*domain.Measurement, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO measurements (lat, lng, thickness, image_url) VALUES (?, ?, ?, ?) RETURNING id
	`), m.Lat, m.Lng, m.Thickness, m.ImageURL).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create measurement: %w", err)
	}

	created, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("measurement %d vanished after insert", id)
	}
	return created, nil
}

func (s *MeasurementStore) GetByID(ctx context.Context, id int64) (*domain.Measurement, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT `+measurementColumns+` FROM measurements WHERE id = ?
	`), id)

	m, err := scanMeasurement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return m, nil
}

// List returns every measurement, oldest first.
func (s *MeasurementStore) List(ctx context.Context) ([]*domain.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+measurementColumns+` FROM measurements ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	var measurements []*domain.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		measurements = append(measurements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}

	return measurements, nil
}

func (s *MeasurementStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM measurements WHERE id = ?
	`), id)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping reports whether the database is reachable.
func (s *MeasurementStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(sc scanner) (*domain.Measurement, error) {
	m := &domain.Measurement{}
	var imageURL sql.NullString
	if err := sc.Scan(&m.ID, &m.Lat, &m.Lng, &m.Thickness, &imageURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		m.ImageURL = &imageURL.String
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}
