package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpg-service/internal/models"
)

type locationRepo struct {
	db *pgxpool.Pool
}

func NewLocationRepository(db *pgxpool.Pool) LocationRepository {
	return &locationRepo{db: db}
}

const locationColumns = `id, order_id, latitude::float8, longitude::float8, accuracy, recorded_at`

func scanLocation(row scanner, l *models.LocationSample) error {
	return row.Scan(&l.ID, &l.OrderID, &l.Latitude, &l.Longitude, &l.Accuracy, &l.RecordedAt)
}

func (r *locationRepo) Append(ctx context.Context, l *models.LocationSample) error {
	if !l.InRange() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if l.RecordedAt.IsZero() {
		l.RecordedAt = time.Now().UTC()
	}

	sql := `
		INSERT INTO locations (order_id, latitude, longitude, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, sql, l.OrderID, l.Latitude, l.Longitude, l.Accuracy, l.RecordedAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	return nil
}

func (r *locationRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LocationSample, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE order_id = $1 ORDER BY recorded_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations for %s: %w", orderID, err)
	}
	defer rows.Close()

	samples := []models.LocationSample{}
	for rows.Next() {
		var l models.LocationSample
		if err := scanLocation(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan locations: %w", err)
		}
		samples = append(samples, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return samples, nil
}

func (r *locationRepo) Latest(ctx context.Context, orderID uuid.UUID) (*models.LocationSample, error) {
	var l models.LocationSample
	err := scanLocation(r.db.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE order_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		orderID,
	), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest location for %s: %w", orderID, err)
	}

	return &l, nil
}
