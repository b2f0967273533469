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

type stockAlertRepo struct {
	db *pgxpool.Pool
}

func NewStockAlertRepository(db *pgxpool.Pool) StockAlertRepository {
	return &stockAlertRepo{db: db}
}

func (r *stockAlertRepo) Raise(ctx context.Context, a *models.StockAlert) (bool, error) {
	if a.ProductID == uuid.Nil {
		return false, fmt.Errorf("%w: product ID cannot be empty", ErrInvalidInput)
	}

	sql := `
		INSERT INTO stock_alerts (
			product_id,
			product_name,
			current_stock,
			threshold,
			alert_type,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, alert_type) WHERE NOT is_resolved DO NOTHING
		RETURNING id`

	a.CreatedAt = time.Now().UTC()

	err := r.db.QueryRow(ctx, sql,
		a.ProductID,
		a.ProductName,
		a.CurrentStock,
		a.Threshold,
		a.AlertType,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to raise stock alert: %w", err)
	}

	return true, nil
}

func (r *stockAlertRepo) Resolve(ctx context.Context, id uuid.UUID) error {
	sql := `UPDATE stock_alerts SET is_resolved = TRUE, resolved_at = $1 WHERE id = $2 AND NOT is_resolved`

	result, err := r.db.Exec(ctx, sql, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve stock alert %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *stockAlertRepo) ResolveForProduct(ctx context.Context, productID uuid.UUID, types ...models.StockAlertType) (int64, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	sql := `
		UPDATE stock_alerts
		SET is_resolved = TRUE, resolved_at = $1
		WHERE product_id = $2 AND NOT is_resolved AND alert_type = ANY($3::text[])`

	result, err := r.db.Exec(ctx, sql, time.Now().UTC(), productID, names)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve stock alerts for %s: %w", productID, err)
	}

	return result.RowsAffected(), nil
}

func (r *stockAlertRepo) ListOpen(ctx context.Context) ([]models.StockAlert, error) {
	sql := `
		SELECT
			id,
			product_id,
			product_name,
			current_stock,
			threshold,
			alert_type,
			is_resolved,
			created_at,
			resolved_at
		FROM stock_alerts
		WHERE NOT is_resolved
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.StockAlert{}
	for rows.Next() {
		var a models.StockAlert
		if err := rows.Scan(
			&a.ID,
			&a.ProductID,
			&a.ProductName,
			&a.CurrentStock,
			&a.Threshold,
			&a.AlertType,
			&a.IsResolved,
			&a.CreatedAt,
			&a.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock alerts: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return alerts, nil
}
