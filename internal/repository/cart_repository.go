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

type cartRepo struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) CartRepository {
	return &cartRepo{db: db}
}

const cartColumns = `
	id,
	user_id,
	product_id,
	product_name,
	weight,
	image_url,
	quantity,
	option,
	total_price,
	created_at,
	updated_at`

func scanCartLine(row scanner, l *models.CartLine) error {
	return row.Scan(
		&l.ID,
		&l.UserID,
		&l.ProductID,
		&l.ProductName,
		&l.Weight,
		&l.ImageURL,
		&l.Quantity,
		&l.Option,
		&l.TotalPrice,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}

func collectCartLines(rows pgx.Rows) ([]models.CartLine, error) {
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		if err := scanCartLine(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan cart lines: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return lines, nil
}

func (r *cartRepo) Create(ctx context.Context, l *models.CartLine) error {
	if l.UserID == uuid.Nil || l.ProductID == uuid.Nil {
		return fmt.Errorf("%w: user and product are required", ErrInvalidInput)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	sql := `
		INSERT INTO cart_lines (
			user_id,
			product_id,
			product_name,
			weight,
			image_url,
			quantity,
			option,
			total_price,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`

	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	err := r.db.QueryRow(ctx, sql,
		l.UserID,
		l.ProductID,
		l.ProductName,
		l.Weight,
		l.ImageURL,
		l.Quantity,
		l.Option,
		l.TotalPrice,
		now,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create cart line: %w", err)
	}

	return nil
}

func (r *cartRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.CartLine, error) {
	sql := `SELECT` + cartColumns + ` FROM cart_lines WHERE id = $1 AND user_id = $2`

	var l models.CartLine
	if err := scanCartLine(r.db.QueryRow(ctx, sql, id, userID), &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart line %s: %w", id, err)
	}

	return &l, nil
}

func (r *cartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	sql := `SELECT` + cartColumns + ` FROM cart_lines WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines by user %s: %w", userID, err)
	}

	return collectCartLines(rows)
}

func (r *cartRepo) ListByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartLine, error) {
	if len(ids) == 0 {
		return []models.CartLine{}, nil
	}

	sql := `SELECT` + cartColumns + ` FROM cart_lines WHERE user_id = $1 AND id = ANY($2::uuid[]) ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, sql, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines by ids: %w", err)
	}

	return collectCartLines(rows)
}

func (r *cartRepo) Update(ctx context.Context, l *models.CartLine) error {
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	sql := `
	UPDATE cart_lines
	SET
		quantity = $1,
		option = $2,
		total_price = $3,
		updated_at = $4
	WHERE id = $5 AND user_id = $6
	RETURNING updated_at`

	err := r.db.QueryRow(ctx, sql,
		l.Quantity,
		l.Option,
		l.TotalPrice,
		time.Now().UTC(),
		l.ID,
		l.UserID,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update cart line %s: %w", l.ID, err)
	}

	return nil
}

func (r *cartRepo) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart line %s: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *cartRepo) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart for %s: %w", userID, err)
	}

	return result.RowsAffected(), nil
}
