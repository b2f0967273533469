package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpg-service/internal/models"
)

type productRepo struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `
	id,
	name,
	description,
	weight,
	price,
	image_url,
	option,
	stock_quantity,
	is_active,
	created_at,
	updated_at`

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Weight,
		&p.Price,
		&p.ImageURL,
		&p.Option,
		&p.StockQuantity,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Weight) == "" {
		return fmt.Errorf("%w: product weight required", ErrInvalidInput)
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("%w: product price should be positive", ErrInvalidInput)
	}
	if !p.Option.Valid() {
		return fmt.Errorf("%w: product option must be swap or new", ErrInvalidInput)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}

	sql := `
		INSERT INTO products (
			name,
			description,
			weight,
			price,
			image_url,
			option,
			stock_quantity,
			is_active,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		RETURNING id`

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsActive = true

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Description,
		p.Weight,
		p.Price,
		p.ImageURL,
		p.Option,
		p.StockQuantity,
		now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT` + productColumns + ` FROM products WHERE id = $1`

	var product models.Product
	if err := scanProduct(r.db.QueryRow(ctx, sql, id), &product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by id %s: %w", id, err)
	}

	return &product, nil
}

var productSortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"name":           "name",
	"price":          "price",
	"stock_quantity": "stock_quantity",
}

// buildProductQuery renders the WHERE/ORDER BY/LIMIT tail for filter.
func buildProductQuery(filter ProductFilter) (where string, tail string, args []any) {
	var conds []string

	if filter.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if filter.Option != "" {
		args = append(args, string(filter.Option))
		conds = append(conds, fmt.Sprintf("option = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	column, ok := productSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	tail = fmt.Sprintf(" ORDER BY %s %s, id", column, direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		tail += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return where, tail, args
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]models.Product, int, error) {
	where, tail, args := buildProductQuery(filter)

	countArgs := args
	if filter.Limit > 0 {
		countArgs = args[:len(args)-2]
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT`+productColumns+` FROM products`+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return products, total, nil
}

// updateProductSQL leaves stock_quantity alone. Stock only moves through
// AdjustStock and checkout, so an edit based on a stale read cannot undo a
// sale.
const updateProductSQL = `
	UPDATE products
	SET
		name = $1,
		description = $2,
		weight = $3,
		price = $4,
		image_url = $5,
		option = $6,
		is_active = $7,
		updated_at = $8
	WHERE id = $9
	RETURNING stock_quantity, created_at, updated_at`

// Update writes the editable fields and refreshes p with the stored stock
// count.
func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}
	if err := validateProduct(p); err != nil {
		return err
	}

	err := r.db.QueryRow(ctx, updateProductSQL,
		p.Name,
		p.Description,
		p.Weight,
		p.Price,
		p.ImageURL,
		p.Option,
		p.IsActive,
		time.Now().UTC(),
		p.ID,
	).Scan(&p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}

	return nil
}

func (r *productRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.Exec(ctx, sql, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, change int, opType models.OperationType, reason string) (*models.Product, error) {
	if change == 0 {
		return nil, fmt.Errorf("%w: the stock change cannot be 0", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `
	UPDATE products SET
		stock_quantity = stock_quantity + $1,
		updated_at = $2
	WHERE id = $3 AND stock_quantity + $1 >= 0
	RETURNING` + productColumns

	var p models.Product
	if err := scanProduct(tx.QueryRow(ctx, sql, change, time.Now().UTC(), id), &p); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update product stock %s: %w", id, err)
		}

		var current int
		err := tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read product stock %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: insufficient stock. Current: %d, Requested change: %d", ErrNotEnough, current, change)
	}

	if err := insertOperation(ctx, tx, &models.StockOperation{
		ProductID:     id,
		OperationType: opType,
		ChangeQuant:   change,
		Reason:        reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &p, nil
}
