package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpg-service/internal/models"
)

type operationRepo struct {
	db *pgxpool.Pool
}

func NewOperationRepository(db *pgxpool.Pool) OperationRepository {
	return &operationRepo{db: db}
}

var validOperationTypes = map[models.OperationType]bool{
	models.OperationIncoming:   true,
	models.OperationOutgoing:   true,
	models.OperationAdjustment: true,
}

// insertOperation writes a stock ledger entry inside an open transaction.
func insertOperation(ctx context.Context, tx pgx.Tx, o *models.StockOperation) error {
	if o.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product ID cannot be empty", ErrInvalidInput)
	}
	if o.ChangeQuant == 0 {
		return fmt.Errorf("%w: the variable quantity cannot be 0", ErrInvalidInput)
	}
	if !validOperationTypes[o.OperationType] {
		return fmt.Errorf("%w: invalid operation type '%s'", ErrInvalidInput, o.OperationType)
	}

	sql := `
		INSERT INTO stock_operations (
			product_id,
			order_id,
			operation_type,
			change_quant,
			reason,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	o.CreatedAt = time.Now().UTC()

	err := tx.QueryRow(ctx, sql,
		o.ProductID,
		o.OrderID,
		o.OperationType,
		o.ChangeQuant,
		o.Reason,
		o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

func (r *operationRepo) GetByProductID(ctx context.Context, productID uuid.UUID) ([]models.StockOperation, error) {
	return r.list(ctx, "product_id", productID)
}

func (r *operationRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockOperation, error) {
	return r.list(ctx, "order_id", orderID)
}

func (r *operationRepo) list(ctx context.Context, column string, id uuid.UUID) ([]models.StockOperation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, column)
	}

	sql := `
		SELECT
			id,
			product_id,
			order_id,
			operation_type,
			change_quant,
			reason,
			created_at
		FROM stock_operations
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get operations by %s: %w", column, err)
	}
	defer rows.Close()

	operations := []models.StockOperation{}
	for rows.Next() {
		var o models.StockOperation
		if err := rows.Scan(
			&o.ID,
			&o.ProductID,
			&o.OrderID,
			&o.OperationType,
			&o.ChangeQuant,
			&o.Reason,
			&o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operations: %w", err)
		}
		operations = append(operations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return operations, nil
}
