package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lpg-service/internal/models"
)

type orderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `
	id,
	user_id,
	total_amount,
	payment_method,
	status,
	delivery_address,
	notes,
	delivery_date,
	created_at,
	updated_at`

func scanOrder(row scanner, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.Status,
		&o.DeliveryAddress,
		&o.Notes,
		&o.DeliveryDate,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return orders, nil
}

func (r *orderRepo) CreateFromCart(ctx context.Context, order *models.Order, lineIDs []uuid.UUID) error {
	if order == nil {
		return fmt.Errorf("%w: order cannot be nil", ErrInvalidInput)
	}
	if order.UserID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	if len(lineIDs) == 0 {
		return fmt.Errorf("%w: cart selection cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := `SELECT` + cartColumns + `
		FROM cart_lines
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY created_at, id
		FOR UPDATE`

	rows, err := tx.Query(ctx, sql, order.UserID, lineIDs)
	if err != nil {
		return fmt.Errorf("failed to lock cart lines: %w", err)
	}

	lines, err := collectCartLines(rows)
	if err != nil {
		return err
	}

	if len(lines) != len(uniqueIDs(lineIDs)) {
		return fmt.Errorf("%w: some cart lines are not in the cart", ErrNotFound)
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice)
	}

	now := time.Now().UTC()
	order.TotalAmount = total
	order.Status = models.StatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	insert := `
		INSERT INTO orders (
			user_id,
			total_amount,
			payment_method,
			status,
			delivery_address,
			notes,
			delivery_date,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`

	err = tx.QueryRow(ctx, insert,
		order.UserID,
		order.TotalAmount,
		order.PaymentMethod,
		order.Status,
		order.DeliveryAddress,
		order.Notes,
		order.DeliveryDate,
		now,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.Items = make([]models.OrderItem, 0, len(lines))

	for _, l := range lines {
		item := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Option:      l.Option,
			Price:       l.TotalPrice,
		}

		insertItemSQL := `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, option, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`

		err := tx.QueryRow(ctx, insertItemSQL,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.Option,
			item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}

		update := `
			UPDATE products
			SET stock_quantity = stock_quantity - $1, updated_at = $2
			WHERE id = $3 AND stock_quantity >= $1`

		result, err := tx.Exec(ctx, update, item.Quantity, now, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to update product stock %s: %w", item.ProductID, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrNotEnough, item.ProductName)
		}

		orderID := order.ID
		if err := insertOperation(ctx, tx, &models.StockOperation{
			ProductID:     item.ProductID,
			OrderID:       &orderID,
			OperationType: models.OperationOutgoing,
			ChangeQuant:   -item.Quantity,
			Reason:        "checkout",
		}); err != nil {
			return err
		}

		order.Items = append(order.Items, item)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND id = ANY($2::uuid[])`, order.UserID, lineIDs); err != nil {
		return fmt.Errorf("failed to delete purchased cart lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: order ID cannot be empty", ErrInvalidInput)
	}

	var order models.Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id), &order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	sql := `
		SELECT id, order_id, product_id, product_name, quantity, option, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name, id`

	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items %s: %w", id, err)
	}
	defer rows.Close()

	order.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Option,
			&item.Price,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return &order, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	sql := `SELECT` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND NOT hidden_by_customer
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders by user %s: %w", userID, err)
	}

	return collectOrders(rows)
}

func (r *orderRepo) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	sql := `SELECT` + orderColumns + ` FROM orders`
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		sql += ` WHERE status = $1`
	}
	sql += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}

	return collectOrders(rows)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: invalid status '%s'", ErrInvalidInput, to)
	}

	sql := `UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING` + orderColumns

	var order models.Order
	err := scanOrder(r.db.QueryRow(ctx, sql, to, time.Now().UTC(), id, from), &order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update status order %s: %w", id, err)
	}

	return nil, statusMismatch(ctx, r.db, id, from)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// statusMismatch explains a conditional status update that touched no row.
func statusMismatch(ctx context.Context, q rowQuerier, id uuid.UUID, from models.OrderStatus) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}

	return fmt.Errorf("%w: order %s is no longer %s", ErrConflict, id, from)
}

func (r *orderRepo) Cancel(ctx context.Context, id uuid.UUID, from models.OrderStatus) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: order ID cannot be empty", ErrInvalidInput)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	sql := `UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING` + orderColumns

	var order models.Order
	if err := scanOrder(tx.QueryRow(ctx, sql, models.StatusCancelled, now, id, from), &order); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cancel order %s: %w", id, err)
		}
		return nil, statusMismatch(ctx, tx, id, from)
	}

	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items %s: %w", id, err)
	}

	var items []models.OrderItem
	for rows.Next() {
		item := models.OrderItem{OrderID: id}
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	for _, item := range items {
		result, err := tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = $2 WHERE id = $3`,
			item.Quantity, now, item.ProductID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to restock product %s: %w", item.ProductID, err)
		}
		if result.RowsAffected() == 0 {
			return nil, fmt.Errorf("failed to restock product %s: product is missing", item.ProductID)
		}

		orderID := id
		if err := insertOperation(ctx, tx, &models.StockOperation{
			ProductID:     item.ProductID,
			OrderID:       &orderID,
			OperationType: models.OperationIncoming,
			ChangeQuant:   item.Quantity,
			Reason:        "order cancelled",
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Items = items
	return &order, nil
}

func (r *orderRepo) HideFromHistory(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	sql := `UPDATE orders
		SET hidden_by_customer = TRUE, updated_at = $1
		WHERE user_id = $2 AND id = ANY($3::uuid[]) AND status IN ('delivered', 'cancelled')`

	result, err := r.db.Exec(ctx, sql, time.Now().UTC(), userID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to hide orders: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *orderRepo) Stats(ctx context.Context) (*OrderStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	stats := &OrderStats{ByStatus: map[models.OrderStatus]int{}}
	for rows.Next() {
		var status models.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan order counts: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = 'delivered'`,
	).Scan(&stats.DeliveredTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	return stats, nil
}
