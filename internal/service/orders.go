package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
)

// Inventory is told about stock moved by orders.
type Inventory interface {
	StockChanged(ctx context.Context, ids ...uuid.UUID)
}

type SubmitRequest struct {
	LineIDs         []uuid.UUID `json:"line_ids"`
	PaymentMethod   string      `json:"payment_method"`
	DeliveryAddress string      `json:"delivery_address"`
	Notes           string      `json:"notes"`
	DeliveryDate    *time.Time  `json:"delivery_date"`
}

type OrderCoordinator struct {
	orders    repository.OrderRepository
	cart      repository.CartRepository
	inventory Inventory
	notifier  *Notifier
	logger    *zap.Logger
}

func NewOrderCoordinator(orders repository.OrderRepository, cart repository.CartRepository, inventory Inventory, notifier *Notifier, logger *zap.Logger) *OrderCoordinator {
	return &OrderCoordinator{
		orders:    orders,
		cart:      cart,
		inventory: inventory,
		notifier:  notifier,
		logger:    logger,
	}
}

// SubmitOrder turns the selected cart lines into a pending order. The
// order, its items, the stock decrement and the removal of the purchased
// lines commit together or not at all; on failure the cart is unchanged.
func (c *OrderCoordinator) SubmitOrder(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*models.Order, error) {
	ids := dedupe(req.LineIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	lines, err := c.cart.ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, translate(err)
	}
	if len(lines) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d selected lines are not in the cart", ErrEmptySelection, len(ids)-len(lines), len(ids))
	}

	method, ok := models.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !ok {
		return nil, invalid("payment method must be cod or e-wallet")
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, invalid("delivery address is required")
	}

	order := &models.Order{
		UserID:          userID,
		TotalAmount:     sumLines(lines),
		PaymentMethod:   method,
		DeliveryAddress: address,
		Notes:           strings.TrimSpace(req.Notes),
		DeliveryDate:    req.DeliveryDate,
	}

	if err := c.orders.CreateFromCart(ctx, order, ids); err != nil {
		c.logger.Error("failed to save order",
			zap.String("user_id", userID.String()),
			zap.Int("lines", len(ids)),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, repository.ErrNotEnough):
			return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %w", ErrEmptySelection, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrOrderSaveFailed, err)
		}
	}

	c.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.String()),
	)

	scope := userID.String()
	c.notifier.Publish(ctx, realtime.TopicOrders, realtime.OpInsert, order.ID.String(), scope, order.UpdatedAt, order)
	for _, id := range ids {
		c.notifier.Publish(ctx, realtime.TopicCart, realtime.OpDelete, id.String(), scope, order.UpdatedAt, nil)
	}

	if c.inventory != nil {
		productIDs := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		c.inventory.StockChanged(ctx, dedupe(productIDs)...)
	}

	return order, nil
}

// AdvanceStatus moves an order along the delivery workflow or cancels it.
func (c *OrderCoordinator) AdvanceStatus(ctx context.Context, actor auth.Principal, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if !next.Valid() {
		return nil, invalid("unknown order status %q", next)
	}

	current, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}

	return c.transition(ctx, actor, current, next)
}

// Cancel lets a customer withdraw an order nobody has confirmed yet.
func (c *OrderCoordinator) Cancel(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	current, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	if current.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if current.Status != models.StatusPending && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled, order is %s", ErrInvalidTransition, current.Status)
	}

	return c.transition(ctx, actor, current, models.StatusCancelled)
}

func (c *OrderCoordinator) transition(ctx context.Context, actor auth.Principal, current *models.Order, next models.OrderStatus) (*models.Order, error) {
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, next)
	}

	var (
		updated *models.Order
		err     error
	)
	if next == models.StatusCancelled {
		// the status change and the restock commit together
		updated, err = c.orders.Cancel(ctx, current.ID, current.Status)
	} else {
		updated, err = c.orders.UpdateStatus(ctx, current.ID, current.Status, next)
	}
	if err != nil {
		c.logger.Error("failed to change order status",
			zap.String("order_id", current.ID.String()),
			zap.String("to", string(next)),
			zap.Error(err),
		)
		return nil, translate(err)
	}
	updated.Items = current.Items

	c.logger.Info("order status changed",
		zap.String("order_id", updated.ID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
	)

	c.notifier.Publish(ctx, realtime.TopicOrders, realtime.OpUpdate, updated.ID.String(), updated.UserID.String(), updated.UpdatedAt, updated)
	c.notifier.Audit(ctx, actor, "order.status", updated.ID.String(), bson.M{"from": string(current.Status), "to": string(next)})

	if next == models.StatusCancelled && c.inventory != nil {
		ids := make([]uuid.UUID, 0, len(current.Items))
		for _, item := range current.Items {
			ids = append(ids, item.ProductID)
		}
		c.inventory.StockChanged(ctx, dedupe(ids)...)
	}

	return updated, nil
}

// ListOrders returns the customer's order history, newest first.
func (c *OrderCoordinator) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := c.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

func (c *OrderCoordinator) ListAll(ctx context.Context, actor auth.Principal, status models.OrderStatus, limit int) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if status != "" && !status.Valid() {
		return nil, invalid("unknown order status %q", status)
	}

	orders, err := c.orders.List(ctx, repository.OrderFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

// GetOrder returns the order with its items. Orders of other customers are
// reported as not found.
func (c *OrderCoordinator) GetOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

// DeleteHistory hides delivered or cancelled orders from the customer's
// history. Active orders are left in place.
func (c *OrderCoordinator) DeleteHistory(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	ids := dedupe(orderIDs)
	if len(ids) == 0 {
		return 0, ErrEmptySelection
	}

	n, err := c.orders.HideFromHistory(ctx, userID, ids)
	if err != nil {
		return 0, translate(err)
	}

	c.logger.Info("orders removed from history", zap.String("user_id", userID.String()), zap.Int64("hidden", n))

	return n, nil
}
