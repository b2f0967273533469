package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/pricing"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
)

// CartLedger owns the per-customer cart. Every line carries the total it
// was priced at; the ledger never re-reads the catalog price unless the
// fulfillment option changes.
type CartLedger struct {
	cart     repository.CartRepository
	products repository.ProductRepository
	pricing  *pricing.Evaluator
	notifier *Notifier
	logger   *zap.Logger
}

func NewCartLedger(cart repository.CartRepository, products repository.ProductRepository, evaluator *pricing.Evaluator, notifier *Notifier, logger *zap.Logger) *CartLedger {
	return &CartLedger{
		cart:     cart,
		products: products,
		pricing:  evaluator,
		notifier: notifier,
		logger:   logger,
	}
}

func pricingError(err error) error {
	if errors.Is(err, pricing.ErrQuantityRequired) || errors.Is(err, pricing.ErrUnknownOption) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

func (l *CartLedger) availableProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := l.products.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: product %s is not available", ErrNotFound, id)
	}
	return p, nil
}

func (l *CartLedger) AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int, option models.FulfillmentOption) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, pricing.ErrQuantityRequired)
	}
	if !option.Valid() {
		return nil, invalid("option must be swap or new")
	}

	p, err := l.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: only %d of %s left", ErrInsufficientStock, p.StockQuantity, p.Name)
	}

	total, err := l.pricing.LineTotal(p.Price, option, quantity)
	if err != nil {
		return nil, pricingError(err)
	}

	line := &models.CartLine{
		UserID:      userID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Weight:      p.Weight,
		ImageURL:    p.ImageURL,
		Quantity:    quantity,
		Option:      option,
		TotalPrice:  total,
	}

	if err := l.cart.Create(ctx, line); err != nil {
		return nil, translate(err)
	}

	l.notifier.Publish(ctx, realtime.TopicCart, realtime.OpInsert, line.ID.String(), userID.String(), line.UpdatedAt, line)

	return line, nil
}

// EditLine changes quantity and optionally the fulfillment option of a
// line. With the option unchanged the line keeps the unit price it was
// added at; a new option prices the line afresh.
func (l *CartLedger) EditLine(ctx context.Context, userID, lineID uuid.UUID, quantity int, option models.FulfillmentOption) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, pricing.ErrQuantityRequired)
	}
	if option != "" && !option.Valid() {
		return nil, invalid("option must be swap or new")
	}

	line, err := l.cart.GetByID(ctx, userID, lineID)
	if err != nil {
		return nil, translate(err)
	}

	if option == "" {
		option = line.Option
	}

	var total decimal.Decimal

	if option == line.Option && quantity <= line.Quantity {
		total, err = l.pricing.Reprice(line.TotalPrice, line.Quantity, quantity)
		if err != nil {
			return nil, pricingError(err)
		}
	} else {
		p, err := l.availableProduct(ctx, line.ProductID)
		if errors.Is(err, ErrNotFound) {
			// the line itself exists; its product was withdrawn after it was added
			return nil, fmt.Errorf("%w: product %s is no longer available", ErrInsufficientStock, line.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if p.StockQuantity < quantity {
			return nil, fmt.Errorf("%w: only %d of %s left", ErrInsufficientStock, p.StockQuantity, p.Name)
		}

		if option == line.Option {
			total, err = l.pricing.Reprice(line.TotalPrice, line.Quantity, quantity)
		} else {
			total, err = l.pricing.LineTotal(p.Price, option, quantity)
		}
		if err != nil {
			return nil, pricingError(err)
		}
	}

	line.Quantity = quantity
	line.Option = option
	line.TotalPrice = total

	if err := l.cart.Update(ctx, line); err != nil {
		return nil, translate(err)
	}

	l.notifier.Publish(ctx, realtime.TopicCart, realtime.OpUpdate, line.ID.String(), userID.String(), line.UpdatedAt, line)

	return line, nil
}

// RemoveLine is idempotent: removing a line that is already gone succeeds.
func (l *CartLedger) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error {
	removed, err := l.cart.Delete(ctx, userID, lineID)
	if err != nil {
		return translate(err)
	}

	if removed {
		l.notifier.Publish(ctx, realtime.TopicCart, realtime.OpDelete, lineID.String(), userID.String(), timeNow(), nil)
	}

	return nil
}

// ListLines returns the cart newest first.
func (l *CartLedger) ListLines(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	lines, err := l.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return lines, nil
}

// SelectionTotal sums the stored totals of the selected lines only and
// reports how many distinct lines went into the sum.
func (l *CartLedger) SelectionTotal(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) (decimal.Decimal, int, error) {
	lines, err := l.selected(ctx, userID, lineIDs)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return sumLines(lines), len(lines), nil
}

func (l *CartLedger) selected(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) ([]models.CartLine, error) {
	ids := dedupe(lineIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	lines, err := l.cart.ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, translate(err)
	}
	if len(lines) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d selected lines are not in the cart", ErrNotFound, len(ids)-len(lines), len(ids))
	}

	return lines, nil
}

func (l *CartLedger) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	lines, err := l.cart.ListByUser(ctx, userID)
	if err != nil {
		return 0, translate(err)
	}

	n, err := l.cart.DeleteAll(ctx, userID)
	if err != nil {
		return 0, translate(err)
	}

	now := timeNow()
	for _, line := range lines {
		l.notifier.Publish(ctx, realtime.TopicCart, realtime.OpDelete, line.ID.String(), userID.String(), now, nil)
	}

	return n, nil
}

func sumLines(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalPrice)
	}
	return total
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
