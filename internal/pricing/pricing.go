// Package pricing computes cart line totals.
//
// A swap line is always charged the configured swap unit price, whatever
// the catalog says. A new-cylinder line is charged the catalog price.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"lpg-service/internal/models"
)

var (
	ErrQuantityRequired = errors.New("quantity required")
	ErrUnknownOption    = errors.New("unknown fulfillment option")
)

// DefaultSwapUnitPrice is used when configuration does not set one.
var DefaultSwapUnitPrice = decimal.NewFromInt(900)

type Evaluator struct {
	SwapUnitPrice decimal.Decimal
}

func New(swapUnitPrice decimal.Decimal) *Evaluator {
	if !swapUnitPrice.IsPositive() {
		swapUnitPrice = DefaultSwapUnitPrice
	}
	return &Evaluator{SwapUnitPrice: swapUnitPrice}
}

// UnitPrice returns the per-unit price charged for option.
func (e *Evaluator) UnitPrice(catalogPrice decimal.Decimal, option models.FulfillmentOption) (decimal.Decimal, error) {
	switch option {
	case models.OptionSwap:
		return e.SwapUnitPrice, nil
	case models.OptionNew:
		return catalogPrice, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}
}

func (e *Evaluator) LineTotal(catalogPrice decimal.Decimal, option models.FulfillmentOption, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrQuantityRequired
	}

	unit, err := e.UnitPrice(catalogPrice, option)
	if err != nil {
		return decimal.Zero, err
	}

	return unit.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Reprice scales an existing line total to a new quantity, keeping the
// effective unit price the line was created with.
func (e *Evaluator) Reprice(lineTotal decimal.Decimal, originalQty, newQty int) (decimal.Decimal, error) {
	if newQty <= 0 || originalQty <= 0 {
		return decimal.Zero, ErrQuantityRequired
	}

	unit := lineTotal.Div(decimal.NewFromInt(int64(originalQty)))
	return unit.Mul(decimal.NewFromInt(int64(newQty))).Round(2), nil
}
