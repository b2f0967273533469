package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
)

func TestSelectionTotalScenario(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)
	b, err := s.ledger.AddLine(ctx, user, tank.ID, 3, models.OptionSwap)
	require.NoError(t, err)

	assert.Equal(t, "1900", a.TotalPrice.String())
	assert.Equal(t, "2700", b.TotalPrice.String())

	total, n, err := s.ledger.SelectionTotal(ctx, user, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.Equal(t, "1900", total.String())
	assert.Equal(t, 1, n)

	total, n, err = s.ledger.SelectionTotal(ctx, user, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, "4600", total.String())
	assert.Equal(t, 2, n)
}

func TestSelectionTotalCountsDistinctLines(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)
	b, err := s.ledger.AddLine(ctx, user, tank.ID, 3, models.OptionSwap)
	require.NoError(t, err)

	total, n, err := s.ledger.SelectionTotal(ctx, user, []uuid.UUID{a.ID, b.ID, a.ID, uuid.Nil})
	require.NoError(t, err)
	assert.Equal(t, "4600", total.String())
	assert.Equal(t, 2, n)

	total, n, err = s.ledger.SelectionTotal(ctx, user, []uuid.UUID{uuid.Nil})
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.Equal(t, 0, n)
}

func TestSelectionTotalIgnoresUnselectedLines(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	small := s.tank(t, "11kg Tank", "950", 50)
	big := s.tank(t, "50kg Tank", "4200", 50)

	a, err := s.ledger.AddLine(ctx, user, small.ID, 1, models.OptionNew)
	require.NoError(t, err)

	before, _, err := s.ledger.SelectionTotal(ctx, user, []uuid.UUID{a.ID})
	require.NoError(t, err)

	_, err = s.ledger.AddLine(ctx, user, big.ID, 10, models.OptionNew)
	require.NoError(t, err)

	after, _, err := s.ledger.SelectionTotal(ctx, user, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestSelectionTotalRejectsForeignLines(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	tank := s.tank(t, "11kg Tank", "950", 50)

	theirs, err := s.ledger.AddLine(ctx, testOther.UserID, tank.ID, 1, models.OptionNew)
	require.NoError(t, err)

	_, _, err = s.ledger.SelectionTotal(ctx, testCustomer.UserID, []uuid.UUID{theirs.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	tank := s.tank(t, "11kg Tank", "950", 50)

	for _, q := range []int{0, -1, -100} {
		_, err := s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, q, models.OptionNew)
		assert.ErrorIs(t, err, ErrValidation, "quantity %d", q)
	}

	lines, err := s.ledger.ListLines(ctx, testCustomer.UserID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 0, s.cart.writeCount())
}

func TestAddLineChecksProductAndStock(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	tank := s.tank(t, "22kg Tank", "1800", 2)

	_, err := s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, 3, models.OptionNew)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = s.ledger.AddLine(ctx, testCustomer.UserID, uuid.New(), 1, models.OptionNew)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, 1, "refill")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, s.catalog.SoftDelete(ctx, testAdmin, tank.ID))
	_, err = s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, 1, models.OptionNew)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditLinePreservesUnitPrice(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)

	// catalog price changes after the line was added
	p, err := s.products.GetByID(ctx, tank.ID)
	require.NoError(t, err)
	p.Price = dec(t, "1200")
	require.NoError(t, s.products.Update(ctx, p))

	edited, err := s.ledger.EditLine(ctx, user, a.ID, 5, "")
	require.NoError(t, err)
	assert.Equal(t, "4750", edited.TotalPrice.String())
	assert.Equal(t, 5, edited.Quantity)

	edited, err = s.ledger.EditLine(ctx, user, a.ID, 1, models.OptionNew)
	require.NoError(t, err)
	assert.Equal(t, "950", edited.TotalPrice.String())
}

func TestEditLineOptionChangeReprices(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)

	edited, err := s.ledger.EditLine(ctx, user, a.ID, 2, models.OptionSwap)
	require.NoError(t, err)
	assert.Equal(t, "1800", edited.TotalPrice.String())
	assert.Equal(t, models.OptionSwap, edited.Option)
}

func TestEditLineErrors(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	tank := s.tank(t, "11kg Tank", "950", 3)

	a, err := s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)

	_, err = s.ledger.EditLine(ctx, testCustomer.UserID, a.ID, 0, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.ledger.EditLine(ctx, testOther.UserID, a.ID, 1, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ledger.EditLine(ctx, testCustomer.UserID, a.ID, 4, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	line, err := s.cart.GetByID(ctx, testCustomer.UserID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "1900", line.TotalPrice.String())
}

func TestEditLineOnWithdrawnProduct(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 10)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)
	require.NoError(t, s.catalog.SoftDelete(ctx, testAdmin, tank.ID))

	_, err = s.ledger.EditLine(ctx, user, a.ID, 3, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.ledger.EditLine(ctx, user, a.ID, 2, models.OptionSwap)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	shrunk, err := s.ledger.EditLine(ctx, user, a.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "950", shrunk.TotalPrice.String())
}

func TestRemoveLineIsIdempotent(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	a, err := s.ledger.AddLine(ctx, user, tank.ID, 1, models.OptionNew)
	require.NoError(t, err)
	b, err := s.ledger.AddLine(ctx, user, tank.ID, 1, models.OptionSwap)
	require.NoError(t, err)

	require.NoError(t, s.ledger.RemoveLine(ctx, user, a.ID))
	once, err := s.ledger.ListLines(ctx, user)
	require.NoError(t, err)

	require.NoError(t, s.ledger.RemoveLine(ctx, user, a.ID))
	twice, err := s.ledger.ListLines(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
	assert.Equal(t, b.ID, twice[0].ID)

	deletes := 0
	for _, e := range s.events.events {
		if e.Topic == realtime.TopicCart && e.Op == realtime.OpDelete {
			deletes++
		}
	}
	assert.Equal(t, 1, deletes)
}

func TestListLinesNewestFirstAndClear(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	user := testCustomer.UserID
	tank := s.tank(t, "11kg Tank", "950", 50)

	first, err := s.ledger.AddLine(ctx, user, tank.ID, 1, models.OptionNew)
	require.NoError(t, err)
	second, err := s.ledger.AddLine(ctx, user, tank.ID, 2, models.OptionNew)
	require.NoError(t, err)

	lines, err := s.ledger.ListLines(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, second.ID, lines[0].ID)
	assert.Equal(t, first.ID, lines[1].ID)

	n, err := s.ledger.Clear(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	lines, err = s.ledger.ListLines(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartEventsAreScopedToOwner(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	tank := s.tank(t, "11kg Tank", "950", 50)

	_, err := s.ledger.AddLine(ctx, testCustomer.UserID, tank.ID, 1, models.OptionNew)
	require.NoError(t, err)

	require.Len(t, s.events.events, 1)
	e := s.events.events[0]
	assert.Equal(t, realtime.TopicCart, e.Topic)
	assert.Equal(t, realtime.OpInsert, e.Op)
	assert.Equal(t, testCustomer.UserID.String(), e.Scope)
}
