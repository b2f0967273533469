package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/pricing"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
)

var (
	testCustomer = auth.Principal{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: models.RoleCustomer}
	testOther    = auth.Principal{UserID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: models.RoleCustomer}
	testAdmin    = auth.Principal{UserID: uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"), Role: models.RoleAdmin}
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) topics() []realtime.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.Topic, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic
	}
	return out
}

type fakeProducts struct {
	mu    sync.Mutex
	clock *clock
	rows  map[uuid.UUID]models.Product
	ops   []models.StockOperation
}

func newFakeProducts(c *clock) *fakeProducts {
	return &fakeProducts{clock: c, rows: map[uuid.UUID]models.Product{}}
}

func (f *fakeProducts) add(p models.Product) models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.IsActive = true
	p.CreatedAt = f.clock.next()
	p.UpdatedAt = p.CreatedAt
	f.rows[p.ID] = p
	return p
}

func (f *fakeProducts) stock(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].StockQuantity
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	*p = f.add(*p)
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) List(_ context.Context, filter repository.ProductFilter) ([]models.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.rows {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Limit > 0 {
		end := filter.Offset + filter.Limit
		if filter.Offset > len(out) {
			filter.Offset = len(out)
		}
		if end > len(out) {
			end = len(out)
		}
		out = out[filter.Offset:end]
	}
	return out, total, nil
}

func (f *fakeProducts) Update(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.StockQuantity = cur.StockQuantity
	p.UpdatedAt = f.clock.next()
	f.rows[p.ID] = *p
	return nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = f.clock.next()
	f.rows[id] = p
	return nil
}

func (f *fakeProducts) AdjustStock(_ context.Context, id uuid.UUID, change int, opType models.OperationType, reason string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.StockQuantity+change < 0 {
		return nil, repository.ErrNotEnough
	}
	p.StockQuantity += change
	p.UpdatedAt = f.clock.next()
	f.rows[id] = p
	f.ops = append(f.ops, models.StockOperation{ProductID: id, OperationType: opType, ChangeQuant: change, Reason: reason})
	return &p, nil
}

func (f *fakeProducts) GetByProductID(_ context.Context, productID uuid.UUID) ([]models.StockOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.StockOperation{}
	for _, op := range f.ops {
		if op.ProductID == productID {
			out = append(out, op)
		}
	}
	return out, nil
}

func (f *fakeProducts) GetByOrderID(context.Context, uuid.UUID) ([]models.StockOperation, error) {
	return nil, nil
}

type fakeCart struct {
	mu     sync.Mutex
	clock  *clock
	lines  map[uuid.UUID]models.CartLine
	writes int
}

func newFakeCart(c *clock) *fakeCart {
	return &fakeCart{clock: c, lines: map[uuid.UUID]models.CartLine{}}
}

func (f *fakeCart) Create(_ context.Context, l *models.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	l.ID = uuid.New()
	l.CreatedAt = f.clock.next()
	l.UpdatedAt = l.CreatedAt
	f.lines[l.ID] = *l
	return nil
}

func (f *fakeCart) GetByID(_ context.Context, userID, id uuid.UUID) (*models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lines[id]
	if !ok || l.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (f *fakeCart) ListByUser(_ context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.CartLine{}
	for _, l := range f.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCart) ListByIDs(_ context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.CartLine{}
	for _, id := range ids {
		if l, ok := f.lines[id]; ok && l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeCart) Update(_ context.Context, l *models.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.lines[l.ID]
	if !ok || cur.UserID != l.UserID {
		return repository.ErrNotFound
	}
	f.writes++
	l.UpdatedAt = f.clock.next()
	f.lines[l.ID] = *l
	return nil
}

func (f *fakeCart) Delete(_ context.Context, userID, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lines[id]
	if !ok || l.UserID != userID {
		return false, nil
	}
	f.writes++
	delete(f.lines, id)
	return true, nil
}

func (f *fakeCart) DeleteAll(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, l := range f.lines {
		if l.UserID == userID {
			delete(f.lines, id)
			n++
		}
	}
	f.writes++
	return n, nil
}

func (f *fakeCart) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// fakeOrders applies CreateFromCart all-or-nothing over the cart and
// product fakes.
type fakeOrders struct {
	mu       sync.Mutex
	clock    *clock
	cart     *fakeCart
	products *fakeProducts
	rows     map[uuid.UUID]models.Order
	hidden   map[uuid.UUID]bool
	failWith error
	creates  int

	// cancelFailWith aborts Cancel before anything is written.
	cancelFailWith error
}

func newFakeOrders(c *clock, cart *fakeCart, products *fakeProducts) *fakeOrders {
	return &fakeOrders{
		clock:    c,
		cart:     cart,
		products: products,
		rows:     map[uuid.UUID]models.Order{},
		hidden:   map[uuid.UUID]bool{},
	}
}

func (f *fakeOrders) CreateFromCart(_ context.Context, o *models.Order, lineIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++

	if f.failWith != nil {
		return f.failWith
	}

	f.cart.mu.Lock()
	defer f.cart.mu.Unlock()
	f.products.mu.Lock()
	defer f.products.mu.Unlock()

	var lines []models.CartLine
	for _, id := range lineIDs {
		l, ok := f.cart.lines[id]
		if !ok || l.UserID != o.UserID {
			return repository.ErrNotFound
		}
		lines = append(lines, l)
	}

	need := map[uuid.UUID]int{}
	for _, l := range lines {
		need[l.ProductID] += l.Quantity
	}
	for id, q := range need {
		if f.products.rows[id].StockQuantity < q {
			return repository.ErrNotEnough
		}
	}

	now := f.clock.next()
	o.ID = uuid.New()
	o.Status = models.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	o.TotalAmount = decimal.Zero
	o.Items = nil
	for _, l := range lines {
		o.TotalAmount = o.TotalAmount.Add(l.TotalPrice)
		o.Items = append(o.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     o.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Option:      l.Option,
			Price:       l.TotalPrice,
		})
		p := f.products.rows[l.ProductID]
		p.StockQuantity -= l.Quantity
		f.products.rows[l.ProductID] = p
		delete(f.cart.lines, l.ID)
	}

	f.rows[o.ID] = *o
	return nil
}

func (f *fakeOrders) put(o models.Order) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = f.clock.next()
	o.UpdatedAt = o.CreatedAt
	f.rows[o.ID] = o
	return o
}

func (f *fakeOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.rows {
		if o.UserID == userID && !f.hidden[o.ID] {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrders) List(_ context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.rows {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != from {
		return nil, repository.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = f.clock.next()
	f.rows[id] = o
	return &o, nil
}

func (f *fakeOrders) Cancel(_ context.Context, id uuid.UUID, from models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != from {
		return nil, repository.ErrConflict
	}
	if f.cancelFailWith != nil {
		return nil, f.cancelFailWith
	}

	f.products.mu.Lock()
	defer f.products.mu.Unlock()

	for _, item := range o.Items {
		if _, ok := f.products.rows[item.ProductID]; !ok {
			return nil, errors.New("product is missing")
		}
	}

	now := f.clock.next()
	for _, item := range o.Items {
		p := f.products.rows[item.ProductID]
		p.StockQuantity += item.Quantity
		p.UpdatedAt = now
		f.products.rows[item.ProductID] = p

		orderID := o.ID
		f.products.ops = append(f.products.ops, models.StockOperation{
			ProductID:     item.ProductID,
			OrderID:       &orderID,
			OperationType: models.OperationIncoming,
			ChangeQuant:   item.Quantity,
			Reason:        "order cancelled",
		})
	}

	o.Status = models.StatusCancelled
	o.UpdatedAt = now
	f.rows[id] = o
	return &o, nil
}

func (f *fakeOrders) HideFromHistory(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		o, ok := f.rows[id]
		if ok && o.UserID == userID && o.Status.Terminal() && !f.hidden[id] {
			f.hidden[id] = true
			n++
		}
	}
	return n, nil
}

func (f *fakeOrders) Stats(context.Context) (*repository.OrderStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.OrderStats{ByStatus: map[models.OrderStatus]int{}, DeliveredTotal: decimal.Zero}
	for _, o := range f.rows {
		stats.ByStatus[o.Status]++
		if o.Status == models.StatusDelivered {
			stats.DeliveredTotal = stats.DeliveredTotal.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.StockAlert
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{rows: map[uuid.UUID]models.StockAlert{}}
}

func (f *fakeAlerts) Raise(_ context.Context, a *models.StockAlert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.rows {
		if cur.ProductID == a.ProductID && cur.AlertType == a.AlertType && !cur.IsResolved {
			return false, nil
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	f.rows[a.ID] = *a
	return true, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok || a.IsResolved {
		return repository.ErrNotFound
	}
	a.IsResolved = true
	f.rows[id] = a
	return nil
}

func (f *fakeAlerts) ResolveForProduct(_ context.Context, productID uuid.UUID, types ...models.StockAlertType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, a := range f.rows {
		if a.ProductID != productID || a.IsResolved {
			continue
		}
		for _, t := range types {
			if a.AlertType == t {
				a.IsResolved = true
				f.rows[id] = a
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeAlerts) ListOpen(context.Context) ([]models.StockAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.StockAlert{}
	for _, a := range f.rows {
		if !a.IsResolved {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlerts) open(productID uuid.UUID) []models.StockAlertType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StockAlertType
	for _, a := range f.rows {
		if a.ProductID == productID && !a.IsResolved {
			out = append(out, a.AlertType)
		}
	}
	return out
}

type fakeMessages struct {
	mu        sync.Mutex
	clock     *clock
	seq       int64
	rows      []models.ChatMessage
	revisions []models.MessageRevision
}

func (f *fakeMessages) find(seq int64) int {
	for i := range f.rows {
		if f.rows[i].Seq == seq {
			return i
		}
	}
	return -1
}

func (f *fakeMessages) Append(_ context.Context, m *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	m.Seq = f.seq
	m.Version = 1
	m.CreatedAt = f.clock.next()
	m.UpdatedAt = m.CreatedAt
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMessages) GetBySeq(_ context.Context, seq int64) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(seq)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	m := f.rows[i]
	return &m, nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, key uuid.UUID) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ChatMessage{}
	for _, m := range f.rows {
		if m.ConversationKey == key {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) Edit(_ context.Context, seq int64, body string) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(seq)
	if i < 0 || f.rows[i].Deleted {
		return nil, repository.ErrNotFound
	}
	f.revisions = append(f.revisions, models.MessageRevision{MessageSeq: seq, Version: f.rows[i].Version, Body: f.rows[i].Body})
	f.rows[i].Body = body
	f.rows[i].Version++
	f.rows[i].UpdatedAt = f.clock.next()
	m := f.rows[i]
	return &m, nil
}

func (f *fakeMessages) Tombstone(_ context.Context, seq int64) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(seq)
	if i < 0 || f.rows[i].Deleted {
		return nil, repository.ErrNotFound
	}
	f.rows[i].Body = ""
	f.rows[i].Deleted = true
	f.rows[i].Version++
	f.rows[i].UpdatedAt = f.clock.next()
	m := f.rows[i]
	return &m, nil
}

func (f *fakeMessages) Revisions(_ context.Context, seq int64) ([]models.MessageRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.MessageRevision{}
	for _, r := range f.revisions {
		if r.MessageSeq == seq {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, key uuid.UUID, from models.SenderRole) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.rows {
		m := &f.rows[i]
		if m.ConversationKey == key && m.SenderRole == from && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) Conversations(context.Context) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byKey := map[uuid.UUID]*models.Conversation{}
	for _, m := range f.rows {
		c, ok := byKey[m.ConversationKey]
		if !ok {
			c = &models.Conversation{ConversationKey: m.ConversationKey}
			byKey[m.ConversationKey] = c
		}
		c.LastMessage = m.Body
		c.LastMessageAt = m.CreatedAt
		if m.SenderRole == models.SenderCustomer && !m.IsRead && !m.Deleted {
			c.Unread++
		}
	}
	out := []models.Conversation{}
	for _, c := range byKey {
		out = append(out, *c)
	}
	return out, nil
}

type fakeLocations struct {
	mu   sync.Mutex
	rows []models.LocationSample
}

func (f *fakeLocations) Append(_ context.Context, l *models.LocationSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = uuid.New()
	f.rows = append(f.rows, *l)
	return nil
}

func (f *fakeLocations) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.LocationSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.LocationSample{}
	for _, l := range f.rows {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLocations) Latest(ctx context.Context, orderID uuid.UUID) (*models.LocationSample, error) {
	rows, _ := f.ListByOrder(ctx, orderID)
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	last := rows[len(rows)-1]
	return &last, nil
}

func (f *fakeLocations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[uuid.UUID]models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.rows {
		if cur.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeAdmins struct {
	rows map[string]models.Admin
	err  error
}

func (f *fakeAdmins) Create(_ context.Context, a *models.Admin) error {
	a.ID = uuid.New()
	f.rows[a.Username] = *a
	return nil
}

func (f *fakeAdmins) GetByUsername(_ context.Context, username string) (*models.Admin, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.rows[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// shop wires every service over the fakes.
type shop struct {
	clock     *clock
	products  *fakeProducts
	cart      *fakeCart
	orders    *fakeOrders
	alerts    *fakeAlerts
	messages  *fakeMessages
	locations *fakeLocations
	events    *recordingPublisher

	catalog  *CatalogService
	ledger   *CartLedger
	checkout *OrderCoordinator
	chat     *ChatRelay
	tracking *LocationService
}

func newShop(t *testing.T) *shop {
	t.Helper()

	c := newClock()
	s := &shop{
		clock:     c,
		products:  newFakeProducts(c),
		cart:      newFakeCart(c),
		alerts:    newFakeAlerts(),
		messages:  &fakeMessages{clock: c},
		locations: &fakeLocations{},
		events:    &recordingPublisher{},
	}
	s.orders = newFakeOrders(c, s.cart, s.products)

	logger := zap.NewNop()
	notifier := NewNotifier(s.events, nil, logger)

	s.catalog = NewCatalogService(s.products, s.products, s.alerts, s.orders, nil, notifier, CatalogConfig{LowStockThreshold: 10}, logger)
	s.ledger = NewCartLedger(s.cart, s.products, pricing.New(decimal.NewFromInt(900)), notifier, logger)
	s.checkout = NewOrderCoordinator(s.orders, s.cart, s.catalog, notifier, logger)
	s.chat = NewChatRelay(s.messages, notifier, logger)
	s.tracking = NewLocationService(s.locations, s.orders, notifier, logger)

	return s
}

func (s *shop) tank(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	return s.products.add(models.Product{
		Name:          name,
		Weight:        "11kg",
		Price:         dec(t, price),
		Option:        models.OptionNew,
		StockQuantity: stock,
	})
}

var errBoom = errors.New("boom")
