package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lpg-service/internal/models"
)

type ProductFilter struct {
	Search     string
	Option     models.FulfillmentOption
	ActiveOnly bool
	SortBy     string
	Ascending  bool
	Limit      int
	Offset     int
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int, error)
	// Update writes everything but the stock count, which it reads back
	// into product.
	Update(ctx context.Context, product *models.Product) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// AdjustStock applies change to the stock count and records it in the
	// stock ledger. The count never goes below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, change int, opType models.OperationType, reason string) (*models.Product, error)
}

type OperationRepository interface {
	GetByProductID(ctx context.Context, productID uuid.UUID) ([]models.StockOperation, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockOperation, error)
}

type StockAlertRepository interface {
	// Raise opens an alert unless one of the same type is already open for
	// the product. It reports whether a new alert was created.
	Raise(ctx context.Context, alert *models.StockAlert) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID) error
	ResolveForProduct(ctx context.Context, productID uuid.UUID, types ...models.StockAlertType) (int64, error)
	ListOpen(ctx context.Context) ([]models.StockAlert, error)
}

type CartRepository interface {
	Create(ctx context.Context, line *models.CartLine) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.CartLine, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
	ListByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartLine, error)
	Update(ctx context.Context, line *models.CartLine) error
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type OrderFilter struct {
	Status models.OrderStatus
	Limit  int
}

type OrderStats struct {
	ByStatus       map[models.OrderStatus]int
	DeliveredTotal decimal.Decimal
}

type OrderRepository interface {
	// CreateFromCart persists order with one item per selected cart line,
	// decrements stock and deletes the lines, all in one transaction.
	CreateFromCart(ctx context.Context, order *models.Order, lineIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// UpdateStatus moves the order from one status to another. It fails
	// with ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error)
	// Cancel moves the order from one status to cancelled and puts its items
	// back in stock in one transaction. Like UpdateStatus it fails with
	// ErrConflict when the stored status is no longer from.
	Cancel(ctx context.Context, id uuid.UUID, from models.OrderStatus) (*models.Order, error)
	HideFromHistory(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	Stats(ctx context.Context) (*OrderStats, error)
}

type MessageRepository interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	GetBySeq(ctx context.Context, seq int64) (*models.ChatMessage, error)
	ListByConversation(ctx context.Context, key uuid.UUID) ([]models.ChatMessage, error)
	Edit(ctx context.Context, seq int64, body string) (*models.ChatMessage, error)
	Tombstone(ctx context.Context, seq int64) (*models.ChatMessage, error)
	Revisions(ctx context.Context, seq int64) ([]models.MessageRevision, error)
	MarkRead(ctx context.Context, key uuid.UUID, from models.SenderRole) (int64, error)
	Conversations(ctx context.Context) ([]models.Conversation, error)
}

type LocationRepository interface {
	Append(ctx context.Context, sample *models.LocationSample) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LocationSample, error)
	Latest(ctx context.Context, orderID uuid.UUID) (*models.LocationSample, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
}
