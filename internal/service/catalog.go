package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
	"lpg-service/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type ProductQuery struct {
	Search          string
	Option          models.FulfillmentOption
	IncludeInactive bool
	SortBy          string
	SortOrder       string
	Page            int
	Limit           int
}

type ProductPage struct {
	Products   []models.Product `json:"products"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

type ProductInput struct {
	Name          string                   `json:"name" validate:"required,max=150"`
	Description   string                   `json:"description" validate:"max=2000"`
	Weight        string                   `json:"weight" validate:"required,max=20"`
	Price         decimal.Decimal          `json:"price"`
	ImageURL      string                   `json:"image_url" validate:"omitempty,url"`
	Option        models.FulfillmentOption `json:"option" validate:"required,oneof=swap new"`
	StockQuantity int                      `json:"stock_quantity" validate:"gte=0"`
}

func (in ProductInput) check() error {
	if err := checkStruct(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return invalid("price must be positive")
	}
	return nil
}

type Dashboard struct {
	OrdersByStatus map[models.OrderStatus]int `json:"orders_by_status"`
	Revenue        decimal.Decimal            `json:"revenue"`
	ActiveProducts int                        `json:"active_products"`
	OpenAlerts     int                        `json:"open_alerts"`
}

// cacheForgetter is implemented by product stores that cache rows and need
// telling about writes made behind their back.
type cacheForgetter interface {
	Forget(ctx context.Context, ids ...uuid.UUID)
}

type CatalogService struct {
	products      repository.ProductRepository
	operations    repository.OperationRepository
	alerts        repository.StockAlertRepository
	orders        repository.OrderRepository
	images        storage.ImageStore
	notifier      *Notifier
	lowThreshold  int
	maxImageBytes int64
	logger        *zap.Logger
}

type CatalogConfig struct {
	LowStockThreshold int
	MaxImageBytes     int64
}

func NewCatalogService(
	products repository.ProductRepository,
	operations repository.OperationRepository,
	alerts repository.StockAlertRepository,
	orders repository.OrderRepository,
	images storage.ImageStore,
	notifier *Notifier,
	cfg CatalogConfig,
	logger *zap.Logger,
) *CatalogService {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 5 << 20
	}
	if images == nil {
		images = storage.Disabled{}
	}
	return &CatalogService{
		products:      products,
		operations:    operations,
		alerts:        alerts,
		orders:        orders,
		images:        images,
		notifier:      notifier,
		lowThreshold:  cfg.LowStockThreshold,
		maxImageBytes: cfg.MaxImageBytes,
		logger:        logger,
	}
}

func (s *CatalogService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Option != "" && !q.Option.Valid() {
		return nil, invalid("option must be swap or new")
	}

	filter := repository.ProductFilter{
		Search:     strings.TrimSpace(q.Search),
		Option:     q.Option,
		ActiveOnly: !q.IncludeInactive,
		SortBy:     q.SortBy,
		Ascending:  strings.EqualFold(q.SortOrder, "asc"),
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	return &ProductPage{
		Products:   products,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
	}, nil
}

// Get hides inactive products unless includeInactive is set.
func (s *CatalogService) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsActive && !includeInactive {
		return nil, fmt.Errorf("%w: product %s is not available", ErrNotFound, id)
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, actor auth.Principal, in ProductInput) (*models.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Weight:        strings.TrimSpace(in.Weight),
		Price:         in.Price,
		ImageURL:      in.ImageURL,
		Option:        in.Option,
		StockQuantity: in.StockQuantity,
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpInsert, p.ID.String(), "", p.UpdatedAt, p)
	s.notifier.Audit(ctx, actor, "product.create", p.ID.String(), bson.M{"name": p.Name, "price": p.Price.String()})
	s.checkStock(ctx, p)

	return p, nil
}

// Update replaces the editable fields. Stock is kept as stored; use
// AdjustStock to change it.
func (s *CatalogService) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Weight = strings.TrimSpace(in.Weight)
	p.Price = in.Price
	p.Option = in.Option
	if in.ImageURL != "" {
		p.ImageURL = in.ImageURL
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpUpdate, p.ID.String(), "", p.UpdatedAt, p)
	s.notifier.Audit(ctx, actor, "product.update", p.ID.String(), bson.M{"name": p.Name, "price": p.Price.String()})

	return p, nil
}

func (s *CatalogService) SoftDelete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if err := s.products.SoftDelete(ctx, id); err != nil {
		return translate(err)
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("failed to reload deleted product", zap.String("product_id", id.String()), zap.Error(err))
	} else {
		s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpUpdate, id.String(), "", p.UpdatedAt, p)
	}
	s.notifier.Audit(ctx, actor, "product.delete", id.String(), nil)

	return nil
}

// AdjustStock adds delta (positive for a delivery from the depot) to the
// stock count and records it in the stock ledger.
func (s *CatalogService) AdjustStock(ctx context.Context, actor auth.Principal, id uuid.UUID, delta int, reason string) (*models.Product, error) {
	if delta == 0 {
		return nil, invalid("stock change cannot be 0")
	}

	opType := models.OperationAdjustment
	if delta > 0 {
		opType = models.OperationIncoming
	}

	p, err := s.products.AdjustStock(ctx, id, delta, opType, strings.TrimSpace(reason))
	if err != nil {
		return nil, translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpUpdate, p.ID.String(), "", p.UpdatedAt, p)
	s.notifier.Audit(ctx, actor, "product.stock", p.ID.String(), bson.M{"delta": delta, "reason": reason, "stock": p.StockQuantity})
	s.checkStock(ctx, p)

	return p, nil
}

func (s *CatalogService) StockLedger(ctx context.Context, productID uuid.UUID) ([]models.StockOperation, error) {
	ops, err := s.operations.GetByProductID(ctx, productID)
	if err != nil {
		return nil, translate(err)
	}
	return ops, nil
}

// UploadImage stores a product picture and points the product at it.
func (s *CatalogService) UploadImage(ctx context.Context, actor auth.Principal, id uuid.UUID, contentType string, data []byte) (*models.Product, error) {
	if len(data) == 0 {
		return nil, invalid("image is empty")
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, invalid("image exceeds %d bytes", s.maxImageBytes)
	}

	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, invalid("unsupported image type %q", contentType)
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	objectPath := fmt.Sprintf("products/%s/%d%s", id, time.Now().UnixNano(), ext)
	url, err := s.images.Upload(ctx, objectPath, contentType, data)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return nil, err
	}

	p.ImageURL = url
	if err := s.products.Update(ctx, p); err != nil {
		return nil, translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpUpdate, p.ID.String(), "", p.UpdatedAt, p)
	s.notifier.Audit(ctx, actor, "product.image", p.ID.String(), bson.M{"url": url})

	return p, nil
}

// StockChanged re-reads products whose stock moved outside the catalog,
// at checkout or when an order is cancelled, and refreshes their alerts.
func (s *CatalogService) StockChanged(ctx context.Context, ids ...uuid.UUID) {
	if f, ok := s.products.(cacheForgetter); ok {
		f.Forget(ctx, ids...)
	}

	for _, id := range ids {
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			s.logger.Warn("failed to reload product after stock change", zap.String("product_id", id.String()), zap.Error(err))
			continue
		}
		s.notifier.Publish(ctx, realtime.TopicProducts, realtime.OpUpdate, p.ID.String(), "", p.UpdatedAt, p)
		s.checkStock(ctx, p)
	}
}

// checkStock keeps at most one open alert per product and type: low_stock
// at or below the threshold, out_of_stock at zero. Alerts resolve once the
// stock climbs back.
func (s *CatalogService) checkStock(ctx context.Context, p *models.Product) {
	var raise, resolve []models.StockAlertType

	switch {
	case p.StockQuantity == 0:
		raise = []models.StockAlertType{models.AlertLowStock, models.AlertOutOfStock}
	case p.StockQuantity <= s.lowThreshold:
		raise = []models.StockAlertType{models.AlertLowStock}
		resolve = []models.StockAlertType{models.AlertOutOfStock}
	default:
		resolve = []models.StockAlertType{models.AlertLowStock, models.AlertOutOfStock}
	}

	if len(resolve) > 0 {
		if _, err := s.alerts.ResolveForProduct(ctx, p.ID, resolve...); err != nil {
			s.logger.Warn("failed to resolve stock alerts", zap.String("product_id", p.ID.String()), zap.Error(err))
		}
	}

	for _, t := range raise {
		alert := &models.StockAlert{
			ProductID:    p.ID,
			ProductName:  p.Name,
			CurrentStock: p.StockQuantity,
			Threshold:    s.lowThreshold,
			AlertType:    t,
		}

		created, err := s.alerts.Raise(ctx, alert)
		if err != nil {
			s.logger.Warn("failed to raise stock alert", zap.String("product_id", p.ID.String()), zap.String("type", string(t)), zap.Error(err))
			continue
		}
		if created {
			s.logger.Info("stock alert raised", zap.String("product", p.Name), zap.String("type", string(t)), zap.Int("stock", p.StockQuantity))
			s.notifier.Publish(ctx, realtime.TopicStockAlerts, realtime.OpInsert, alert.ID.String(), "", alert.CreatedAt, alert)
		}
	}
}

func (s *CatalogService) OpenAlerts(ctx context.Context) ([]models.StockAlert, error) {
	alerts, err := s.alerts.ListOpen(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return alerts, nil
}

func (s *CatalogService) ResolveAlert(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if err := s.alerts.Resolve(ctx, id); err != nil {
		return translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicStockAlerts, realtime.OpDelete, id.String(), "", time.Now(), nil)
	s.notifier.Audit(ctx, actor, "stock_alert.resolve", id.String(), nil)

	return nil
}

func (s *CatalogService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, translate(err)
	}

	_, active, err := s.products.List(ctx, repository.ProductFilter{ActiveOnly: true, Limit: 1})
	if err != nil {
		return nil, translate(err)
	}

	alerts, err := s.alerts.ListOpen(ctx)
	if err != nil {
		return nil, translate(err)
	}

	return &Dashboard{
		OrdersByStatus: stats.ByStatus,
		Revenue:        stats.DeliveredTotal,
		ActiveProducts: active,
		OpenAlerts:     len(alerts),
	}, nil
}
