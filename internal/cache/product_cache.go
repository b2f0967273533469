package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lpg-service/internal/models"
	"lpg-service/internal/repository"
)

const (
	activeListingKey = "products:active"
	notFoundMarker   = "notfound"
)

// CachedProductRepository keeps single products and the customer-facing
// listing pages in redis. Every write drops the touched product and the
// whole listing hash. Redis failures fall through to the database.
type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

func NewCachedProductRepository(realRepo repository.ProductRepository, redis *redis.Client, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    redis,
		ttl:      5 * time.Minute,
		logger:   logger,
	}
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id)
}

// listingField returns the hash field for a filter, or false when the
// filter is not a plain page of active products.
func listingField(f repository.ProductFilter) (string, bool) {
	if !f.ActiveOnly || f.Search != "" || f.Option != "" {
		return "", false
	}
	if f.SortBy != "" && f.SortBy != "created_at" {
		return "", false
	}
	return fmt.Sprintf("%t:%d:%d", f.Ascending, f.Limit, f.Offset), true
}

var _ repository.ProductRepository = (*CachedProductRepository)(nil)

type cachedPage struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}

		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.logger.Warn("failed to unmarshal cached product, continuing with db", zap.String("key", key), zap.Error(err))
			break
		}

		return &product, nil

	case errors.Is(err, redis.Nil):

	default:
		c.logger.Warn("redis error, continuing with db", zap.String("key", key), zap.Error(err))
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, time.Minute).Err(); setErr != nil {
				c.logger.Warn("failed to cache notfound", zap.String("key", key), zap.Error(setErr))
			}
		}
		return nil, err
	}

	c.store(ctx, key, product)

	return product, nil
}

func (c *CachedProductRepository) store(ctx context.Context, key string, product *models.Product) {
	jsonData, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("failed to marshal product", zap.Error(err))
		return
	}

	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache product", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int, error) {
	field, cacheable := listingField(filter)
	if !cacheable {
		return c.realRepo.List(ctx, filter)
	}

	data, err := c.redis.HGet(ctx, activeListingKey, field).Bytes()
	if err == nil {
		var page cachedPage
		if err := json.Unmarshal(data, &page); err == nil {
			return page.Products, page.Total, nil
		}
		c.logger.Warn("failed to unmarshal cached listing, continuing with db", zap.String("field", field))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("redis error, continuing with db", zap.String("key", activeListingKey), zap.Error(err))
	}

	products, total, err := c.realRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	jsonData, err := json.Marshal(cachedPage{Products: products, Total: total})
	if err != nil {
		c.logger.Warn("failed to marshal products", zap.Error(err))
		return products, total, nil
	}

	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, activeListingKey, field, jsonData)
	pipe.Expire(ctx, activeListingKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("failed to cache listing", zap.Error(err))
	}

	return products, total, nil
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id uuid.UUID) {
	keys := []string{activeListingKey}
	if id != uuid.Nil {
		keys = append(keys, productKey(id))
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate product cache", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}

	c.invalidate(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	err := c.realRepo.Update(ctx, product)
	c.invalidate(ctx, product.ID)
	return err
}

func (c *CachedProductRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	err := c.realRepo.SoftDelete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedProductRepository) AdjustStock(ctx context.Context, id uuid.UUID, change int, opType models.OperationType, reason string) (*models.Product, error) {
	product, err := c.realRepo.AdjustStock(ctx, id, change, opType, reason)
	c.invalidate(ctx, id)
	return product, err
}

// Forget drops cached state for a product changed outside this decorator,
// such as the stock decrement of a checkout.
func (c *CachedProductRepository) Forget(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		c.invalidate(ctx, uuid.Nil)
		return
	}
	for _, id := range ids {
		c.invalidate(ctx, id)
	}
}
