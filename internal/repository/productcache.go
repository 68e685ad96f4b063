package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productCacheKeyPrefix = "product:detail:"
	productListCacheKey   = "product:list"
	productCacheTTL       = 5 * time.Minute
)

var _ product.Repository = (*CachedProductRepository)(nil)

// CachedProductRepository is a read-through Redis cache in front of a
// product.Repository. Reads serve from cache when possible; every mutation
// (including stock movements) invalidates, since stale stock would let the
// service promise inventory it no longer has.
type CachedProductRepository struct {
	inner product.Repository
	rdb   *redis.Client
	lg    *zap.Logger
}

// NewCachedProductRepository wraps inner with a Redis cache.
func NewCachedProductRepository(inner product.Repository, rdb *redis.Client, lg *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{inner: inner, rdb: rdb, lg: lg}
}

// List returns the catalog, cached as a single document.
func (r *CachedProductRepository) List(ctx context.Context) ([]product.Product, error) {
	if raw, err := r.rdb.Get(ctx, productListCacheKey).Bytes(); err == nil {
		var products []product.Product
		if err := json.Unmarshal(raw, &products); err == nil {
			return products, nil
		}
		r.lg.Warn("corrupt product list cache entry, refetching")
	}

	products, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, productListCacheKey, products)
	return products, nil
}

// GetByID returns a product, cached per id.
func (r *CachedProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := productCacheKeyPrefix + id
	if raw, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var p product.Product
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		r.lg.Warn("corrupt product cache entry, refetching", zap.String("product_id", id))
	}

	p, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, p)
	return p, nil
}

// Create writes through and invalidates.
func (r *CachedProductRepository) Create(ctx context.Context, p *product.Product) error {
	if err := r.inner.Create(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// Update writes through and invalidates.
func (r *CachedProductRepository) Update(ctx context.Context, p *product.Product) error {
	if err := r.inner.Update(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// Delete writes through and invalidates.
func (r *CachedProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// DeductStock writes through and invalidates the touched products.
func (r *CachedProductRepository) DeductStock(ctx context.Context, adjustments []product.StockAdjustment) error {
	if err := r.inner.DeductStock(ctx, adjustments); err != nil {
		return err
	}
	r.invalidateAdjustments(ctx, adjustments)
	return nil
}

// RestoreStock writes through and invalidates the touched products.
func (r *CachedProductRepository) RestoreStock(ctx context.Context, adjustments []product.StockAdjustment) error {
	if err := r.inner.RestoreStock(ctx, adjustments); err != nil {
		return err
	}
	r.invalidateAdjustments(ctx, adjustments)
	return nil
}

func (r *CachedProductRepository) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, productCacheTTL).Err(); err != nil {
		r.lg.Warn("set product cache", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachedProductRepository) invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, productListCacheKey)
	for _, id := range ids {
		keys = append(keys, productCacheKeyPrefix+id)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		r.lg.Warn("invalidate product cache", zap.Error(err))
	}
}

func (r *CachedProductRepository) invalidateAdjustments(ctx context.Context, adjustments []product.StockAdjustment) {
	ids := make([]string, len(adjustments))
	for i, adj := range adjustments {
		ids[i] = adj.ProductID
	}
	r.invalidate(ctx, ids...)
}
