package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "catalog:product:"

// CachedCatalog is a Redis read-through cache in front of another catalog.
// Redis failures fall through to the backing catalog.
type CachedCatalog struct {
	next   Catalog
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCatalog wraps next with a cache whose entries live for ttl.
func NewCachedCatalog(next Catalog, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached product or loads and caches it.
func (c *CachedCatalog) Get(ctx context.Context, id string) (Product, error) {
	key := cacheKeyPrefix + id
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Product
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		c.logger.Warn("drop corrupt catalog cache entry", slog.String("product_id", id))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", slog.String("product_id", id), slog.Any("error", err))
	}

	p, err := c.next.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", slog.String("product_id", id), slog.Any("error", err))
		}
	}
	return p, nil
}

// List always reads through; listings are rare and must reflect new products.
func (c *CachedCatalog) List(ctx context.Context) ([]Product, error) {
	return c.next.List(ctx)
}

// Invalidate removes a product from the cache.
func (c *CachedCatalog) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+id).Err()
}
