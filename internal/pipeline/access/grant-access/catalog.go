package grantaccess

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

const productCachePrefix = "product:slug:"

// CachedCatalog is a read-through Redis cache in front of a ProductCatalog.
// Misses are not cached, so a product added later is picked up immediately.
// Redis failures fall through to the source.
type CachedCatalog struct {
	source ProductCatalog
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedCatalog(source ProductCatalog, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedCatalog {
	return &CachedCatalog{source: source, redis: rdb, ttl: ttl, logger: log}
}

func (c *CachedCatalog) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	key := productCachePrefix + slug

	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var p models.Product
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("Discarding corrupt product cache entry", map[string]interface{}{"key": key})
	} else if err != redis.Nil {
		c.logger.Debug("Product cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	p, err := c.source.FindProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("Product cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return p, nil
}

// Invalidate drops cached entries for the given slugs.
func (c *CachedCatalog) Invalidate(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = productCachePrefix + s
	}
	return c.redis.Del(ctx, keys...).Err()
}
