// internal/common/database/redis.go
package database

import (
	"context"
	"time"

	"purchase-fulfillment/internal/common/config"
	"purchase-fulfillment/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the product cache connection.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis does not dial; the first Ping or command does.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	return &RedisClient{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 5,
	})}
}

// Ping is used both for startup retries and the readiness probe.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
