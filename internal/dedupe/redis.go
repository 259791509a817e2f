package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
)

// DefaultTTL bounds how long a fingerprint stays cached.
const DefaultTTL = 72 * time.Hour

// RedisCache keeps fingerprints as keys with a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Seen reports whether key is present.
func (c *RedisCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark stores key unless it already exists.
func (c *RedisCache) Mark(ctx context.Context, key string) error {
	return c.client.SetNX(ctx, key, 1, c.ttl).Err()
}

// ConnectRedis opens and pings a client for cfg.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	if logger != nil {
		logger.Info("Connected to Redis dedupe cache",
			zap.String("address", cfg.Address),
			zap.Int("db", cfg.DB),
			zap.Duration("ttl", cfg.TTL),
		)
	}
	return client, nil
}
