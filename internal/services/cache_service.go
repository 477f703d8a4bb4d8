package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService is the counter store behind the per-key rate limiter.
type CacheService interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

type RedisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) (*RedisCacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &RedisCacheService{client: client}, nil
}

// Increment bumps a fixed-window counter, attaching the window TTL when the
// counter is created. Returns the count after the increment.
func (c *RedisCacheService) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCacheService) Close() error {
	return c.client.Close()
}
