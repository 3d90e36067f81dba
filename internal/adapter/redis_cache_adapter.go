package adapter

import (
	"context"
	"errors"
	"time"

	"lms-assessment/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCacheAdapter implements domain.Cache on top of Redis.
type RedisCacheAdapter struct {
	client redis.UniversalClient
}

// NewRedisCacheAdapter creates a cache backed by a connected client.
func NewRedisCacheAdapter(client redis.UniversalClient) domain.Cache {
	return &RedisCacheAdapter{client: client}
}

// Get returns domain.ErrCacheMiss when the key does not exist.
func (r *RedisCacheAdapter) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	return val, err
}

func (r *RedisCacheAdapter) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Delete is a no-op for missing keys.
func (r *RedisCacheAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCacheAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
