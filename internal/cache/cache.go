package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores serialized values under namespaced keys. A miss is reported as
// found=false with a nil error.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Delete(ctx context.Context, keys ...string) error
	GenerateKey(operation, key string) string
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

// NewRedis returns a Cache backed by the redis server at addr.
func NewRedis(addr, serviceName string) (Cache, func() error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &redisCache{client: client, serviceName: serviceName}, client.Close
}

// Ping checks connectivity when c is redis-backed.
func Ping(ctx context.Context, c Cache) error {
	rc, ok := c.(*redisCache)
	if !ok {
		return nil
	}
	return rc.client.Ping(ctx).Err()
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, payload, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A payload we cannot decode is treated as a miss and dropped.
		_ = r.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return generateKey(r.serviceName, operation, key)
}

func generateKey(service, operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", service, operation, key)
}

type nopCache struct {
	serviceName string
}

// NewNop returns a Cache that never stores anything.
func NewNop(serviceName string) Cache {
	return nopCache{serviceName: serviceName}
}

func (nopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (nopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (nopCache) Delete(context.Context, ...string) error               { return nil }

func (n nopCache) GenerateKey(operation, key string) string {
	return generateKey(n.serviceName, operation, key)
}
