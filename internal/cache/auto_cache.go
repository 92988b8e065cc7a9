package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"autohaus/pkg/domain"
)

const opTimeout = 3 * time.Second

// AutoCache keeps recently read Autos in Redis with a TTL. It is a pure
// read-through cache: lookups and stores are best-effort, a Redis failure
// never fails the request.
type AutoCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAutoCache builds a Redis-backed cache.
func NewAutoCache(addr, password string, ttl time.Duration) *AutoCache {
	return &AutoCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// Get returns the cached Auto, if present.
func (c *AutoCache) Get(ctx context.Context, id uint) (*domain.Auto, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Debug("cache get failed", "id", id, "error", err)
		return nil, false
	}
	var a domain.Auto
	if err := json.Unmarshal(raw, &a); err != nil {
		slog.Debug("cache entry corrupt", "id", id, "error", err)
		return nil, false
	}
	return &a, true
}

// Put stores an Auto under its ID.
func (c *AutoCache) Put(ctx context.Context, a *domain.Auto) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key(a.ID), raw, c.ttl).Err(); err != nil {
		slog.Debug("cache put failed", "id", a.ID, "error", err)
	}
}

// Invalidate drops the entry for an ID after a write.
func (c *AutoCache) Invalidate(ctx context.Context, id uint) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Del(ctx, key(id)).Err(); err != nil && err != redis.Nil {
		slog.Debug("cache invalidate failed", "id", id, "error", err)
	}
}

func key(id uint) string {
	return fmt.Sprintf("auto:%d", id)
}
