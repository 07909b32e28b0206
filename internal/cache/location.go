// Package cache keeps the most recent resolved location per device.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// ErrMiss is returned when no fresh location is cached.
var ErrMiss = errors.New("cache miss")

// DefaultTTL matches the periodic refresh interval.
const DefaultTTL = 5 * time.Minute

// LocationCache stores the last ResolvedLocation per device.
// Writes are last-write-wins.
type LocationCache interface {
	Get(ctx context.Context, deviceID string) (models.ResolvedLocation, error)
	Set(ctx context.Context, deviceID string, loc models.ResolvedLocation) error
}

// RedisLocationCache keeps locations as JSON under "covert:location:<device>".
type RedisLocationCache struct {
	c   *redis.Client
	ttl time.Duration
}

func NewRedisLocationCache(c *redis.Client, ttl time.Duration) *RedisLocationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocationCache{c: c, ttl: ttl}
}

func locationKey(deviceID string) string {
	return "covert:location:" + deviceID
}

func (r *RedisLocationCache) Get(ctx context.Context, deviceID string) (models.ResolvedLocation, error) {
	var loc models.ResolvedLocation
	val, err := r.c.Get(ctx, locationKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return loc, ErrMiss
		}
		return loc, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(val, &loc); err != nil {
		return loc, fmt.Errorf("decode location: %w", err)
	}
	return loc, nil
}

func (r *RedisLocationCache) Set(ctx context.Context, deviceID string, loc models.ResolvedLocation) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	return r.c.Set(ctx, locationKey(deviceID), b, r.ttl).Err()
}

// MemoryLocationCache is the in-process LocationCache used without redis.
// Entries older than the TTL, judged by ResolvedAt, are misses.
type MemoryLocationCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	locs map[string]models.ResolvedLocation
}

func NewMemoryLocationCache(ttl time.Duration) *MemoryLocationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocationCache{
		ttl:  ttl,
		now:  time.Now,
		locs: map[string]models.ResolvedLocation{},
	}
}

func (m *MemoryLocationCache) Get(_ context.Context, deviceID string) (models.ResolvedLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loc, ok := m.locs[deviceID]
	if !ok || m.now().Sub(loc.ResolvedAt) > m.ttl {
		return models.ResolvedLocation{}, ErrMiss
	}
	return loc, nil
}

func (m *MemoryLocationCache) Set(_ context.Context, deviceID string, loc models.ResolvedLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locs[deviceID] = loc
	return nil
}
