// Package cache holds geocoding search results for a bounded time.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// Cache defines the interface for geocoding result caching implementations.
// Get returns cached results if present and not expired, Set stores them with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.GeoResult, bool, error)
	Set(ctx context.Context, key string, value []models.GeoResult, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     []models.GeoResult
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (results, true, nil) on a hit and (nil, false, nil) on a miss or expiry.
// The returned slice is a copy.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]models.GeoResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return cloneResults(entry.value), true, nil
}

// Set stores results for ttl. The entry is removed on the first Get after it expires.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []models.GeoResult, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     cloneResults(value),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func cloneResults(in []models.GeoResult) []models.GeoResult {
	out := make([]models.GeoResult, len(in))
	copy(out, in)
	return out
}
