package weather

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a fetch result, success or failure, is reused.
const DefaultTTL = 10 * time.Minute

// Source is the external call behind the cache.
type Source interface {
	Current(ctx context.Context) (Conditions, error)
}

// Cache remembers the last fetch result for TTL. A failed fetch is cached
// as absent too, so an outage costs one request per TTL window.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	fetched time.Time
	valid   bool
	last    Conditions
	ok      bool
}

// NewCache wraps source with a TTL cache.
func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, ttl: ttl, now: time.Now}
}

// Fetch returns the cached conditions, refreshing them once when the cache
// is empty or older than the TTL. The bool is false when no conditions are
// available.
func (c *Cache) Fetch(ctx context.Context) (Conditions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && now.Sub(c.fetched) < c.ttl {
		return c.last, c.ok
	}

	cond, err := c.source.Current(ctx)
	c.fetched = now
	c.valid = true
	if err != nil {
		slog.Warn("weather fetch failed", "error", err)
		c.last, c.ok = Conditions{}, false
		return c.last, false
	}

	slog.Debug("weather refreshed", "temp", cond.Temperature, "desc", cond.Description)
	c.last, c.ok = cond, true
	return c.last, true
}

// Peek returns the cached value without ever calling the source.
func (c *Cache) Peek() (Conditions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.valid && c.ok
}
