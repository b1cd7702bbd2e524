// Package cache provides a short-TTL in-memory cache that fronts the
// experiment store on hot read paths. It holds a derived view only: the
// system stays correct with the Noop implementation wired in instead.
package cache

import (
	"sync"
	"time"
)

type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Invalidate(key string)
	InvalidateAll()
}

// Keys used by the experiment service.
const (
	ActiveTestsKey = "active-tests"
	testKeyPrefix  = "test:"
)

func TestKey(id string) string {
	return testKeyPrefix + id
}

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is a mutex-guarded map with a fixed per-entry lifetime.
// Expired entries are dropped lazily on read.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

const DefaultTTL = 30 * time.Second

func NewTTL(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate removes the key before releasing the lock, so a read that
// follows a write can never observe the pre-write entry.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *TTLCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Noop satisfies Cache without caching anything. Used in tests and when
// caching is disabled.
type Noop struct{}

func (Noop) Get(string) (any, bool) { return nil, false }
func (Noop) Set(string, any)        {}
func (Noop) Invalidate(string)      {}
func (Noop) InvalidateAll()         {}
