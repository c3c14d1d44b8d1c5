// Package cache provides the shared TTL cache backing schema and
// relationship lookups.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns the fraction of lookups served from cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a TTL map shared by many concurrent readers and occasional
// writers. All access is guarded so read/invalidate races cannot
// produce a torn entry.
type Cache struct {
	mu     sync.RWMutex
	store  map[string]entry
	ttl    time.Duration
	hits   int64
	misses int64

	// now is swappable for tests.
	now func() time.Time
}

// DefaultTTL applies when New is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// New creates a Cache with the given entry TTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Key derives a cache key from a subject, an operation, and parameters.
func Key(subject, operation string, params ...string) string {
	parts := append([]string{subject, operation}, params...)
	return strings.Join(parts, ":")
}

// Get returns the cached value when present and unexpired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a Set may have replaced the
		// entry since the read above, and that fresh entry must stay.
		if e, ok = c.store[key]; ok && c.now().After(e.expiresAt) {
			delete(c.store, key)
		}
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.value, true
}

// Set stores a value under the key with the cache's TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Has reports whether an unexpired entry exists, without touching the
// hit/miss counters.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	return ok && !c.now().After(e.expiresAt)
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// InvalidatePattern removes every entry matching the pattern. A trailing
// "*" matches by prefix; otherwise the pattern is an exact key.
func (c *Cache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	removed := 0
	for key := range c.store {
		if (wildcard && strings.HasPrefix(key, prefix)) || (!wildcard && key == pattern) {
			delete(c.store, key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// Sweep drops expired entries. Run periodically so abandoned keys do not
// accumulate between lookups.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.store)}
}
