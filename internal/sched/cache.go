package sched

import (
	"sync"
	"time"
)

// DefaultTTL applies when a caller does not specify one.
const DefaultTTL = 5 * time.Minute

// defaultMaxEntries bounds the cache when no size is configured.
const defaultMaxEntries = 1000

type cacheEntry struct {
	value       any
	insertedAt  time.Time
	ttl         time.Duration
	accessCount int
	lastAccess  time.Time
}

// CacheStats summarizes cache behavior for introspection.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int     `json:"hits"`
	Misses     int     `json:"misses"`
	Evictions  int     `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// Cache is a TTL-bounded request cache with score-based eviction.
// Expired entries are never returned even while physically present.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	hits       int
	misses     int
	evictions  int
	onEvict    func()

	now func() time.Time // overridable for tests
}

// NewCache creates a cache holding at most maxEntries entries.
// A non-positive maxEntries selects the default bound.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached value for key when present and within TTL,
// updating the access statistics the eviction score is built from.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(e.insertedAt) >= e.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccess = now
	c.hits++
	return e.value, true
}

// Put stores value under key for ttl. A non-positive ttl selects the
// default. Exceeding the size bound evicts the lowest-scoring entries.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := c.now()
	c.entries[key] = &cacheEntry{
		value:      value,
		insertedAt: now,
		ttl:        ttl,
		lastAccess: now,
	}

	for len(c.entries) > c.maxEntries {
		c.evictOne()
	}
}

// evictOne removes the entry with the lowest recency/frequency score.
// Caller holds the mutex.
func (c *Cache) evictOne() {
	var victim string
	first := true
	var lowest float64

	for key, e := range c.entries {
		s := c.score(e)
		if first || s < lowest {
			victim = key
			lowest = s
			first = false
		}
	}

	if victim != "" {
		delete(c.entries, victim)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict()
		}
	}
}

// score weighs access frequency against staleness: accessCount per second
// of age, penalized by the seconds since the last access.
func (c *Cache) score(e *cacheEntry) float64 {
	now := c.now()
	age := now.Sub(e.insertedAt).Seconds()
	if age < 1 {
		age = 1
	}
	gap := now.Sub(e.lastAccess).Seconds()
	return float64(e.accessCount)/age - gap
}

// Purge drops all expired entries and reports how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) >= e.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache without touching hit/miss statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		HitRate:    hitRate,
	}
}
