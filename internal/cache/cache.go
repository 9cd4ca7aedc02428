// Package cache implements the in-memory TTL cache backing denormalized
// read views. Entries expire after their per-entry TTL and the cache never
// holds more than a configured number of entries; overflow evicts the
// oldest-inserted entries first. A background sweep removes expired
// entries between reads, but a Get against an expired entry is always
// correct regardless of sweep timing.
package cache

import (
	"regexp"
	"sync"
	"time"

	"github.com/starford/wunjo/internal/metrics"
)

type item struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a TTL + max-entries bounded key-value cache. It is safe for
// concurrent use.
type Cache struct {
	mu    sync.Mutex
	items map[string]item

	maxEntries int
	hits       uint64
	misses     uint64
	evictions  uint64

	now func() time.Time
	ms  *metrics.Set

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, used by tests to advance past TTLs.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics attaches Prometheus hit/miss instrumentation.
func WithMetrics(ms *metrics.Set) Option {
	return func(c *Cache) { c.ms = ms }
}

// New creates a cache holding at most maxEntries items and starts the
// background sweep at the given interval. A non-positive interval
// disables the sweep. Callers must Close the cache to stop the sweeper.
func New(maxEntries int, sweepEvery time.Duration, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		items:      make(map[string]item),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(sweepEvery)
	return c
}

func (c *Cache) sweepLoop(every time.Duration) {
	defer close(c.done)
	if every <= 0 {
		<-c.stop
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the background sweep. The cache remains usable afterwards.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Set stores data under key with the given TTL, evicting oldest entries
// if the cache would exceed its entry ceiling.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{data: data, storedAt: c.now(), ttl: ttl}
	for len(c.items) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, it := range c.items {
		if first || it.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, first = k, it.storedAt, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
		c.evictions++
	}
}

// Get returns the cached data for key, or (nil, false) if the key is
// absent or expired. Expired entries are evicted on read.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		c.missLocked()
		return nil, false
	}
	if c.expiredLocked(it) {
		delete(c.items, key)
		c.evictions++
		c.missLocked()
		return nil, false
	}
	c.hits++
	if c.ms != nil {
		c.ms.CacheHits.Inc()
	}
	return it.data, true
}

func (c *Cache) missLocked() {
	c.misses++
	if c.ms != nil {
		c.ms.CacheMisses.Inc()
	}
}

func (c *Cache) expiredLocked(it item) bool {
	return it.ttl > 0 && c.now().Sub(it.storedAt) > it.ttl
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]item)
}

// ClearPattern removes every key matching re and returns how many were
// dropped.
func (c *Cache) ClearPattern(re *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.items {
		if re.MatchString(k) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Sweep removes all expired entries. Called periodically by the
// background loop and exposed for tests.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, it := range c.items {
		if c.expiredLocked(it) {
			delete(c.items, k)
			c.evictions++
			n++
		}
	}
	return n
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
