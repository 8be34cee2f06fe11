// Package cache provides the time-to-live store that deduplicates repeated
// gateway fetches. Expired entries are treated as absent and evicted lazily;
// Sweep lets a caller bound memory without a background timer.
package cache

import (
	"sync"
	"time"
)

// Entry is a stored value with its absolute expiry.
type Entry struct {
	Key       string
	Value     any
	StoredAt  time.Time
	ExpiresAt time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxEntries bounds the number of stored entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *TTLCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// TTLCache is a key/value store with per-entry expiry. It is safe for
// concurrent use.
type TTLCache struct {
	mu         sync.Mutex
	items      map[string]*Entry
	now        func() time.Time
	maxEntries int
}

// New builds an empty cache.
func New(opts ...Option) *TTLCache {
	c := &TTLCache{
		items: make(map[string]*Entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key when present and unexpired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	return ent.Value, true
}

// Has reports whether key holds an unexpired value.
func (c *TTLCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(key)
	return ok
}

// Set stores value under key for ttl, replacing any existing entry and
// resetting its timestamps. A non-positive ttl stores nothing.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.makeRoom(now)
	}
	c.items[key] = &Entry{
		Key:       key,
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes every entry.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Entry)
}

// Sweep evicts all expired entries and returns how many were removed.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTLCache) lookup(key string) (*Entry, bool) {
	ent, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if ent.expired(c.now()) {
		delete(c.items, key)
		return nil, false
	}
	return ent, true
}

func (c *TTLCache) sweepLocked(now time.Time) int {
	removed := 0
	for key, ent := range c.items {
		if ent.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// makeRoom frees one slot: expired entries go first, then the entry closest
// to expiry.
func (c *TTLCache) makeRoom(now time.Time) {
	if c.sweepLocked(now) > 0 {
		return
	}
	var victim *Entry
	for _, ent := range c.items {
		if victim == nil || ent.ExpiresAt.Before(victim.ExpiresAt) {
			victim = ent
		}
	}
	if victim != nil {
		delete(c.items, victim.Key)
	}
}
