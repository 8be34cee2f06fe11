package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func newTestCache(clock *fakeClock, opts ...Option) *TTLCache {
	return New(append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestSetThenGetUntilExpiry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := newFakeClock()
		c := newTestCache(clock)

		key := rapid.StringMatching(`[a-z0-9:/?=&]{1,24}`).Draw(t, "key")
		value := rapid.Int().Draw(t, "value")
		ttl := time.Duration(rapid.IntRange(1, 60_000).Draw(t, "ttlMs")) * time.Millisecond

		c.Set(key, value, ttl)
		got, ok := c.Get(key)
		if !ok || got != value {
			t.Fatalf("Get(%q) = %v, %v; want %v, true", key, got, ok, value)
		}

		clock.Advance(ttl)
		if _, ok := c.Get(key); !ok {
			t.Fatalf("entry expired at exactly ttl; want present until now > expiresAt")
		}

		clock.Advance(time.Millisecond)
		if _, ok := c.Get(key); ok {
			t.Fatalf("Get(%q) after ttl returned a value", key)
		}
		if c.Len() != 0 {
			t.Fatalf("expired entry not evicted lazily, Len = %d", c.Len())
		}
	})
}

func TestSetOverwritesAndResetsTimestamps(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("k", "old", time.Second)
	clock.Advance(900 * time.Millisecond)
	c.Set("k", "new", time.Second)
	clock.Advance(900 * time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestHasDeleteClear(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	assert.True(t, c.Has("a"))

	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))

	c.Clear()
	assert.False(t, c.Has("b"))
	assert.Equal(t, 0, c.Len())
}

func TestNonPositiveTTLStoresNothing(t *testing.T) {
	c := New()
	c.Set("k", 1, 0)
	c.Set("j", 1, -time.Second)
	assert.Equal(t, 0, c.Len())
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("short-1", 1, time.Second)
	c.Set("short-2", 2, time.Second)
	c.Set("long", 3, time.Hour)

	assert.Equal(t, 0, c.Sweep())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("long"))
}

func TestMaxEntriesEvictsSoonestExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, WithMaxEntries(3))

	c.Set("a", 1, 3*time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, 2*time.Minute)
	c.Set("d", 4, 5*time.Minute)

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Has("b"), "entry closest to expiry should be evicted")
	for _, k := range []string{"a", "c", "d"} {
		assert.True(t, c.Has(k), fmt.Sprintf("%s should remain", k))
	}

	// Overwriting an existing key never evicts.
	c.Set("a", 10, time.Second)
	assert.Equal(t, 3, c.Len())
}

func TestMaxEntriesPrefersExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, WithMaxEntries(2))

	c.Set("stale", 1, time.Second)
	c.Set("fresh", 2, time.Hour)
	clock.Advance(2 * time.Second)
	c.Set("new", 3, time.Minute)

	assert.False(t, c.Has("stale"))
	assert.True(t, c.Has("fresh"))
	assert.True(t, c.Has("new"))
}
