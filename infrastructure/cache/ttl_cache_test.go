package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/infrastructure/cache"
)

func TestTTLCache_TakeIsSingleUse(t *testing.T) {
	c := cache.NewTTLCache[string](time.Minute, time.Minute)
	defer c.Close()

	c.Put("k", "v")

	v, ok := c.Take("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// Every subsequent take on the same key must miss.
	_, ok = c.Take("k")
	assert.False(t, ok)
}

func TestTTLCache_ExpiredEntryNotReturned(t *testing.T) {
	// Long sweep interval: expiry must hold even before the sweep runs.
	c := cache.NewTTLCache[int](10*time.Millisecond, time.Hour)
	defer c.Close()

	c.Put("k", 42)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Take("k")
	assert.False(t, ok, "expired entry must not be consumable")
}

func TestTTLCache_SweepEvictsAbandonedEntries(t *testing.T) {
	c := cache.NewTTLCache[int](5*time.Millisecond, 10*time.Millisecond)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Put(string(rune('a'+i)), i)
	}
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestTTLCache_TakeUnknownKey(t *testing.T) {
	c := cache.NewTTLCache[string](time.Minute, time.Minute)
	defer c.Close()

	_, ok := c.Take("never-stored")
	assert.False(t, ok)
}
