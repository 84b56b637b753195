// ABOUTME: Tests for the dedupe cache
// ABOUTME: Covers claim, expiry, release, eviction order, sweeping and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache returns a cache with a controllable clock.
func newTestCache(t *testing.T, ttl time.Duration, size int) (*Cache, *time.Time) {
	t.Helper()
	c := New(ttl, size, time.Hour)
	t.Cleanup(c.Close)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_ClaimOnce(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	key := Key("instagram", "mid.123")

	assert.False(t, c.Seen(key))
	assert.True(t, c.Claim(key))
	assert.True(t, c.Seen(key))
	assert.False(t, c.Claim(key), "second claim is a duplicate")
}

func TestCache_ClaimAfterExpiry(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 10)

	require.True(t, c.Claim("k"))
	*now = now.Add(time.Minute)
	assert.False(t, c.Seen("k"))
	assert.True(t, c.Claim("k"))
	assert.Equal(t, 1, c.Len())
}

func TestCache_Release(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	require.True(t, c.Claim("k"))
	c.Release("k")
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Claim("k"))

	c.Release("never-claimed")
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c, now := newTestCache(t, time.Hour, 3)

	for i := 0; i < 3; i++ {
		require.True(t, c.Claim(fmt.Sprintf("k%d", i)))
		*now = now.Add(time.Second)
	}
	require.True(t, c.Claim("k3"))

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("k0"))
	assert.True(t, c.Seen("k1"))
	assert.True(t, c.Seen("k3"))
}

func TestCache_SweepDropsExpired(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 10)

	require.True(t, c.Claim("old"))
	*now = now.Add(30 * time.Second)
	require.True(t, c.Claim("young"))
	*now = now.Add(45 * time.Second)

	c.sweep()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("young"))
}

func TestCache_ConcurrentClaimsAdmitOne(t *testing.T) {
	c := New(time.Minute, 100, time.Hour)
	defer c.Close()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Claim("same") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New(time.Minute, 10, 0)
	c.Close()
	c.Close()
}
