// ABOUTME: Thread-safe TTL cache for deduplicating inbound channel deliveries
// ABOUTME: Providers retry webhooks, so the same external message id can arrive more than once

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores when a key was claimed and its position in the eviction list.
type entry struct {
	claimedAt time.Time
	element   *list.Element
}

// Cache remembers recently seen keys for a TTL, bounded to maxSize entries.
// The oldest key is evicted first when the cache is full.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// Key builds the cache key for a provider message id on a channel.
func Key(channel, externalID string) string {
	return channel + ":" + externalID
}

// New creates a cache and starts a background sweep of expired keys that
// runs every sweepEvery. Call Close to stop it.
func New(ttl time.Duration, maxSize int, sweepEvery time.Duration) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepEvery)
	return c
}

// Seen reports whether key was claimed within the TTL.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[key]
	return ok && c.now().Sub(e.claimedAt) < c.ttl
}

// Claim atomically records key. It returns false when key was already
// claimed within the TTL, meaning the caller holds a duplicate.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[key]; ok {
		if now.Sub(e.claimedAt) < c.ttl {
			return false
		}
		e.claimedAt = now
		c.order.MoveToBack(e.element)
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.seen[key] = &entry{
		claimedAt: now,
		element:   c.order.PushBack(key),
	}
	return true
}

// Release forgets key so a later retry is accepted. Used when processing
// a claimed delivery failed.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		c.order.Remove(e.element)
		delete(c.seen, key)
	}
}

// Len returns the number of remembered keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired keys. The list is in claim order, so it stops at the
// first live key.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		e := c.seen[key]
		if now.Sub(e.claimedAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
