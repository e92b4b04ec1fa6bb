package insights

import (
	"sync"
	"time"
)

// resultCache is a simple in-memory TTL cache for generated insights. This
// service runs single-process, so no external cache is needed.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	insights *Insights
	storedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(key string) (*Insights, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.insights, true
}

func (c *resultCache) put(key string, insights *Insights) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{insights: insights, storedAt: time.Now()}
}
