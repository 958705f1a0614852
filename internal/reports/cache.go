package reports

import (
	"sync"
	"time"
)

// aggregateCache keeps computed aggregates for a short time so dashboards
// polling the stats endpoint do not re-run the counting queries.
type aggregateCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	value      interface{}
	expiration time.Time
}

func newAggregateCache(ttl time.Duration) *aggregateCache {
	return &aggregateCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *aggregateCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

func (c *aggregateCache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.data {
		if now.After(e.expiration) {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{value: value, expiration: now.Add(c.ttl)}
}

// getOrSet returns the cached value or computes and stores it.
func (c *aggregateCache) getOrSet(key string, compute func() (interface{}, error)) (interface{}, error) {
	if c.ttl <= 0 {
		return compute()
	}
	if v, ok := c.get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.set(key, v)
	return v, nil
}
