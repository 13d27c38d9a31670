package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

type CacheStats struct {
	Name      string `json:"name"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRUCache is a bounded, thread safe cache. Adding beyond capacity evicts the least recently
// used entry.
type LRUCache struct {
	name      string
	capacity  int
	lru       *lru.Cache
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func NewLRUCache(name string, capacity int) (*LRUCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache %s: capacity must be positive, got %d", name, capacity)
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &LRUCache{
		name:     name,
		capacity: capacity,
		lru:      l,
	}, nil
}

func (c *LRUCache) Get(key any) (any, bool) {
	value, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Contains checks for a key without touching recency or hit counters.
func (c *LRUCache) Contains(key any) bool {
	return c.lru.Contains(key)
}

func (c *LRUCache) Put(key any, value any) {
	if c.lru.Add(key, value) {
		c.evictions.Add(1)
	}
}

func (c *LRUCache) Remove(key any) {
	c.lru.Remove(key)
}

func (c *LRUCache) Keys() []any {
	keys := c.lru.Keys()
	out := make([]any, len(keys))
	copy(out, keys)
	return out
}

func (c *LRUCache) Len() int {
	return c.lru.Len()
}

func (c *LRUCache) Clear() {
	c.lru.Purge()
}

func (c *LRUCache) Stats() CacheStats {
	return CacheStats{
		Name:      c.name,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
	}
}
