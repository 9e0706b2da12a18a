package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is the L1 cache: an LRU bounded both by entry count and by
// total bytes.
type MemoryCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, []byte]
	capacity int64
	size     int64
	stats    Stats
}

// NewMemoryCache returns an LRU holding at most items entries and capacity
// bytes.
func NewMemoryCache(items int, capacity int64) (*MemoryCache, error) {
	if items <= 0 {
		items = DefaultConfig().MemoryItems
	}
	c := &MemoryCache{capacity: capacity}
	l, err := lru.NewWithEvict[string, []byte](items, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	c.stats.Capacity = capacity
	return c, nil
}

// onEvict runs inside lru calls, which are all made with c.mu held.
func (c *MemoryCache) onEvict(_ string, value []byte) {
	c.size -= int64(len(value))
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return v, true
}

// Put stores a value, evicting least recently used entries until it fits.
func (c *MemoryCache) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	for c.size+n > c.capacity && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
		c.stats.Evictions++
	}
	if c.lru.Add(key, value) {
		c.stats.Evictions++
	}
	c.size += n
	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes every entry.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.size = 0
	return nil
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.size
	s.Items = c.lru.Len()
	return s
}
