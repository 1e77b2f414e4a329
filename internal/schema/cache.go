package schema

import (
	"container/list"
	"sync"
	"time"
)

// schemaCache is a thread-safe LRU cache of compiled schemas keyed by
// fingerprint. Schemas are immutable, so entries are shared, not copied.
type schemaCache struct {
	mu      sync.RWMutex
	items   map[string]*list.Element
	lru     *list.List
	maxSize int
	ttl     time.Duration
}

type cacheItem struct {
	key       string
	value     *Schema
	expiresAt time.Time
}

func newSchemaCache(maxSize int, ttl time.Duration) *schemaCache {
	return &schemaCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a schema from the cache, or nil.
func (c *schemaCache) Get(key string) *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, exists := c.items[key]
	if !exists {
		return nil
	}

	item := elem.Value.(*cacheItem)
	if time.Now().After(item.expiresAt) {
		// Expired; eviction happens on the next Set under the write lock.
		return nil
	}
	return item.value
}

// Set stores a schema in the cache.
func (c *schemaCache) Set(key string, value *Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.lru.MoveToFront(elem)
		item := elem.Value.(*cacheItem)
		item.value = value
		item.expiresAt = time.Now().Add(c.ttl)
		return
	}

	item := &cacheItem{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		c.evictOldest()
	}
}

// Clear removes all items from the cache.
func (c *schemaCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru = list.New()
}

func (c *schemaCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

func (c *schemaCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
}
