package analysis

import (
	"container/list"
	"sync"
)

type cacheItem[V any] struct {
	key   string
	value V
}

// Cache is a bounded map that evicts in insertion order. Reads do not
// refresh an entry and overwriting a key keeps its original position.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int

	evictable func(V) bool
}

// NewCache creates a cache holding at most capacity entries
func NewCache[V any](capacity int) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get returns the value stored under key
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		return elem.Value.(*cacheItem[V]).value, true
	}
	var zero V
	return zero, false
}

// Put stores value under key and returns how many entries were evicted
func (c *Cache[V]) Put(key string, value V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheItem[V]).value = value
		return 0
	}

	c.items[key] = c.order.PushBack(&cacheItem[V]{key: key, value: value})

	evicted := 0
	for elem := c.order.Front(); elem != nil && c.order.Len() > c.capacity; {
		next := elem.Next()
		item := elem.Value.(*cacheItem[V])
		if c.evictable == nil || c.evictable(item.value) {
			c.order.Remove(elem)
			delete(c.items, item.key)
			evicted++
		}
		elem = next
	}
	return evicted
}

// SetEvictable restricts eviction to entries for which fn returns true. The
// cache grows past its capacity while every older entry is pinned.
func (c *Cache[V]) SetEvictable(fn func(V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictable = fn
}

// Delete removes key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// Keys returns the keys from oldest to newest
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*cacheItem[V]).key)
	}
	return keys
}
