package api

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	data    []byte
	expires time.Time
}

// Cache memoizes read responses for a fixed TTL. Expiry is checked lazily
// on read; nothing sweeps the map in the background.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewCache creates a cache. A non-positive ttl disables caching.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[string]cacheEntry)}
}

// CacheKey builds the composite key for an endpoint and its parameters.
// url.Values.Encode sorts by key, so parameter order does not matter.
func CacheKey(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// Get returns a live entry. Expired entries are dropped.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

// Put stores data under key.
func (c *Cache) Put(key string, data []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, expires: c.now().Add(c.ttl)}
}

// Invalidate removes every entry whose key references id as a whole path
// segment or parameter value. It returns the number removed.
func (c *Cache) Invalidate(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if keyReferences(key, id) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Clear wipes the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func keyReferences(key, id string) bool {
	tokens := strings.FieldsFunc(key, func(r rune) bool {
		return r == '/' || r == '?' || r == '&' || r == '='
	})
	for _, tok := range tokens {
		if tok == id {
			return true
		}
	}
	return false
}
