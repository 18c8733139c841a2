// Package cache implements the bounded, in-memory response cache: an LRU
// keyed by (method, path), holding whole internal responses, opt-in and
// unbounded in time but bounded in entry count.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/types"
)

// Key identifies a cache entry: the request method and the path portion
// of the URI, with the query string stripped.
type Key struct {
	Method string
	Path   string
}

func (k Key) String() string {
	return k.Method + "\x00" + k.Path
}

// Cache is a concurrency-safe, bounded LRU response cache. A Cache with
// capacity 0 is disabled: every probe misses and no insert is retained.
type Cache struct {
	lru *lru.Cache
}

// New creates a Cache with the given capacity. capacity <= 0 disables
// caching entirely: Get always misses, Insert is a no-op.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return &Cache{}, nil
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Enabled reports whether this cache retains entries at all.
func (c *Cache) Enabled() bool {
	return c.lru != nil
}

// Get probes the cache for key. A miss is not an error: it simply means
// dispatch should proceed to the route table.
func (c *Cache) Get(key Key) (*types.Response, bool) {
	if c.lru == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key.String())
	if !ok {
		return nil, false
	}
	resp := v.(*types.Response)
	return resp, true
}

// Insert stores a well-formed response under key, evicting the least
// recently used entry if the cache is at capacity. Inserting a response
// for a failed or partial dispatch is the caller's responsibility to
// avoid: Insert itself does not interpret status codes, per the
// cache-all-well-formed-responses policy.
func (c *Cache) Insert(key Key, resp *types.Response) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key.String(), resp)
	metrics.CacheEntries.Set(float64(c.lru.Len()))
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
