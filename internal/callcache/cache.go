package callcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
)

const DefaultSize = 1024

// Cache holds the last persisted history of recently synced tenants. Stored
// entries are never handed out directly; Get returns a clone.
type Cache struct {
	entries *lru.Cache[string, callsdomain.CacheEntry]
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, callsdomain.CacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(tenantID string) (callsdomain.CacheEntry, bool) {
	entry, ok := c.entries.Get(tenantID)
	if !ok {
		return callsdomain.CacheEntry{}, false
	}
	return entry.Clone(), true
}

func (c *Cache) Put(entry callsdomain.CacheEntry) {
	c.entries.Add(entry.TenantID, entry.Clone())
}

func (c *Cache) Invalidate(tenantID string) {
	c.entries.Remove(tenantID)
}
