package index

import "filecabinet/pkg/common"

type cacheKey struct {
	field common.Field
	key   string
}

// Cache memoizes field lookups until the next write. Any mutation of the
// owning store must call Clear; entries are never invalidated one by one.
type Cache struct {
	enabled bool
	entries map[cacheKey][]common.Record
}

// NewCache returns a cache. A disabled cache misses on every Get.
func NewCache(enabled bool) *Cache {
	return &Cache{
		enabled: enabled,
		entries: make(map[cacheKey][]common.Record),
	}
}

func (c *Cache) Enabled() bool { return c.enabled }

// Get returns a copy of the cached result.
func (c *Cache) Get(f common.Field, key string) ([]common.Record, bool) {
	if !c.enabled {
		return nil, false
	}
	records, ok := c.entries[cacheKey{f, key}]
	if !ok {
		return nil, false
	}
	return append([]common.Record(nil), records...), true
}

// Put stores a copy of records.
func (c *Cache) Put(f common.Field, key string, records []common.Record) {
	if !c.enabled {
		return
	}
	c.entries[cacheKey{f, key}] = append([]common.Record(nil), records...)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if len(c.entries) == 0 {
		return
	}
	c.entries = make(map[cacheKey][]common.Record)
}

func (c *Cache) Len() int { return len(c.entries) }
