package strokes

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the resolution cache when no explicit size is configured.
const DefaultCacheSize = 4096

// Cache holds stroke counts obtained from the auxiliary lookup for the lifetime of the process.
// It is safe for concurrent use; concurrent writers of the same key simply overwrite each other.
type Cache struct {
	entries *lru.Cache[string, int]
}

// NewCache constructs a bounded cache. Non-positive sizes fall back to DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, int](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Cache{entries: entries}
}

// Get returns the cached count for a character.
func (c *Cache) Get(char string) (int, bool) {
	if c == nil || c.entries == nil {
		return 0, false
	}
	return c.entries.Get(char)
}

// Put stores a positive count; other values are ignored.
func (c *Cache) Put(char string, count int) {
	if c == nil || c.entries == nil || count <= 0 || char == "" {
		return
	}
	c.entries.Add(char, count)
}

// Len reports the number of cached characters.
func (c *Cache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Purge()
}
