package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
)

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// cacheKey returns SHA-256 hex of the normalized address tuple.
func cacheKey(address, city, state string) string {
	normalized := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(address)),
		strings.ToLower(strings.TrimSpace(city)),
		strings.ToUpper(strings.TrimSpace(state)),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// Cache is an insert-only, process-lifetime map of resolved addresses.
// Entries are never invalidated at runtime; a restart clears it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Coordinates
}

// NewCache creates an empty geocode cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Coordinates)}
}

// Get returns the cached coordinates for a key, if present.
func (c *Cache) Get(key string) (Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coords, ok := c.entries[key]
	return coords, ok
}

// Set stores coordinates under a key.
func (c *Cache) Set(key string, coords Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = coords
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
