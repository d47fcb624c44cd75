// Package cache holds a two-way in-memory index over recently used
// mappings: one direction keyed by the (fieldType, value) lookup hash,
// the other by anonymized token. Entries carry their own expiry and are
// checked lazily on every read; the persistent store stays the source of
// truth and a cache miss simply falls through to it.
package cache

import (
	"sync"
	"time"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

// MappingCache is an advisory two-way mapping cache, safe for concurrent use.
type MappingCache struct {
	mu      sync.RWMutex
	byHash  map[string]mapping.Mapping
	byToken map[string]mapping.Mapping
}

// New creates an empty mapping cache.
func New() *MappingCache {
	return &MappingCache{
		byHash:  make(map[string]mapping.Mapping),
		byToken: make(map[string]mapping.Mapping),
	}
}

// GetByHash returns the cached mapping for a lookup hash if it is still live.
func (c *MappingCache) GetByHash(hash string) (mapping.Mapping, bool) {
	c.mu.RLock()
	m, ok := c.byHash[hash]
	c.mu.RUnlock()

	if !ok || m.Expired(time.Now()) {
		return mapping.Mapping{}, false
	}
	return m, true
}

// GetByToken returns the cached mapping for a token if it is still live.
func (c *MappingCache) GetByToken(token string) (mapping.Mapping, bool) {
	c.mu.RLock()
	m, ok := c.byToken[token]
	c.mu.RUnlock()

	if !ok || m.Expired(time.Now()) {
		return mapping.Mapping{}, false
	}
	return m, true
}

// Put stores the mapping in both directions, replacing any previous entry
// for the same hash or token.
func (c *MappingCache) Put(hash string, m mapping.Mapping) {
	c.mu.Lock()
	c.byHash[hash] = m
	c.byToken[m.AnonymizedValue] = m
	c.mu.Unlock()
}

// Purge drops every entry in both directions. Called after an expiry
// sweep on the store; coarse, but sweeps are infrequent and the cache
// rebuilds on demand.
func (c *MappingCache) Purge() {
	c.mu.Lock()
	c.byHash = make(map[string]mapping.Mapping)
	c.byToken = make(map[string]mapping.Mapping)
	c.mu.Unlock()
}

// Len returns the number of hash-keyed entries, live or not.
func (c *MappingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byHash)
}
