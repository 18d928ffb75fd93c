// Package media is the client-side media access layer: listing, two-phase
// upload, presigned downloads with a local URL cache, adjacent-item
// prefetch, selection tracking, and thumbnail-completion polling.
package media

import (
	"sync"
	"time"
)

// URLCache holds presigned download URLs for a TTL strictly below the
// backend's expiry, so a cached URL is always still usable when served.
type URLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]urlEntry
	hits    uint64
	misses  uint64
}

type urlEntry struct {
	url       string
	expiresAt time.Time
}

// NewURLCache creates a cache with the given local TTL. A nil now uses the
// wall clock.
func NewURLCache(ttl time.Duration, now func() time.Time) *URLCache {
	if now == nil {
		now = time.Now
	}
	return &URLCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]urlEntry),
	}
}

// Get returns the cached URL for mediaID if it is still fresh.
func (c *URLCache) Get(mediaID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[mediaID]
	if !ok || c.now().After(e.expiresAt) {
		if ok {
			delete(c.entries, mediaID)
		}
		c.misses++
		return "", false
	}
	c.hits++
	return e.url, true
}

// Put stores a URL, replacing any previous entry for the same item.
func (c *URLCache) Put(mediaID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[mediaID] = urlEntry{url: url, expiresAt: c.now().Add(c.ttl)}
}

// Evict drops the entry for mediaID if present.
func (c *URLCache) Evict(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, mediaID)
}

// Clear drops every entry.
func (c *URLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]urlEntry)
}

// Len reports the number of entries, counting expired ones not yet swept.
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cumulative hit and miss counts.
func (c *URLCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
