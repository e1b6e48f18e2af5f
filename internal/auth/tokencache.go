// Package auth implements bearer-token minting and the in-memory token
// registry that backs authentication for the vault HTTP surface.
package auth

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tokenEntry is the value stored per bearer token in the TokenCache.
type tokenEntry struct {
	username    string
	refreshedAt time.Time
}

// TokenCache is a bounded, LRU-evicted registry mapping bearer tokens to
// usernames. Entries carry an absolute time-to-live measured from
// insertion: GetUsername does not extend an entry's life on access, it only
// promotes the entry's LRU recency so that active tokens survive capacity
// pressure while their expiry clock keeps running unmodified.
//
// All access is a write from the LRU's point of view (even a lookup touches
// the list to move the entry to the front), so every method serializes
// through a single mutex.
type TokenCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *tokenEntry]
	ttl   time.Duration
}

// NewTokenCache builds a TokenCache with the given capacity and TTL. Both
// must be positive.
func NewTokenCache(capacity int, ttl time.Duration) (*TokenCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("token cache capacity must be positive, got %d", capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token cache ttl must be positive, got %s", ttl)
	}

	c, err := lru.New[string, *tokenEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	return &TokenCache{cache: c, ttl: ttl}, nil
}

// Insert records token as authenticating username, starting its TTL clock
// now. If the cache is already at capacity the least-recently-used entry is
// evicted to make room.
func (c *TokenCache) Insert(token, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(token, &tokenEntry{username: username, refreshedAt: time.Now()})
}

// GetUsername returns the username bound to token and true, provided the
// entry exists and has not exceeded its TTL. A hit promotes the entry to
// most-recently-used, but its refreshedAt instant is left untouched — TTL
// is absolute from Insert, never sliding.
func (c *TokenCache) GetUsername(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.cache.Get(token)
	if !found {
		return "", false
	}

	if time.Since(entry.refreshedAt) >= c.ttl {
		return "", false
	}

	return entry.username, true
}

// Len reports the current number of entries, expired or not.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}
