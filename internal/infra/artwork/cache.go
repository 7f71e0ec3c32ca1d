package artwork

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Resolver finds a cover URL for a song.
type Resolver interface {
	Artwork(ctx context.Context, artist, title string) (string, error)
}

// Cache memoizes lookups, including misses, for a fixed TTL. Temporary
// failures are not cached.
type Cache struct {
	next       Resolver
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	url     string
	found   bool
	expires time.Time
}

// NewCache wraps a resolver. Once maxEntries is reached expired entries are
// dropped, then the whole cache if still full.
func NewCache(next Resolver, ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		next:       next,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

func cacheKey(artist, title string) string {
	return strings.ToLower(artist) + "\x00" + strings.ToLower(title)
}

// Artwork implements Resolver.
func (c *Cache) Artwork(ctx context.Context, artist, title string) (string, error) {
	key := cacheKey(artist, title)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		if !e.found {
			return "", ErrArtworkNotFound
		}
		return e.url, nil
	}
	c.mu.Unlock()

	u, err := c.next.Artwork(ctx, artist, title)
	switch {
	case err == nil:
		c.store(key, cacheEntry{url: u, found: true})
	case errors.Is(err, ErrArtworkNotFound):
		c.store(key, cacheEntry{})
	}
	return u, err
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) store(key string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		for k, old := range c.entries {
			if !now.Before(old.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxEntries {
			c.entries = make(map[string]cacheEntry)
		}
	}

	e.expires = now.Add(c.ttl)
	c.entries[key] = e
}
