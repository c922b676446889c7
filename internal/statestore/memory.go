package statestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/daimoniac/swaudit/internal/types"
)

// MemoryCache is a process-local MatchCache for one-shot runs and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]types.MatchCacheEntry
	puts    int
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]types.MatchCacheEntry)}
}

// GetMatch implements MatchCache.
func (c *MemoryCache) GetMatch(ctx context.Context, normalizedName string) (*types.MatchCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[normalizedName]
	if !ok {
		return nil, ErrCacheMiss
	}
	return clone(entry), nil
}

// PutMatch implements MatchCache.
func (c *MemoryCache) PutMatch(ctx context.Context, entry *types.MatchCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := *clone(*entry)
	if stored.LastUpdated.IsZero() {
		stored.LastUpdated = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.NormalizedName] = stored
	c.puts++
	return nil
}

// Puts returns how many writes the cache has accepted.
func (c *MemoryCache) Puts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.puts
}

// CountMatches implements MatchCache.
func (c *MemoryCache) CountMatches(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// ListMatches implements MatchCache.
func (c *MemoryCache) ListMatches(ctx context.Context, limit int) ([]*types.MatchCacheEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	c.mu.RLock()
	out := make([]*types.MatchCacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, clone(e))
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		return out[i].NormalizedName < out[j].NormalizedName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements MatchCache.
func (c *MemoryCache) Close() error {
	return nil
}

func clone(e types.MatchCacheEntry) *types.MatchCacheEntry {
	e.MatchedVendors = append([]string{}, e.MatchedVendors...)
	e.MatchedProducts = append([]string{}, e.MatchedProducts...)
	return &e
}
