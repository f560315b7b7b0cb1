package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"studyyatra/internal/models"
)

type matchCacheEntry struct {
	result    *models.MatchResult
	timestamp time.Time
}

// matchCache stores match results keyed by profile fingerprint. Entries
// expire after a fixed TTL; when the cap is reached the oldest 10% by
// timestamp are evicted. The clock is injected so TTL and eviction behavior
// are testable without waiting.
type matchCache struct {
	mu      sync.Mutex
	entries map[string]matchCacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func newMatchCache(maxSize int, ttl time.Duration, now func() time.Time) *matchCache {
	if now == nil {
		now = time.Now
	}
	return &matchCache{
		entries: make(map[string]matchCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
	}
}

// get returns the cached result for key if present and unexpired.
// Expired entries are removed on access.
func (c *matchCache) get(key string) (*models.MatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// set stores a result, evicting the oldest 10% of entries when at capacity
func (c *matchCache) set(key string, result *models.MatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = matchCacheEntry{result: result, timestamp: c.now()}
}

// evictOldestLocked removes the oldest ~10% of entries by timestamp.
// Caller must hold the lock.
func (c *matchCache) evictOldestLocked() {
	type keyed struct {
		key string
		ts  time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{k, e.timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	evictCount := int(math.Ceil(float64(len(all)) * 0.1))
	for _, entry := range all[:evictCount] {
		delete(c.entries, entry.key)
	}
}

// prune drops all expired entries and reports how many were removed
func (c *matchCache) prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *matchCache) stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return models.CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		TTLDays: c.ttl.Hours() / 24,
	}
}
