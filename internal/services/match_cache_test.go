package services

import (
	"fmt"
	"testing"
	"time"

	"studyyatra/internal/models"
)

// fakeClock is a manually advanced clock for cache expiry tests
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func testResult(key string) *models.MatchResult {
	return &models.MatchResult{
		Matches:    []models.UniversityMatch{{Rank: 1, University: key}},
		Insights:   []string{},
		Disclaimer: "test",
	}
}

func TestMatchCacheGetSet(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newMatchCache(10, 7*24*time.Hour, clock.now)

	if _, ok := cache.get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	cache.set("a", testResult("a"))
	got, ok := cache.get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Matches[0].University != "a" {
		t.Errorf("got wrong result: %+v", got.Matches[0])
	}
}

func TestMatchCacheTTLExpiry(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newMatchCache(10, 7*24*time.Hour, clock.now)

	cache.set("a", testResult("a"))

	clock.advance(7*24*time.Hour - time.Second)
	if _, ok := cache.get("a"); !ok {
		t.Error("entry expired before TTL")
	}

	clock.advance(2 * time.Second)
	if _, ok := cache.get("a"); ok {
		t.Error("entry survived past TTL")
	}

	// Expired entry was removed on access
	if s := cache.stats(); s.Size != 0 {
		t.Errorf("size = %d after expiry, want 0", s.Size)
	}
}

func TestMatchCacheEvictsOldestTenPercent(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newMatchCache(20, 7*24*time.Hour, clock.now)

	// Fill to capacity with strictly increasing timestamps
	for i := 0; i < 20; i++ {
		cache.set(fmt.Sprintf("key-%d", i), testResult(fmt.Sprintf("key-%d", i)))
		clock.advance(time.Minute)
	}
	if s := cache.stats(); s.Size != 20 {
		t.Fatalf("size = %d, want 20", s.Size)
	}

	// One more insert evicts ceil(20 * 0.1) = 2 oldest entries
	cache.set("key-new", testResult("key-new"))

	if s := cache.stats(); s.Size != 19 {
		t.Errorf("size = %d after eviction, want 19", s.Size)
	}
	if _, ok := cache.get("key-0"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := cache.get("key-1"); ok {
		t.Error("second-oldest entry survived eviction")
	}
	if _, ok := cache.get("key-2"); !ok {
		t.Error("third-oldest entry was evicted")
	}
	if _, ok := cache.get("key-new"); !ok {
		t.Error("new entry missing after eviction")
	}
}

func TestMatchCacheOverwriteDoesNotEvict(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newMatchCache(2, 7*24*time.Hour, clock.now)

	cache.set("a", testResult("a"))
	cache.set("b", testResult("b"))

	// Overwriting an existing key at capacity must not evict anything
	cache.set("a", testResult("a2"))

	if _, ok := cache.get("a"); !ok {
		t.Error("overwritten key missing")
	}
	if _, ok := cache.get("b"); !ok {
		t.Error("unrelated key evicted on overwrite")
	}
}

func TestMatchCachePrune(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newMatchCache(10, time.Hour, clock.now)

	cache.set("old", testResult("old"))
	clock.advance(30 * time.Minute)
	cache.set("fresh", testResult("fresh"))
	clock.advance(31 * time.Minute)

	removed := cache.prune()
	if removed != 1 {
		t.Errorf("pruned %d entries, want 1", removed)
	}
	if _, ok := cache.get("fresh"); !ok {
		t.Error("fresh entry was pruned")
	}
}

func TestMatchCacheStats(t *testing.T) {
	cache := newMatchCache(10000, 7*24*time.Hour, nil)

	s := cache.stats()
	if s.Size != 0 || s.MaxSize != 10000 {
		t.Errorf("stats = %+v", s)
	}
	if s.TTLDays != 7 {
		t.Errorf("TTLDays = %v, want 7", s.TTLDays)
	}
}
