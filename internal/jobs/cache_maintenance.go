package jobs

import (
	"context"
	"log"
	"time"

	"studyyatra/internal/services"
)

// CacheMaintenanceJob periodically evicts expired match cache entries so the
// cache does not sit at capacity with dead data between requests
type CacheMaintenanceJob struct {
	matchingService *services.MatchingService
	interval        time.Duration
}

// NewCacheMaintenanceJob creates a new cache maintenance job
func NewCacheMaintenanceJob(matchingService *services.MatchingService, interval time.Duration) *CacheMaintenanceJob {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &CacheMaintenanceJob{
		matchingService: matchingService,
		interval:        interval,
	}
}

// Run prunes expired entries and logs occupancy
func (j *CacheMaintenanceJob) Run(ctx context.Context) error {
	removed := j.matchingService.PruneCache()
	stats := j.matchingService.GetCacheStats()

	log.Printf("🧹 [CACHE] Pruned %d expired match entries (%d/%d in cache)",
		removed, stats.Size, stats.MaxSize)
	return nil
}

// GetNextRunTime returns the next scheduled run
func (j *CacheMaintenanceJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
