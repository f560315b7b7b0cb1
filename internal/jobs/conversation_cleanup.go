package jobs

import (
	"context"
	"log"
	"time"

	"studyyatra/internal/database"
)

// ConversationCleanupJob removes abandoned incomplete conversations. Completed
// conversations are kept; only sessions the student walked away from are
// deleted.
type ConversationCleanupJob struct {
	db       *database.DB
	maxAge   time.Duration
	interval time.Duration
}

// NewConversationCleanupJob creates a new conversation cleanup job
func NewConversationCleanupJob(db *database.DB, maxAge, interval time.Duration) *ConversationCleanupJob {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &ConversationCleanupJob{
		db:       db,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run deletes incomplete conversations older than the retention window
func (j *ConversationCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.maxAge)

	removed, err := j.db.DeleteStaleConversations(cutoff)
	if err != nil {
		return err
	}

	if removed > 0 {
		log.Printf("🧹 [CLEANUP] Removed %d abandoned conversations older than %v", removed, j.maxAge)
	}
	return nil
}

// GetNextRunTime returns the next scheduled run
func (j *ConversationCleanupJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
