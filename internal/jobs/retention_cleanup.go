package jobs

import (
	"context"
	"log"
	"time"
)

// NotificationPurger deletes read notifications past a retention window
type NotificationPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionCleanupJob deletes read notifications older than the retention window
type RetentionCleanupJob struct {
	notifications NotificationPurger
	retention     time.Duration
}

// NewRetentionCleanupJob creates a new retention cleanup job
func NewRetentionCleanupJob(notifications NotificationPurger, retention time.Duration) *RetentionCleanupJob {
	return &RetentionCleanupJob{notifications: notifications, retention: retention}
}

// Run purges expired read notifications
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		log.Println("[RETENTION] Notification retention disabled")
		return nil
	}

	startTime := time.Now()
	deleted, err := j.notifications.PurgeRead(ctx, j.retention)
	if err != nil {
		return err
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d read notifications older than %v in %v",
		deleted, j.retention, time.Since(startTime))
	return nil
}

// TokenCleaner clears expired verification and reset tokens
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// TokenCleanupJob clears single-use account tokens past their expiry
type TokenCleanupJob struct {
	tokens TokenCleaner
}

// NewTokenCleanupJob creates a new expired token cleanup job
func NewTokenCleanupJob(tokens TokenCleaner) *TokenCleanupJob {
	return &TokenCleanupJob{tokens: tokens}
}

// Run clears expired tokens
func (j *TokenCleanupJob) Run(ctx context.Context) error {
	cleared, err := j.tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	if cleared > 0 {
		log.Printf("[TOKENS] Cleared expired tokens on %d accounts", cleared)
	}
	return nil
}
