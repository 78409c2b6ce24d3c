package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	CreateConfig(ctx context.Context, db *gorm.DB, cfg *QueueConfig) error
	FindConfig(ctx context.Context, db *gorm.DB, eventType, eventID string) (*QueueConfig, error)
	UpdateConfig(ctx context.Context, db *gorm.DB, cfg *QueueConfig) error
	ListActiveConfigs(ctx context.Context, db *gorm.DB) ([]QueueConfig, error)

	CreateEntry(ctx context.Context, db *gorm.DB, entry *QueueEntry) error
	FindEntryByToken(ctx context.Context, db *gorm.DB, token string) (*QueueEntry, error)
	FindEntriesByTokens(ctx context.Context, db *gorm.DB, tokens []string) ([]QueueEntry, error)

	// FindOpenEntryByRequester returns the requester's WAITING or ENTERED
	// entry for the event, if any.
	FindOpenEntryByRequester(ctx context.Context, db *gorm.DB, eventType, eventID, requesterID string) (*QueueEntry, error)

	UpdateEntry(ctx context.Context, db *gorm.DB, entry *QueueEntry) error

	// CountWaitingJoinedBefore is the durable fallback for position
	// computation when the waiting line is unavailable.
	CountWaitingJoinedBefore(ctx context.Context, db *gorm.DB, eventType, eventID string, joinedAt time.Time) (int64, error)
	CountWaiting(ctx context.Context, db *gorm.DB, eventType, eventID string) (int64, error)

	// ExpireWaitingJoinedBefore transitions WAITING entries joined at or
	// before cutoff to EXPIRED in one statement; returns rows affected.
	ExpireWaitingJoinedBefore(ctx context.Context, db *gorm.DB, eventType, eventID string, cutoff, now time.Time) (int64, error)
}
