package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/queue/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateConfig(ctx context.Context, db *gorm.DB, cfg *domain.QueueConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO queue_configs (id, event_type, event_id, max_capacity, batch_size,
		 interval_seconds, entry_ttl_seconds, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.EventType,
		cfg.EventID,
		cfg.MaxCapacity,
		cfg.BatchSize,
		cfg.IntervalSeconds,
		cfg.EntryTTLSeconds,
		cfg.Active,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, eventType, eventID string) (*domain.QueueConfig, error) {
	var cfg domain.QueueConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, max_capacity, batch_size,
		 interval_seconds, entry_ttl_seconds, active, created_at, updated_at
		 FROM queue_configs WHERE event_type = ? AND event_id = ? LIMIT 1`,
		eventType,
		eventID,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) UpdateConfig(ctx context.Context, db *gorm.DB, cfg *domain.QueueConfig) error {
	return db.WithContext(ctx).Exec(
		`UPDATE queue_configs
		 SET max_capacity = ?, batch_size = ?, interval_seconds = ?, entry_ttl_seconds = ?,
		     active = ?, updated_at = ?
		 WHERE id = ?`,
		cfg.MaxCapacity,
		cfg.BatchSize,
		cfg.IntervalSeconds,
		cfg.EntryTTLSeconds,
		cfg.Active,
		cfg.UpdatedAt,
		cfg.ID,
	).Error
}

func (r *repo) ListActiveConfigs(ctx context.Context, db *gorm.DB) ([]domain.QueueConfig, error) {
	var items []domain.QueueConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, max_capacity, batch_size,
		 interval_seconds, entry_ttl_seconds, active, created_at, updated_at
		 FROM queue_configs WHERE active = ? ORDER BY created_at ASC`,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreateEntry(ctx context.Context, db *gorm.DB, entry *domain.QueueEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO queue_entries (id, event_type, event_id, token, requester_id, status,
		 joined_at, entered_at, expired_at, left_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EventType,
		entry.EventID,
		entry.Token,
		entry.RequesterID,
		entry.Status,
		entry.JoinedAt,
		entry.EnteredAt,
		entry.ExpiredAt,
		entry.LeftAt,
	).Error
}

func (r *repo) FindEntryByToken(ctx context.Context, db *gorm.DB, token string) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, token, requester_id, status,
		 joined_at, entered_at, expired_at, left_at
		 FROM queue_entries WHERE token = ? LIMIT 1`,
		token,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) FindEntriesByTokens(ctx context.Context, db *gorm.DB, tokens []string) ([]domain.QueueEntry, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var items []domain.QueueEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, token, requester_id, status,
		 joined_at, entered_at, expired_at, left_at
		 FROM queue_entries WHERE token IN ?`,
		tokens,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindOpenEntryByRequester(ctx context.Context, db *gorm.DB, eventType, eventID, requesterID string) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, event_id, token, requester_id, status,
		 joined_at, entered_at, expired_at, left_at
		 FROM queue_entries
		 WHERE event_type = ? AND event_id = ? AND requester_id = ? AND status IN (?, ?)
		 ORDER BY joined_at DESC LIMIT 1`,
		eventType,
		eventID,
		requesterID,
		domain.StatusWaiting,
		domain.StatusEntered,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) UpdateEntry(ctx context.Context, db *gorm.DB, entry *domain.QueueEntry) error {
	return db.WithContext(ctx).Exec(
		`UPDATE queue_entries
		 SET status = ?, entered_at = ?, expired_at = ?, left_at = ?
		 WHERE id = ?`,
		entry.Status,
		entry.EnteredAt,
		entry.ExpiredAt,
		entry.LeftAt,
		entry.ID,
	).Error
}

func (r *repo) CountWaitingJoinedBefore(ctx context.Context, db *gorm.DB, eventType, eventID string, joinedAt time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM queue_entries
		 WHERE event_type = ? AND event_id = ? AND status = ? AND joined_at < ?`,
		eventType,
		eventID,
		domain.StatusWaiting,
		joinedAt,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountWaiting(ctx context.Context, db *gorm.DB, eventType, eventID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM queue_entries
		 WHERE event_type = ? AND event_id = ? AND status = ?`,
		eventType,
		eventID,
		domain.StatusWaiting,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ExpireWaitingJoinedBefore(ctx context.Context, db *gorm.DB, eventType, eventID string, cutoff, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE queue_entries
		 SET status = ?, expired_at = ?
		 WHERE event_type = ? AND event_id = ? AND status = ? AND joined_at <= ?`,
		domain.StatusExpired,
		now,
		eventType,
		eventID,
		domain.StatusWaiting,
		cutoff,
	)
	return res.RowsAffected, res.Error
}
