package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/clock"
	"github.com/smallbiznis/flashsale/internal/config"
	"github.com/smallbiznis/flashsale/internal/observability/metrics"
	"github.com/smallbiznis/flashsale/internal/queue/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
	Line  Line
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	line     Line
	genID    *snowflake.Node
	clock    clock.Clock
	defaults config.QueueConfig
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("queue.service"),
		repo:     p.Repo,
		line:     p.Line,
		genID:    p.GenID,
		clock:    p.Clock,
		defaults: p.Cfg.Queue,
	}
}

func (s *Service) Configure(ctx context.Context, req domain.ConfigureRequest) (*domain.QueueConfig, error) {
	if req.EventType == "" || req.EventID == "" {
		return nil, fmt.Errorf("queue: event type and id are required")
	}

	maxCapacity := req.MaxCapacity
	if maxCapacity <= 0 {
		maxCapacity = s.defaults.DefaultMaxCapacity
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.defaults.DefaultBatchSize
	}
	intervalSeconds := req.IntervalSeconds
	if intervalSeconds <= 0 {
		intervalSeconds = int64(s.defaults.DefaultInterval / time.Second)
	}
	entryTTLSeconds := req.EntryTTLSeconds
	if entryTTLSeconds <= 0 {
		entryTTLSeconds = int64(s.defaults.EntryTTL / time.Second)
	}

	now := s.clock.Now()
	existing, err := s.repo.FindConfig(ctx, s.db, req.EventType, req.EventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Active {
			return nil, domain.ErrQueueActive
		}
		existing.MaxCapacity = maxCapacity
		existing.BatchSize = batchSize
		existing.IntervalSeconds = intervalSeconds
		existing.EntryTTLSeconds = entryTTLSeconds
		existing.Active = true
		existing.UpdatedAt = now
		if err := s.repo.UpdateConfig(ctx, s.db, existing); err != nil {
			return nil, err
		}
		// Reactivation starts from an empty line.
		if err := s.line.Clear(ctx, req.EventType, req.EventID); err != nil {
			return nil, err
		}
		s.log.Info("queue reactivated",
			zap.String("event_type", req.EventType),
			zap.String("event_id", req.EventID),
		)
		return existing, nil
	}

	cfg := &domain.QueueConfig{
		ID:              s.genID.Generate().Int64(),
		EventType:       req.EventType,
		EventID:         req.EventID,
		MaxCapacity:     maxCapacity,
		BatchSize:       batchSize,
		IntervalSeconds: intervalSeconds,
		EntryTTLSeconds: entryTTLSeconds,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateConfig(ctx, s.db, cfg); err != nil {
		return nil, err
	}

	s.log.Info("queue configured",
		zap.String("event_type", req.EventType),
		zap.String("event_id", req.EventID),
		zap.Int("max_capacity", maxCapacity),
		zap.Int("batch_size", batchSize),
	)
	return cfg, nil
}

func (s *Service) Deactivate(ctx context.Context, eventType, eventID string) error {
	cfg, err := s.repo.FindConfig(ctx, s.db, eventType, eventID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return domain.ErrQueueNotFound
	}
	if !cfg.Active {
		return nil
	}

	now := s.clock.Now()
	cfg.Active = false
	cfg.UpdatedAt = now
	if err := s.repo.UpdateConfig(ctx, s.db, cfg); err != nil {
		return err
	}

	expired, err := s.repo.ExpireWaitingJoinedBefore(ctx, s.db, eventType, eventID, now, now)
	if err != nil {
		return err
	}
	if err := s.line.Clear(ctx, eventType, eventID); err != nil {
		return err
	}

	s.log.Info("queue deactivated",
		zap.String("event_type", eventType),
		zap.String("event_id", eventID),
		zap.Int64("expired_entries", expired),
	)
	return nil
}

func (s *Service) ActiveQueues(ctx context.Context) ([]domain.QueueConfig, error) {
	return s.repo.ListActiveConfigs(ctx, s.db)
}

func (s *Service) Enter(ctx context.Context, eventType, eventID, requesterID string) (*domain.EntryStatusResponse, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("queue: requester id is required")
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, eventType, eventID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Active {
		return nil, domain.ErrQueueNotFound
	}

	// Re-entering returns the existing open entry rather than a second
	// place in line.
	existing, err := s.repo.FindOpenEntryByRequester(ctx, s.db, eventType, eventID, requesterID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.statusOf(ctx, cfg, existing)
	}

	now := s.clock.Now()
	entry := &domain.QueueEntry{
		ID:          s.genID.Generate().Int64(),
		EventType:   eventType,
		EventID:     eventID,
		Token:       uuid.NewString(),
		RequesterID: requesterID,
		Status:      domain.StatusWaiting,
		JoinedAt:    now,
	}
	if err := s.repo.CreateEntry(ctx, s.db, entry); err != nil {
		return nil, err
	}
	if err := s.line.AddWaiting(ctx, eventType, eventID, entry.Token, now); err != nil {
		// A row without a line position would wait forever: release passes
		// only pop from the line. Close it so the requester can rejoin.
		entry.Status = domain.StatusLeft
		entry.LeftAt = &now
		if uerr := s.repo.UpdateEntry(ctx, s.db, entry); uerr != nil {
			s.log.Warn("failed to close unlisted queue entry",
				zap.String("token", entry.Token),
				zap.Error(uerr),
			)
		}
		return nil, err
	}

	metrics.Engine().IncQueueJoin(eventType)
	return s.statusOf(ctx, cfg, entry)
}

func (s *Service) Status(ctx context.Context, token string) (*domain.EntryStatusResponse, error) {
	entry, err := s.repo.FindEntryByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrEntryNotFound
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, entry.EventType, entry.EventID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrQueueNotFound
	}
	return s.statusOf(ctx, cfg, entry)
}

func (s *Service) Leave(ctx context.Context, token string) error {
	entry, err := s.repo.FindEntryByToken(ctx, s.db, token)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.ErrEntryNotFound
	}
	if entry.Status != domain.StatusWaiting {
		return nil
	}

	now := s.clock.Now()
	entry.Status = domain.StatusLeft
	entry.LeftAt = &now
	if err := s.repo.UpdateEntry(ctx, s.db, entry); err != nil {
		return err
	}
	return s.line.RemoveWaiting(ctx, entry.EventType, entry.EventID, token)
}

func (s *Service) ReleaseBatch(ctx context.Context, eventType, eventID string) (int, error) {
	cfg, err := s.repo.FindConfig(ctx, s.db, eventType, eventID)
	if err != nil {
		return 0, err
	}
	if cfg == nil || !cfg.Active {
		return 0, domain.ErrQueueNotFound
	}

	entered, err := s.line.EnteredCount(ctx, eventType, eventID)
	if err != nil {
		return 0, err
	}
	free := int64(cfg.MaxCapacity) - entered
	n := int64(cfg.BatchSize)
	if free < n {
		n = free
	}
	if n <= 0 {
		return 0, nil
	}

	tokens, err := s.line.PopOldestWaiting(ctx, eventType, eventID, n)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	entries, err := s.repo.FindEntriesByTokens(ctx, s.db, tokens)
	if err != nil {
		return 0, err
	}
	byToken := make(map[string]*domain.QueueEntry, len(entries))
	for i := range entries {
		byToken[entries[i].Token] = &entries[i]
	}

	now := s.clock.Now()
	released := 0
	for _, token := range tokens {
		entry, ok := byToken[token]
		if !ok || entry.Status != domain.StatusWaiting {
			// left or expired while in line; skip without consuming capacity
			continue
		}
		entry.Status = domain.StatusEntered
		entry.EnteredAt = &now
		if err := s.repo.UpdateEntry(ctx, s.db, entry); err != nil {
			return released, err
		}
		if err := s.line.AddEntered(ctx, eventType, eventID, token, now); err != nil {
			return released, err
		}
		released++
	}

	if released > 0 {
		metrics.Engine().AddQueueAdmissions(eventType, released)
		s.log.Debug("queue batch released",
			zap.String("event_type", eventType),
			zap.String("event_id", eventID),
			zap.Int("released", released),
		)
	}
	return released, nil
}

func (s *Service) ExpireOverdue(ctx context.Context, eventType, eventID string) (int, error) {
	cfg, err := s.repo.FindConfig(ctx, s.db, eventType, eventID)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		return 0, domain.ErrQueueNotFound
	}

	now := s.clock.Now()
	cutoff := now.Add(-cfg.EntryTTL())

	expired, err := s.repo.ExpireWaitingJoinedBefore(ctx, s.db, eventType, eventID, cutoff, now)
	if err != nil {
		return 0, err
	}
	// Expired rows are removed lazily from the waiting line by the release
	// pass (their status check fails); admissions older than the TTL stop
	// counting against capacity here.
	if _, err := s.line.PruneEntered(ctx, eventType, eventID, cutoff); err != nil {
		return int(expired), err
	}
	return int(expired), nil
}

func (s *Service) ValidateAdmission(ctx context.Context, eventType, eventID, requesterID string) (bool, error) {
	cfg, err := s.repo.FindConfig(ctx, s.db, eventType, eventID)
	if err != nil {
		return false, err
	}
	if cfg == nil || !cfg.Active {
		// No active queue means the gate is open.
		return true, nil
	}

	entry, err := s.repo.FindOpenEntryByRequester(ctx, s.db, eventType, eventID, requesterID)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Status == domain.StatusEntered, nil
}

// statusOf computes a fresh position for waiting entries. The line is
// preferred; the durable rows are the fallback when the line has no record
// of the token.
func (s *Service) statusOf(ctx context.Context, cfg *domain.QueueConfig, entry *domain.QueueEntry) (*domain.EntryStatusResponse, error) {
	resp := &domain.EntryStatusResponse{
		Token:     entry.Token,
		EventType: entry.EventType,
		EventID:   entry.EventID,
		Status:    entry.Status,
	}
	if entry.Status != domain.StatusWaiting {
		return resp, nil
	}

	totalWaiting, err := s.line.WaitingCount(ctx, entry.EventType, entry.EventID)
	if err != nil {
		return nil, err
	}

	var position int64
	rank, ok, err := s.line.WaitingRank(ctx, entry.EventType, entry.EventID, entry.Token)
	if err != nil {
		return nil, err
	}
	if ok {
		position = rank + 1
	} else {
		ahead, err := s.repo.CountWaitingJoinedBefore(ctx, s.db, entry.EventType, entry.EventID, entry.JoinedAt)
		if err != nil {
			return nil, err
		}
		position = ahead + 1
		totalWaiting, err = s.repo.CountWaiting(ctx, s.db, entry.EventType, entry.EventID)
		if err != nil {
			return nil, err
		}
	}

	batch := int64(cfg.BatchSize)
	if batch <= 0 {
		batch = 1
	}
	ticks := (position + batch - 1) / batch
	resp.Position = position
	resp.EstimatedWaitSeconds = ticks * cfg.IntervalSeconds
	resp.TotalWaiting = totalWaiting
	return resp, nil
}
