package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/clock"
	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	"github.com/smallbiznis/flashsale/internal/lock"
	"github.com/smallbiznis/flashsale/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

// lifecycleLockKey serializes ticks across replicas. One holder per tick;
// the others skip.
const lifecycleLockKey = "flashsale:scheduler:lifecycle"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Locker      lock.Locker
	CouponSvc   coupondomain.Service
	TimeDealSvc timedealdomain.Service
	QueueSvc    queuedomain.Service
	Config      Config `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	locker      lock.Locker
	couponSvc   coupondomain.Service
	timeDealSvc timedealdomain.Service
	queueSvc    queuedomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Locker == nil || p.CouponSvc == nil || p.TimeDealSvc == nil || p.QueueSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		locker:      p.Locker,
		couponSvc:   p.CouponSvc,
		timeDealSvc: p.TimeDealSvc,
		queueSvc:    p.QueueSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	m := metrics.Engine()
	m.IncJobRun(name)

	err := fn(ctx)
	m.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	m.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes a single tick: deal activation and ending, coupon
// expiry, then queue admissions. A distributed lock keeps ticks from
// overlapping across replicas.
func (s *Scheduler) RunOnce(parent context.Context) error {
	token, ok, err := s.locker.TryAcquire(parent, lifecycleLockKey, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		metrics.Engine().IncTickSkipped()
		s.log.Debug("tick held by another replica, skipping")
		return nil
	}
	defer func() {
		if err := s.locker.Release(parent, lifecycleLockKey, token); err != nil {
			s.log.Warn("release tick lock failed", zap.Error(err))
		}
	}()

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"activate_deals", func(ctx context.Context) error {
			_, err := s.timeDealSvc.ActivateDue(ctx)
			return err
		}},
		{"end_deals", func(ctx context.Context) error {
			_, err := s.timeDealSvc.EndDue(ctx)
			return err
		}},
		{"expire_coupons", func(ctx context.Context) error {
			_, err := s.couponSvc.ExpireDue(ctx)
			return err
		}},
		{"release_queues", s.releaseQueuesJob},
	}

	var errs error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		errs = errors.Join(errs, s.runJob(parent, job.Name, job.Run))
	}
	return errs
}

// releaseQueuesJob admits the next batch for every active queue and expires
// entries that outlived their TTL.
func (s *Scheduler) releaseQueuesJob(ctx context.Context) error {
	queues, err := s.queueSvc.ActiveQueues(ctx)
	if err != nil {
		return err
	}

	var errs error
	for _, q := range queues {
		if ctx.Err() != nil {
			return errors.Join(errs, ctx.Err())
		}
		if _, err := s.queueSvc.ReleaseBatch(ctx, q.EventType, q.EventID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("release %s:%s: %w", q.EventType, q.EventID, err))
		}
		if _, err := s.queueSvc.ExpireOverdue(ctx, q.EventType, q.EventID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("expire %s:%s: %w", q.EventType, q.EventID, err))
		}
	}
	return errs
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RecoverLedgers reseeds the issuance counters from the durable rows. Run
// at startup so a cold cache never admits more than remaining stock.
func (s *Scheduler) RecoverLedgers(ctx context.Context) error {
	var errs error
	if err := s.couponSvc.ReseedLedger(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("coupon ledger: %w", err))
	}
	if err := s.timeDealSvc.ReseedLedger(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("timedeal ledger: %w", err))
	}
	if errs != nil {
		return errs
	}
	s.log.Info("issuance ledgers reseeded")
	return nil
}
