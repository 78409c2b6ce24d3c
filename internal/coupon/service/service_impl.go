package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/clock"
	"github.com/smallbiznis/flashsale/internal/coupon/domain"
	"github.com/smallbiznis/flashsale/internal/issuance"
	"github.com/smallbiznis/flashsale/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	"github.com/smallbiznis/flashsale/pkg/db"
)

// resourceKind namespaces coupon entries in the shared ledger.
const resourceKind = "coupon"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Store    issuance.Store
	QueueSvc queuedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	store    issuance.Store
	queueSvc queuedomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("coupon.service"),
		repo:     p.Repo,
		store:    p.Store,
		queueSvc: p.QueueSvc,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Coupon, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("coupon: code is required")
	}
	if req.TotalQuantity <= 0 {
		return nil, fmt.Errorf("coupon: total quantity must be positive")
	}
	if !req.ExpiresAt.After(req.StartsAt) {
		return nil, domain.ErrInvalidWindow
	}

	maxPerUser := req.MaxPerUser
	if maxPerUser <= 0 {
		maxPerUser = 1
	}

	existing, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrCouponCodeTaken
	}

	now := s.clock.Now()
	coupon := &domain.Coupon{
		ID:                s.genID.Generate().Int64(),
		Code:              code,
		Name:              strings.TrimSpace(req.Name),
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		TotalQuantity:     req.TotalQuantity,
		IssuedQuantity:    0,
		MaxPerUser:        maxPerUser,
		Status:            domain.CouponActive,
		QueueRequired:     req.QueueRequired,
		StartsAt:          req.StartsAt,
		ExpiresAt:         req.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, s.db, coupon); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCouponCodeTaken
		}
		return nil, err
	}

	if err := s.store.InitializeStock(ctx, resourceKind, resourceID(coupon.ID), coupon.TotalQuantity); err != nil {
		return nil, fmt.Errorf("coupon: seed ledger: %w", err)
	}

	s.log.Info("coupon created",
		zap.Int64("coupon_id", coupon.ID),
		zap.String("code", coupon.Code),
		zap.Int64("total_quantity", coupon.TotalQuantity),
	)
	return coupon, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}
	return coupon, nil
}

func (s *Service) ListAvailable(ctx context.Context) ([]domain.Coupon, error) {
	return s.repo.ListAvailable(ctx, s.db, s.clock.Now())
}

func (s *Service) Issue(ctx context.Context, couponID int64, userID string) (*domain.IssueResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("coupon: user id is required")
	}

	coupon, err := s.repo.FindByID(ctx, s.db, couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}

	now := s.clock.Now()
	if coupon.Status != domain.CouponActive {
		return nil, domain.ErrCouponNotActive
	}
	if now.Before(coupon.StartsAt) {
		return nil, domain.ErrCouponNotStarted
	}
	if !now.Before(coupon.ExpiresAt) {
		return nil, domain.ErrCouponExpired
	}

	if coupon.QueueRequired {
		admitted, err := s.queueSvc.ValidateAdmission(ctx, resourceKind, resourceID(couponID), userID)
		if err != nil {
			return nil, err
		}
		if !admitted {
			return nil, domain.ErrAdmissionRequired
		}
	}

	result, err := s.store.Issue(ctx, resourceKind, resourceID(couponID), userID, 1, coupon.MaxPerUser)
	if err != nil {
		// Fail closed: the ledger's answer is unknown, so no claim.
		return nil, fmt.Errorf("coupon: ledger unavailable: %w", err)
	}
	metrics.Engine().IncIssuanceResult(resourceKind, result.String())

	switch result {
	case issuance.Exhausted:
		s.markExhausted(ctx, coupon, now)
		return &domain.IssueResponse{Result: result, ResultText: result.String()}, nil
	case issuance.AlreadyClaimed:
		return &domain.IssueResponse{Result: result, ResultText: result.String()}, nil
	}

	uc := &domain.UserCoupon{
		ID:       s.genID.Generate().Int64(),
		CouponID: couponID,
		UserID:   userID,
		Status:   domain.UserCouponAvailable,
		IssuedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateUserCoupon(ctx, tx, uc); err != nil {
			return err
		}
		return s.repo.IncrementIssued(ctx, tx, couponID, now)
	})
	if err != nil {
		// The ledger committed a unit we could not record; hand it back.
		if rbErr := s.store.Rollback(ctx, resourceKind, resourceID(couponID), userID, 1); rbErr != nil {
			metrics.Engine().IncRollbackFailure()
			s.log.Error("coupon ledger rollback failed, unit lost until reconciled",
				zap.Int64("coupon_id", couponID),
				zap.String("user_id", userID),
				zap.Error(rbErr),
			)
		} else {
			// A concurrent caller may have seen the coupon empty and marked
			// it exhausted before this unit came back.
			s.reactivate(ctx, couponID, now)
		}
		return nil, fmt.Errorf("coupon: persist claim: %w", err)
	}

	return &domain.IssueResponse{Result: issuance.Issued, ResultText: issuance.Issued.String(), UserCoupon: uc}, nil
}

func (s *Service) UserCoupons(ctx context.Context, userID string) ([]domain.UserCoupon, error) {
	return s.repo.ListUserCoupons(ctx, s.db, userID)
}

func (s *Service) Use(ctx context.Context, couponID int64, userID, orderID string) error {
	uc, err := s.repo.FindUserCoupon(ctx, s.db, couponID, userID)
	if err != nil {
		return err
	}
	if uc == nil {
		return domain.ErrUserCouponNotFound
	}
	if uc.Status != domain.UserCouponAvailable {
		return domain.ErrUserCouponNotAvailable
	}

	now := s.clock.Now()
	uc.Status = domain.UserCouponUsed
	uc.UsedAt = &now
	uc.OrderID = orderID
	return s.repo.UpdateUserCoupon(ctx, s.db, uc)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	coupon, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if coupon == nil {
		return domain.ErrCouponNotFound
	}
	if !coupon.Status.CanTransition(domain.CouponInactive) {
		return domain.ErrInvalidTransition
	}

	coupon.Status = domain.CouponInactive
	coupon.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, coupon); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, resourceKind, resourceID(id)); err != nil {
		return fmt.Errorf("coupon: clear ledger: %w", err)
	}

	s.log.Info("coupon deactivated", zap.Int64("coupon_id", id))
	return nil
}

func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindDueToExpire(ctx, s.db, now, 100)
	if err != nil {
		return 0, err
	}

	var errs error
	expired := 0
	for i := range due {
		coupon := &due[i]
		if !coupon.Status.CanTransition(domain.CouponExpired) {
			continue
		}
		coupon.Status = domain.CouponExpired
		coupon.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, s.db, coupon); err != nil {
			errs = errors.Join(errs, fmt.Errorf("coupon %d: %w", coupon.ID, err))
			continue
		}
		if err := s.store.Clear(ctx, resourceKind, resourceID(coupon.ID)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("coupon %d: clear ledger: %w", coupon.ID, err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Info("coupons expired", zap.Int("count", expired))
	}
	return expired, errs
}

func (s *Service) ReseedLedger(ctx context.Context) error {
	coupons, err := s.repo.ListByStatuses(ctx, s.db, []domain.CouponStatus{domain.CouponActive, domain.CouponExhausted})
	if err != nil {
		return err
	}

	var errs error
	for i := range coupons {
		coupon := &coupons[i]
		remaining := coupon.TotalQuantity - coupon.IssuedQuantity
		if remaining < 0 {
			remaining = 0
		}
		if err := s.store.InitializeStock(ctx, resourceKind, resourceID(coupon.ID), remaining); err != nil {
			errs = errors.Join(errs, fmt.Errorf("coupon %d: %w", coupon.ID, err))
			continue
		}
		// An exhausted coupon whose durable rows still show stock was
		// stranded by a rolled-back claim; put it back in circulation.
		if remaining > 0 && coupon.Status.CanTransition(domain.CouponActive) {
			coupon.Status = domain.CouponActive
			coupon.UpdatedAt = s.clock.Now()
			if err := s.repo.UpdateStatus(ctx, s.db, coupon); err != nil {
				errs = errors.Join(errs, fmt.Errorf("coupon %d: reactivate: %w", coupon.ID, err))
			}
		}
	}
	if errs == nil && len(coupons) > 0 {
		s.log.Info("coupon ledger reseeded", zap.Int("count", len(coupons)))
	}
	return errs
}

// markExhausted records the sold-out state. Best effort; the ledger already
// denies further claims either way.
func (s *Service) markExhausted(ctx context.Context, coupon *domain.Coupon, now time.Time) {
	if !coupon.Status.CanTransition(domain.CouponExhausted) {
		return
	}
	coupon.Status = domain.CouponExhausted
	coupon.UpdatedAt = now
	if err := s.repo.UpdateStatus(ctx, s.db, coupon); err != nil {
		s.log.Warn("failed to mark coupon exhausted",
			zap.Int64("coupon_id", coupon.ID),
			zap.Error(err),
		)
	}
}

// reactivate reverses an exhausted mark after a rollback restored a unit.
// Best effort, like markExhausted; skipped when the ledger shows no stock.
func (s *Service) reactivate(ctx context.Context, couponID int64, now time.Time) {
	remaining, err := s.store.Remaining(ctx, resourceKind, resourceID(couponID))
	if err != nil || remaining <= 0 {
		return
	}
	coupon, err := s.repo.FindByID(ctx, s.db, couponID)
	if err != nil || coupon == nil {
		return
	}
	if !coupon.Status.CanTransition(domain.CouponActive) {
		return
	}
	coupon.Status = domain.CouponActive
	coupon.UpdatedAt = now
	if err := s.repo.UpdateStatus(ctx, s.db, coupon); err != nil {
		s.log.Warn("failed to reactivate coupon after rollback",
			zap.Int64("coupon_id", couponID),
			zap.Error(err),
		)
	}
}

func resourceID(id int64) string {
	return strconv.FormatInt(id, 10)
}
