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
	"github.com/smallbiznis/flashsale/internal/issuance"
	"github.com/smallbiznis/flashsale/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	"github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

// resourceKind namespaces deal-product entries in the shared ledger.
const resourceKind = "timedeal"

// endedLedgerRetention keeps an ended deal's counters readable for a grace
// window before redis reclaims them.
const endedLedgerRetention = time.Hour

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
		log:      p.Log.Named("timedeal.service"),
		repo:     p.Repo,
		store:    p.Store,
		queueSvc: p.QueueSvc,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.DealDetail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("timedeal: name is required")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, domain.ErrInvalidWindow
	}
	if len(req.Products) == 0 {
		return nil, fmt.Errorf("timedeal: at least one product is required")
	}
	for _, p := range req.Products {
		if p.DealQuantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	now := s.clock.Now()
	deal := &domain.TimeDeal{
		ID:            s.genID.Generate().Int64(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.DealScheduled,
		QueueRequired: req.QueueRequired,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	products := make([]domain.TimeDealProduct, 0, len(req.Products))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateDeal(ctx, tx, deal); err != nil {
			return err
		}
		for _, p := range req.Products {
			maxPerUser := p.MaxPerUser
			if maxPerUser <= 0 {
				maxPerUser = 1
			}
			product := domain.TimeDealProduct{
				ID:           s.genID.Generate().Int64(),
				TimeDealID:   deal.ID,
				ProductID:    p.ProductID,
				DealPrice:    p.DealPrice,
				DealQuantity: p.DealQuantity,
				MaxPerUser:   maxPerUser,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.repo.CreateProduct(ctx, tx, &product); err != nil {
				return err
			}
			products = append(products, product)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("time deal created",
		zap.Int64("deal_id", deal.ID),
		zap.Int("products", len(products)),
		zap.Time("starts_at", deal.StartsAt),
	)
	return &domain.DealDetail{TimeDeal: *deal, Products: products}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.DealDetail, error) {
	deal, err := s.repo.FindDealByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrDealNotFound
	}
	products, err := s.repo.ListProductsByDeal(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &domain.DealDetail{TimeDeal: *deal, Products: products}, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.DealDetail, error) {
	deals, err := s.repo.ListDealsByStatuses(ctx, s.db, []domain.DealStatus{domain.DealActive})
	if err != nil {
		return nil, err
	}
	out := make([]domain.DealDetail, 0, len(deals))
	for _, deal := range deals {
		products, err := s.repo.ListProductsByDeal(ctx, s.db, deal.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DealDetail{TimeDeal: deal, Products: products})
	}
	return out, nil
}

func (s *Service) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("timedeal: user id is required")
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.repo.FindProductByID(ctx, s.db, req.TimeDealProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	deal, err := s.repo.FindDealByID(ctx, s.db, product.TimeDealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrDealNotFound
	}

	now := s.clock.Now()
	if deal.Status != domain.DealActive {
		return nil, domain.ErrDealNotActive
	}
	if now.Before(deal.StartsAt) {
		return nil, domain.ErrDealNotStarted
	}
	if !now.Before(deal.EndsAt) {
		return nil, domain.ErrDealEnded
	}

	if deal.QueueRequired {
		admitted, err := s.queueSvc.ValidateAdmission(ctx, resourceKind, resourceID(deal.ID), req.UserID)
		if err != nil {
			return nil, err
		}
		if !admitted {
			return nil, domain.ErrAdmissionRequired
		}
	}

	result, err := s.store.Issue(ctx, resourceKind, resourceID(product.ID), req.UserID, req.Quantity, product.MaxPerUser)
	if err != nil {
		// Fail closed: no claim while the ledger's answer is unknown.
		return nil, fmt.Errorf("timedeal: ledger unavailable: %w", err)
	}
	metrics.Engine().IncIssuanceResult(resourceKind, result.String())

	if result != issuance.Issued {
		return &domain.PurchaseResponse{Result: result, ResultText: result.String()}, nil
	}

	purchase := &domain.TimeDealPurchase{
		ID:                s.genID.Generate().Int64(),
		TimeDealID:        deal.ID,
		TimeDealProductID: product.ID,
		UserID:            req.UserID,
		Quantity:          req.Quantity,
		Status:            domain.PurchaseConfirmed,
		PurchasedAt:       now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreatePurchase(ctx, tx, purchase); err != nil {
			return err
		}
		return s.repo.AdjustSold(ctx, tx, product.ID, req.Quantity, now)
	})
	if err != nil {
		if rbErr := s.store.Rollback(ctx, resourceKind, resourceID(product.ID), req.UserID, req.Quantity); rbErr != nil {
			metrics.Engine().IncRollbackFailure()
			s.log.Error("timedeal ledger rollback failed, units lost until reconciled",
				zap.Int64("product_id", product.ID),
				zap.String("user_id", req.UserID),
				zap.Int64("quantity", req.Quantity),
				zap.Error(rbErr),
			)
		}
		return nil, fmt.Errorf("timedeal: persist purchase: %w", err)
	}

	return &domain.PurchaseResponse{
		Result:     issuance.Issued,
		ResultText: issuance.Issued.String(),
		Purchase:   purchase,
	}, nil
}

func (s *Service) UserPurchases(ctx context.Context, userID string) ([]domain.TimeDealPurchase, error) {
	return s.repo.ListPurchasesByUser(ctx, s.db, userID)
}

func (s *Service) RollbackPurchase(ctx context.Context, purchaseID int64) error {
	purchase, err := s.repo.FindPurchaseByID(ctx, s.db, purchaseID)
	if err != nil {
		return err
	}
	if purchase == nil {
		return domain.ErrPurchaseNotFound
	}
	if purchase.Status != domain.PurchaseConfirmed {
		return domain.ErrPurchaseNotRevocable
	}

	now := s.clock.Now()
	purchase.Status = domain.PurchaseCancelled
	purchase.CancelledAt = &now
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdatePurchase(ctx, tx, purchase); err != nil {
			return err
		}
		return s.repo.AdjustSold(ctx, tx, purchase.TimeDealProductID, -purchase.Quantity, now)
	})
	if err != nil {
		return err
	}

	if rbErr := s.store.Rollback(ctx, resourceKind, resourceID(purchase.TimeDealProductID), purchase.UserID, purchase.Quantity); rbErr != nil {
		// A cleared counter means the deal already ended; nothing to return.
		if errors.Is(rbErr, issuance.ErrNotInitialized) {
			return nil
		}
		metrics.Engine().IncRollbackFailure()
		s.log.Error("timedeal ledger rollback failed, units lost until reconciled",
			zap.Int64("purchase_id", purchaseID),
			zap.Error(rbErr),
		)
		return fmt.Errorf("timedeal: rollback ledger: %w", rbErr)
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, dealID int64) error {
	deal, err := s.repo.FindDealByID(ctx, s.db, dealID)
	if err != nil {
		return err
	}
	if deal == nil {
		return domain.ErrDealNotFound
	}
	if !deal.Status.CanTransition(domain.DealCancelled) {
		return domain.ErrInvalidTransition
	}

	deal.Status = domain.DealCancelled
	deal.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateDealStatus(ctx, s.db, deal); err != nil {
		return err
	}

	products, err := s.repo.ListProductsByDeal(ctx, s.db, dealID)
	if err != nil {
		return err
	}
	var errs error
	for _, product := range products {
		if err := s.store.Clear(ctx, resourceKind, resourceID(product.ID)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("product %d: %w", product.ID, err))
		}
	}

	s.log.Info("time deal cancelled", zap.Int64("deal_id", dealID))
	return errs
}

func (s *Service) ActivateDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindDueToActivate(ctx, s.db, now, 50)
	if err != nil {
		return 0, err
	}

	var errs error
	activated := 0
	for i := range due {
		deal := &due[i]
		if err := s.activate(ctx, deal, now); err != nil {
			errs = errors.Join(errs, fmt.Errorf("deal %d: %w", deal.ID, err))
			continue
		}
		activated++
	}

	if activated > 0 {
		s.log.Info("time deals activated", zap.Int("count", activated))
	}
	return activated, errs
}

func (s *Service) activate(ctx context.Context, deal *domain.TimeDeal, now time.Time) error {
	if !deal.Status.CanTransition(domain.DealActive) {
		return domain.ErrInvalidTransition
	}
	deal.Status = domain.DealActive
	deal.UpdatedAt = now
	if err := s.repo.UpdateDealStatus(ctx, s.db, deal); err != nil {
		return err
	}

	products, err := s.repo.ListProductsByDeal(ctx, s.db, deal.ID)
	if err != nil {
		return err
	}
	for _, product := range products {
		remaining := product.DealQuantity - product.SoldQuantity
		if remaining < 0 {
			remaining = 0
		}
		if err := s.store.InitializeStock(ctx, resourceKind, resourceID(product.ID), remaining); err != nil {
			return fmt.Errorf("seed product %d: %w", product.ID, err)
		}
	}
	return nil
}

func (s *Service) EndDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindDueToEnd(ctx, s.db, now, 50)
	if err != nil {
		return 0, err
	}

	var errs error
	ended := 0
	for i := range due {
		deal := &due[i]
		if !deal.Status.CanTransition(domain.DealEnded) {
			continue
		}
		deal.Status = domain.DealEnded
		deal.UpdatedAt = now
		if err := s.repo.UpdateDealStatus(ctx, s.db, deal); err != nil {
			errs = errors.Join(errs, fmt.Errorf("deal %d: %w", deal.ID, err))
			continue
		}

		products, err := s.repo.ListProductsByDeal(ctx, s.db, deal.ID)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("deal %d: %w", deal.ID, err))
			continue
		}
		for _, product := range products {
			if err := s.store.Expire(ctx, resourceKind, resourceID(product.ID), endedLedgerRetention); err != nil {
				errs = errors.Join(errs, fmt.Errorf("deal %d product %d: %w", deal.ID, product.ID, err))
			}
		}
		ended++
	}

	if ended > 0 {
		s.log.Info("time deals ended", zap.Int("count", ended))
	}
	return ended, errs
}

func (s *Service) ReseedLedger(ctx context.Context) error {
	deals, err := s.repo.ListDealsByStatuses(ctx, s.db, []domain.DealStatus{domain.DealActive})
	if err != nil {
		return err
	}

	var errs error
	seeded := 0
	for _, deal := range deals {
		products, err := s.repo.ListProductsByDeal(ctx, s.db, deal.ID)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("deal %d: %w", deal.ID, err))
			continue
		}
		for _, product := range products {
			remaining := product.DealQuantity - product.SoldQuantity
			if remaining < 0 {
				remaining = 0
			}
			if err := s.store.InitializeStock(ctx, resourceKind, resourceID(product.ID), remaining); err != nil {
				errs = errors.Join(errs, fmt.Errorf("deal %d product %d: %w", deal.ID, product.ID, err))
				continue
			}
			seeded++
		}
	}
	if seeded > 0 {
		s.log.Info("time deal ledger reseeded", zap.Int("products", seeded))
	}
	return errs
}

func resourceID(id int64) string {
	return strconv.FormatInt(id, 10)
}
