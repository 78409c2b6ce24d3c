package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/clock"
	"github.com/smallbiznis/flashsale/internal/config"
	"github.com/smallbiznis/flashsale/internal/inventory/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	genID       *snowflake.Node
	clock       clock.Clock
	lockTimeout time.Duration
}

func New(p Params) domain.Service {
	timeout := p.Cfg.Inventory.LockTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("inventory.service"),
		repo:        p.Repo,
		genID:       p.GenID,
		clock:       p.Clock,
		lockTimeout: timeout,
	}
}

func (s *Service) Initialize(ctx context.Context, req domain.InitializeRequest) (*domain.Snapshot, error) {
	if req.Quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var snap *domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByProductID(ctx, tx, req.ProductID, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}

		now := s.clock.Now()
		inv := &domain.Inventory{
			ID:        s.genID.Generate().Int64(),
			ProductID: req.ProductID,
			Available: req.Quantity,
			Reserved:  0,
			Total:     req.Quantity,
			Version:   0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, tx, inv); err != nil {
			return err
		}

		movement := &domain.StockMovement{
			ID:                s.genID.Generate().Int64(),
			ProductID:         req.ProductID,
			MovementType:      domain.MovementInitial,
			Quantity:          req.Quantity,
			PreviousAvailable: 0,
			PreviousReserved:  0,
			AfterAvailable:    inv.Available,
			AfterReserved:     inv.Reserved,
			Actor:             req.Actor,
			CreatedAt:         now,
		}
		if err := s.repo.InsertMovement(ctx, tx, movement); err != nil {
			return err
		}

		snap = toSnapshot(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("inventory initialized",
		zap.Int64("product_id", req.ProductID),
		zap.Int64("quantity", req.Quantity),
	)
	return snap, nil
}

func (s *Service) Get(ctx context.Context, productID int64) (*domain.Snapshot, error) {
	inv, err := s.repo.FindByProductID(ctx, s.db, productID, false)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return toSnapshot(inv), nil
}

func (s *Service) Reserve(ctx context.Context, req domain.MutationRequest) (*domain.Snapshot, error) {
	return s.mutate(ctx, req, domain.MovementReserve)
}

func (s *Service) Deduct(ctx context.Context, req domain.MutationRequest) (*domain.Snapshot, error) {
	return s.mutate(ctx, req, domain.MovementDeduct)
}

func (s *Service) Release(ctx context.Context, req domain.MutationRequest) (*domain.Snapshot, error) {
	return s.mutate(ctx, req, domain.MovementRelease)
}

func (s *Service) AddStock(ctx context.Context, req domain.MutationRequest) (*domain.Snapshot, error) {
	return s.mutate(ctx, req, domain.MovementInbound)
}

func (s *Service) ReserveBatch(ctx context.Context, reqs []domain.MutationRequest) ([]domain.Snapshot, error) {
	return s.mutateBatch(ctx, reqs, domain.MovementReserve)
}

func (s *Service) DeductBatch(ctx context.Context, reqs []domain.MutationRequest) ([]domain.Snapshot, error) {
	return s.mutateBatch(ctx, reqs, domain.MovementDeduct)
}

func (s *Service) ReleaseBatch(ctx context.Context, reqs []domain.MutationRequest) ([]domain.Snapshot, error) {
	return s.mutateBatch(ctx, reqs, domain.MovementRelease)
}

func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]domain.StockMovement, error) {
	return s.repo.ListMovements(ctx, s.db, productID, limit)
}

// mutate applies one quantity change while holding the product row's
// exclusive lock. The lock is scoped to exactly this transaction and never
// held across a call to another collaborator.
func (s *Service) mutate(ctx context.Context, req domain.MutationRequest, movementType domain.MovementType) (*domain.Snapshot, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var snap *domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByProductID(ctx, tx, req.ProductID, true)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.ErrNotFound
		}

		result, err := s.apply(ctx, tx, inv, req, movementType)
		if err != nil {
			return err
		}
		snap = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) mutateBatch(ctx context.Context, reqs []domain.MutationRequest, movementType domain.MovementType) ([]domain.Snapshot, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	productIDs := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		productIDs = append(productIDs, req.ProductID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var snaps []domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.FindByProductIDs(ctx, tx, productIDs, true)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]*domain.Inventory, len(rows))
		for i := range rows {
			byProduct[rows[i].ProductID] = &rows[i]
		}

		snaps = make([]domain.Snapshot, 0, len(reqs))
		for _, req := range reqs {
			inv, ok := byProduct[req.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d", domain.ErrNotFound, req.ProductID)
			}
			snap, err := s.apply(ctx, tx, inv, req, movementType)
			if err != nil {
				return fmt.Errorf("product %d: %w", req.ProductID, err)
			}
			snaps = append(snaps, *snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// apply performs the bucket arithmetic and writes the movement row. The
// caller holds the row lock.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, inv *domain.Inventory, req domain.MutationRequest, movementType domain.MovementType) (*domain.Snapshot, error) {
	prevAvailable := inv.Available
	prevReserved := inv.Reserved

	switch movementType {
	case domain.MovementReserve:
		if inv.Available < req.Quantity {
			return nil, domain.ErrInsufficientStock
		}
		inv.Available -= req.Quantity
		inv.Reserved += req.Quantity
	case domain.MovementDeduct:
		if inv.Reserved < req.Quantity {
			return nil, domain.ErrDeductionFailed
		}
		inv.Reserved -= req.Quantity
		inv.Total -= req.Quantity
	case domain.MovementRelease:
		if inv.Reserved < req.Quantity {
			return nil, domain.ErrReleaseFailed
		}
		inv.Reserved -= req.Quantity
		inv.Available += req.Quantity
	case domain.MovementInbound:
		inv.Available += req.Quantity
		inv.Total += req.Quantity
	default:
		return nil, fmt.Errorf("unknown movement type %q", movementType)
	}

	inv.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateQuantities(ctx, tx, inv); err != nil {
		return nil, err
	}
	inv.Version++

	movement := &domain.StockMovement{
		ID:                s.genID.Generate().Int64(),
		ProductID:         inv.ProductID,
		MovementType:      movementType,
		Quantity:          req.Quantity,
		PreviousAvailable: prevAvailable,
		PreviousReserved:  prevReserved,
		AfterAvailable:    inv.Available,
		AfterReserved:     inv.Reserved,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		Actor:             req.Actor,
		Reason:            req.Reason,
		CreatedAt:         inv.UpdatedAt,
	}
	if err := s.repo.InsertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	return toSnapshot(inv), nil
}

func toSnapshot(inv *domain.Inventory) *domain.Snapshot {
	return &domain.Snapshot{
		ProductID: inv.ProductID,
		Available: inv.Available,
		Reserved:  inv.Reserved,
		Total:     inv.Total,
		Version:   inv.Version,
		UpdatedAt: inv.UpdatedAt,
	}
}
