package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrDeductionFailed   = errors.New("deduction_failed")
	ErrReleaseFailed     = errors.New("release_failed")
	ErrNotFound          = errors.New("inventory_not_found")
	ErrAlreadyExists     = errors.New("inventory_already_exists")
)

type Service interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Snapshot, error)
	Get(ctx context.Context, productID int64) (*Snapshot, error)

	Reserve(ctx context.Context, req MutationRequest) (*Snapshot, error)
	Deduct(ctx context.Context, req MutationRequest) (*Snapshot, error)
	Release(ctx context.Context, req MutationRequest) (*Snapshot, error)
	AddStock(ctx context.Context, req MutationRequest) (*Snapshot, error)

	// Batch variants apply every mutation inside one transaction, locking
	// rows in ascending product-id order. All-or-nothing.
	ReserveBatch(ctx context.Context, reqs []MutationRequest) ([]Snapshot, error)
	DeductBatch(ctx context.Context, reqs []MutationRequest) ([]Snapshot, error)
	ReleaseBatch(ctx context.Context, reqs []MutationRequest) ([]Snapshot, error)

	Movements(ctx context.Context, productID int64, limit int) ([]StockMovement, error)
}

type InitializeRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Actor     string `json:"actor"`
}

type MutationRequest struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
}

// Snapshot is the updated inventory state returned from every operation.
type Snapshot struct {
	ProductID int64     `json:"product_id"`
	Available int64     `json:"available"`
	Reserved  int64     `json:"reserved"`
	Total     int64     `json:"total"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
