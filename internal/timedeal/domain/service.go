package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/flashsale/internal/issuance"
)

var (
	ErrDealNotFound         = errors.New("time_deal_not_found")
	ErrProductNotFound      = errors.New("time_deal_product_not_found")
	ErrPurchaseNotFound     = errors.New("time_deal_purchase_not_found")
	ErrDealNotActive        = errors.New("time_deal_not_active")
	ErrDealNotStarted       = errors.New("time_deal_not_started")
	ErrDealEnded            = errors.New("time_deal_ended")
	ErrAdmissionRequired    = errors.New("queue_admission_required")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrInvalidWindow        = errors.New("invalid_deal_window")
	ErrInvalidQuantity      = errors.New("invalid_purchase_quantity")
	ErrPurchaseNotRevocable = errors.New("purchase_not_revocable")
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*DealDetail, error)
	Get(ctx context.Context, id int64) (*DealDetail, error)
	ListActive(ctx context.Context) ([]DealDetail, error)

	// Purchase is the claim path for one deal unit: lifecycle and window
	// checks, the admission gate when required, the atomic ledger decision
	// with the product's per-user cap, then the durable purchase record.
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, error)

	UserPurchases(ctx context.Context, userID string) ([]TimeDealPurchase, error)

	// RollbackPurchase compensates a confirmed purchase after a downstream
	// failure: the record is cancelled, sold count reduced, and the ledger
	// unit returned.
	RollbackPurchase(ctx context.Context, purchaseID int64) error

	Cancel(ctx context.Context, dealID int64) error

	// ActivateDue and EndDue are the lifecycle passes run by the scheduler.
	// Each deal is its own unit of work.
	ActivateDue(ctx context.Context) (int, error)
	EndDue(ctx context.Context) (int, error)

	// ReseedLedger rebuilds counters for every ACTIVE deal product from
	// dealQuantity - soldQuantity. Run once at startup.
	ReseedLedger(ctx context.Context) error
}

type CreateRequest struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	QueueRequired bool             `json:"queue_required"`
	StartsAt      time.Time        `json:"starts_at"`
	EndsAt        time.Time        `json:"ends_at"`
	Products      []ProductRequest `json:"products"`
}

type ProductRequest struct {
	ProductID    int64 `json:"product_id"`
	DealPrice    int64 `json:"deal_price"`
	DealQuantity int64 `json:"deal_quantity"`
	MaxPerUser   int64 `json:"max_per_user"`
}

type DealDetail struct {
	TimeDeal
	Products []TimeDealProduct `json:"products"`
}

type PurchaseRequest struct {
	TimeDealProductID int64  `json:"time_deal_product_id"`
	UserID            string `json:"user_id"`
	Quantity          int64  `json:"quantity"`
}

type PurchaseResponse struct {
	Result     issuance.Result   `json:"-"`
	ResultText string            `json:"result"`
	Purchase   *TimeDealPurchase `json:"purchase,omitempty"`
}
