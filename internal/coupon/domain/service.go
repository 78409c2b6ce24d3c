package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/flashsale/internal/issuance"
)

var (
	ErrCouponNotFound         = errors.New("coupon_not_found")
	ErrCouponCodeTaken        = errors.New("coupon_code_taken")
	ErrCouponNotActive        = errors.New("coupon_not_active")
	ErrCouponNotStarted       = errors.New("coupon_not_started")
	ErrCouponExpired          = errors.New("coupon_expired")
	ErrAdmissionRequired      = errors.New("queue_admission_required")
	ErrUserCouponNotFound     = errors.New("user_coupon_not_found")
	ErrUserCouponNotAvailable = errors.New("user_coupon_not_available")
	ErrInvalidTransition      = errors.New("invalid_status_transition")
	ErrInvalidWindow          = errors.New("invalid_validity_window")
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Coupon, error)
	Get(ctx context.Context, id int64) (*Coupon, error)
	ListAvailable(ctx context.Context) ([]Coupon, error)

	// Issue runs the full claim path: validity checks, the admission gate
	// when the coupon requires one, the atomic ledger decision, then the
	// durable claim record. A ledger success whose persistence fails is
	// compensated with a ledger rollback.
	Issue(ctx context.Context, couponID int64, userID string) (*IssueResponse, error)

	UserCoupons(ctx context.Context, userID string) ([]UserCoupon, error)

	// Use marks the user's claim consumed and links the causing order.
	Use(ctx context.Context, couponID int64, userID, orderID string) error

	// Deactivate retires an ACTIVE coupon and drops its ledger entries.
	Deactivate(ctx context.Context, id int64) error

	// ExpireDue sweeps coupons past their window to EXPIRED. Per-coupon
	// failures are isolated.
	ExpireDue(ctx context.Context) (int, error)

	// ReseedLedger rebuilds the ledger counters from total - issued for
	// every issuable coupon. Run once at startup before serving traffic.
	ReseedLedger(ctx context.Context) error
}

type CreateRequest struct {
	Code              string       `json:"code"`
	Name              string       `json:"name"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     int64        `json:"discount_value"`
	MinOrderAmount    int64        `json:"min_order_amount"`
	MaxDiscountAmount int64        `json:"max_discount_amount"`
	TotalQuantity     int64        `json:"total_quantity"`
	MaxPerUser        int64        `json:"max_per_user"`
	QueueRequired     bool         `json:"queue_required"`
	StartsAt          time.Time    `json:"starts_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

type IssueResponse struct {
	Result     issuance.Result `json:"-"`
	ResultText string          `json:"result"`
	UserCoupon *UserCoupon     `json:"user_coupon,omitempty"`
}
