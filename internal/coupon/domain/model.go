package domain

import "time"

type CouponStatus string

const (
	CouponActive    CouponStatus = "ACTIVE"
	CouponExhausted CouponStatus = "EXHAUSTED"
	CouponExpired   CouponStatus = "EXPIRED"
	CouponInactive  CouponStatus = "INACTIVE"
)

// CanTransition enforces monotonic status movement. EXPIRED and INACTIVE
// are terminal; EXHAUSTED may return to ACTIVE when a rollback restores
// stock.
func (s CouponStatus) CanTransition(to CouponStatus) bool {
	switch s {
	case CouponActive:
		return to == CouponExhausted || to == CouponExpired || to == CouponInactive
	case CouponExhausted:
		return to == CouponActive || to == CouponExpired
	default:
		return false
	}
}

type DiscountType string

const (
	DiscountFixed   DiscountType = "FIXED_AMOUNT"
	DiscountPercent DiscountType = "PERCENTAGE"
)

type Coupon struct {
	ID                int64        `json:"id" gorm:"primaryKey"`
	Code              string       `json:"code" gorm:"type:text;not null;uniqueIndex:ux_coupons_code"`
	Name              string       `json:"name" gorm:"type:text;not null"`
	DiscountType      DiscountType `json:"discount_type" gorm:"type:text;not null"`
	DiscountValue     int64        `json:"discount_value" gorm:"not null"`
	MinOrderAmount    int64        `json:"min_order_amount" gorm:"not null;default:0"`
	MaxDiscountAmount int64        `json:"max_discount_amount" gorm:"not null;default:0"`
	TotalQuantity     int64        `json:"total_quantity" gorm:"not null"`
	IssuedQuantity    int64        `json:"issued_quantity" gorm:"not null;default:0"`
	MaxPerUser        int64        `json:"max_per_user" gorm:"not null;default:1"`
	Status            CouponStatus `json:"status" gorm:"type:text;not null;index:ix_coupons_status"`
	QueueRequired     bool         `json:"queue_required" gorm:"not null;default:false"`
	StartsAt          time.Time    `json:"starts_at" gorm:"not null"`
	ExpiresAt         time.Time    `json:"expires_at" gorm:"not null"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Coupon) TableName() string { return "coupons" }

type UserCouponStatus string

const (
	UserCouponAvailable UserCouponStatus = "AVAILABLE"
	UserCouponUsed      UserCouponStatus = "USED"
	UserCouponExpired   UserCouponStatus = "EXPIRED"
)

// UserCoupon is the durable claim record, one row per claimed unit. The
// ledger's claim hash is what caps rows per (coupon, user) at MaxPerUser
// under concurrency; the table holds as many rows as units claimed.
type UserCoupon struct {
	ID       int64            `json:"id" gorm:"primaryKey"`
	CouponID int64            `json:"coupon_id" gorm:"not null;index:ix_user_coupons_coupon_user,priority:1"`
	UserID   string           `json:"user_id" gorm:"type:text;not null;index:ix_user_coupons_coupon_user,priority:2;index:ix_user_coupons_user"`
	Status   UserCouponStatus `json:"status" gorm:"type:text;not null"`
	IssuedAt time.Time        `json:"issued_at" gorm:"not null"`
	UsedAt   *time.Time       `json:"used_at,omitempty"`
	OrderID  string           `json:"order_id,omitempty" gorm:"type:text"`
}

func (UserCoupon) TableName() string { return "user_coupons" }
