package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Coupon, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Coupon, error)
	ListAvailable(ctx context.Context, db *gorm.DB, now time.Time) ([]Coupon, error)
	ListByStatuses(ctx context.Context, db *gorm.DB, statuses []CouponStatus) ([]Coupon, error)

	// FindDueToExpire returns issuable coupons whose validity window has
	// closed.
	FindDueToExpire(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Coupon, error)

	UpdateStatus(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	IncrementIssued(ctx context.Context, db *gorm.DB, couponID int64, now time.Time) error

	CreateUserCoupon(ctx context.Context, db *gorm.DB, uc *UserCoupon) error
	FindUserCoupon(ctx context.Context, db *gorm.DB, couponID int64, userID string) (*UserCoupon, error)
	ListUserCoupons(ctx context.Context, db *gorm.DB, userID string) ([]UserCoupon, error)
	UpdateUserCoupon(ctx context.Context, db *gorm.DB, uc *UserCoupon) error
}
