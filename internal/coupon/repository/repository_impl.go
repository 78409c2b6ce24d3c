package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/coupon/domain"
)

const couponColumns = `id, code, name, discount_type, discount_value, min_order_amount,
	 max_discount_amount, total_quantity, issued_quantity, max_per_user, status,
	 queue_required, starts_at, expires_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, c *domain.Coupon) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO coupons (id, code, name, discount_type, discount_value, min_order_amount,
		 max_discount_amount, total_quantity, issued_quantity, max_per_user, status,
		 queue_required, starts_at, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Code,
		c.Name,
		c.DiscountType,
		c.DiscountValue,
		c.MinOrderAmount,
		c.MaxDiscountAmount,
		c.TotalQuantity,
		c.IssuedQuantity,
		c.MaxPerUser,
		c.Status,
		c.QueueRequired,
		c.StartsAt,
		c.ExpiresAt,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Coupon, error) {
	var c domain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons WHERE id = ? LIMIT 1`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons WHERE code = ? LIMIT 1`,
		code,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListAvailable(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Coupon, error) {
	var items []domain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons
		 WHERE status = ? AND starts_at <= ? AND expires_at > ?
		 ORDER BY expires_at ASC`,
		domain.CouponActive,
		now,
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByStatuses(ctx context.Context, db *gorm.DB, statuses []domain.CouponStatus) ([]domain.Coupon, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var items []domain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons WHERE status IN ? ORDER BY id ASC`,
		statuses,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindDueToExpire(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons
		 WHERE status IN (?, ?) AND expires_at <= ?
		 ORDER BY expires_at ASC LIMIT ?`,
		domain.CouponActive,
		domain.CouponExhausted,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, c *domain.Coupon) error {
	return db.WithContext(ctx).Exec(
		`UPDATE coupons SET status = ?, updated_at = ? WHERE id = ?`,
		c.Status,
		c.UpdatedAt,
		c.ID,
	).Error
}

func (r *repo) IncrementIssued(ctx context.Context, db *gorm.DB, couponID int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE coupons SET issued_quantity = issued_quantity + 1, updated_at = ? WHERE id = ?`,
		now,
		couponID,
	).Error
}

func (r *repo) CreateUserCoupon(ctx context.Context, db *gorm.DB, uc *domain.UserCoupon) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_coupons (id, coupon_id, user_id, status, issued_at, used_at, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uc.ID,
		uc.CouponID,
		uc.UserID,
		uc.Status,
		uc.IssuedAt,
		uc.UsedAt,
		uc.OrderID,
	).Error
}

func (r *repo) FindUserCoupon(ctx context.Context, db *gorm.DB, couponID int64, userID string) (*domain.UserCoupon, error) {
	var uc domain.UserCoupon
	// A user may hold several claim rows; consume the oldest still-available
	// one first.
	err := db.WithContext(ctx).Raw(
		`SELECT id, coupon_id, user_id, status, issued_at, used_at, order_id
		 FROM user_coupons WHERE coupon_id = ? AND user_id = ?
		 ORDER BY CASE WHEN status = ? THEN 0 ELSE 1 END, issued_at ASC, id ASC
		 LIMIT 1`,
		couponID,
		userID,
		domain.UserCouponAvailable,
	).Scan(&uc).Error
	if err != nil {
		return nil, err
	}
	if uc.ID == 0 {
		return nil, nil
	}
	return &uc, nil
}

func (r *repo) ListUserCoupons(ctx context.Context, db *gorm.DB, userID string) ([]domain.UserCoupon, error) {
	var items []domain.UserCoupon
	err := db.WithContext(ctx).Raw(
		`SELECT id, coupon_id, user_id, status, issued_at, used_at, order_id
		 FROM user_coupons WHERE user_id = ? ORDER BY issued_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateUserCoupon(ctx context.Context, db *gorm.DB, uc *domain.UserCoupon) error {
	return db.WithContext(ctx).Exec(
		`UPDATE user_coupons SET status = ?, used_at = ?, order_id = ? WHERE id = ?`,
		uc.Status,
		uc.UsedAt,
		uc.OrderID,
		uc.ID,
	).Error
}
