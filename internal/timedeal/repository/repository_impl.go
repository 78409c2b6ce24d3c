package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

const dealColumns = `id, name, description, status, queue_required, starts_at, ends_at, created_at, updated_at`

const productColumns = `id, time_deal_id, product_id, deal_price, deal_quantity, sold_quantity,
	 max_per_user, created_at, updated_at`

const purchaseColumns = `id, time_deal_id, time_deal_product_id, user_id, quantity, status,
	 purchased_at, cancelled_at, order_id`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateDeal(ctx context.Context, db *gorm.DB, deal *domain.TimeDeal) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO time_deals (id, name, description, status, queue_required, starts_at, ends_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID,
		deal.Name,
		deal.Description,
		deal.Status,
		deal.QueueRequired,
		deal.StartsAt,
		deal.EndsAt,
		deal.CreatedAt,
		deal.UpdatedAt,
	).Error
}

func (r *repo) CreateProduct(ctx context.Context, db *gorm.DB, p *domain.TimeDealProduct) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO time_deal_products (id, time_deal_id, product_id, deal_price, deal_quantity,
		 sold_quantity, max_per_user, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.TimeDealID,
		p.ProductID,
		p.DealPrice,
		p.DealQuantity,
		p.SoldQuantity,
		p.MaxPerUser,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindDealByID(ctx context.Context, db *gorm.DB, id int64) (*domain.TimeDeal, error) {
	var deal domain.TimeDeal
	err := db.WithContext(ctx).Raw(
		`SELECT `+dealColumns+` FROM time_deals WHERE id = ? LIMIT 1`,
		id,
	).Scan(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*domain.TimeDealProduct, error) {
	var p domain.TimeDealProduct
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM time_deal_products WHERE id = ? LIMIT 1`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListProductsByDeal(ctx context.Context, db *gorm.DB, dealID int64) ([]domain.TimeDealProduct, error) {
	var items []domain.TimeDealProduct
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM time_deal_products WHERE time_deal_id = ? ORDER BY id ASC`,
		dealID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDealsByStatuses(ctx context.Context, db *gorm.DB, statuses []domain.DealStatus) ([]domain.TimeDeal, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var items []domain.TimeDeal
	err := db.WithContext(ctx).Raw(
		`SELECT `+dealColumns+` FROM time_deals WHERE status IN ? ORDER BY starts_at ASC`,
		statuses,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindDueToActivate(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.TimeDeal, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.TimeDeal
	err := db.WithContext(ctx).Raw(
		`SELECT `+dealColumns+` FROM time_deals
		 WHERE status = ? AND starts_at <= ?
		 ORDER BY starts_at ASC LIMIT ?`,
		domain.DealScheduled,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindDueToEnd(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.TimeDeal, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.TimeDeal
	err := db.WithContext(ctx).Raw(
		`SELECT `+dealColumns+` FROM time_deals
		 WHERE status = ? AND ends_at <= ?
		 ORDER BY ends_at ASC LIMIT ?`,
		domain.DealActive,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateDealStatus(ctx context.Context, db *gorm.DB, deal *domain.TimeDeal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE time_deals SET status = ?, updated_at = ? WHERE id = ?`,
		deal.Status,
		deal.UpdatedAt,
		deal.ID,
	).Error
}

func (r *repo) AdjustSold(ctx context.Context, db *gorm.DB, productID, delta int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE time_deal_products SET sold_quantity = sold_quantity + ?, updated_at = ? WHERE id = ?`,
		delta,
		now,
		productID,
	).Error
}

func (r *repo) CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.TimeDealPurchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO time_deal_purchases (id, time_deal_id, time_deal_product_id, user_id, quantity,
		 status, purchased_at, cancelled_at, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.TimeDealID,
		p.TimeDealProductID,
		p.UserID,
		p.Quantity,
		p.Status,
		p.PurchasedAt,
		p.CancelledAt,
		p.OrderID,
	).Error
}

func (r *repo) FindPurchaseByID(ctx context.Context, db *gorm.DB, id int64) (*domain.TimeDealPurchase, error) {
	var p domain.TimeDealPurchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM time_deal_purchases WHERE id = ? LIMIT 1`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListPurchasesByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.TimeDealPurchase, error) {
	var items []domain.TimeDealPurchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM time_deal_purchases WHERE user_id = ? ORDER BY purchased_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePurchase(ctx context.Context, db *gorm.DB, p *domain.TimeDealPurchase) error {
	return db.WithContext(ctx).Exec(
		`UPDATE time_deal_purchases SET status = ?, cancelled_at = ?, order_id = ? WHERE id = ?`,
		p.Status,
		p.CancelledAt,
		p.OrderID,
		p.ID,
	).Error
}
