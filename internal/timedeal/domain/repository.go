package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	CreateDeal(ctx context.Context, db *gorm.DB, deal *TimeDeal) error
	CreateProduct(ctx context.Context, db *gorm.DB, product *TimeDealProduct) error

	FindDealByID(ctx context.Context, db *gorm.DB, id int64) (*TimeDeal, error)
	FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*TimeDealProduct, error)
	ListProductsByDeal(ctx context.Context, db *gorm.DB, dealID int64) ([]TimeDealProduct, error)
	ListDealsByStatuses(ctx context.Context, db *gorm.DB, statuses []DealStatus) ([]TimeDeal, error)

	FindDueToActivate(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]TimeDeal, error)
	FindDueToEnd(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]TimeDeal, error)

	UpdateDealStatus(ctx context.Context, db *gorm.DB, deal *TimeDeal) error
	AdjustSold(ctx context.Context, db *gorm.DB, productID, delta int64, now time.Time) error

	CreatePurchase(ctx context.Context, db *gorm.DB, purchase *TimeDealPurchase) error
	FindPurchaseByID(ctx context.Context, db *gorm.DB, id int64) (*TimeDealPurchase, error)
	ListPurchasesByUser(ctx context.Context, db *gorm.DB, userID string) ([]TimeDealPurchase, error)
	UpdatePurchase(ctx context.Context, db *gorm.DB, purchase *TimeDealPurchase) error
}
