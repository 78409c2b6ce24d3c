package domain

import "time"

type DealStatus string

const (
	DealScheduled DealStatus = "SCHEDULED"
	DealActive    DealStatus = "ACTIVE"
	DealEnded     DealStatus = "ENDED"
	DealCancelled DealStatus = "CANCELLED"
)

// CanTransition enforces the forward-only lifecycle. ENDED and CANCELLED
// are terminal.
func (s DealStatus) CanTransition(to DealStatus) bool {
	switch s {
	case DealScheduled:
		return to == DealActive || to == DealCancelled
	case DealActive:
		return to == DealEnded || to == DealCancelled
	default:
		return false
	}
}

type TimeDeal struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	Name          string     `json:"name" gorm:"type:text;not null"`
	Description   string     `json:"description,omitempty" gorm:"type:text"`
	Status        DealStatus `json:"status" gorm:"type:text;not null;index:ix_time_deals_status"`
	QueueRequired bool       `json:"queue_required" gorm:"not null;default:false"`
	StartsAt      time.Time  `json:"starts_at" gorm:"not null"`
	EndsAt        time.Time  `json:"ends_at" gorm:"not null"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TimeDeal) TableName() string { return "time_deals" }

// TimeDealProduct is one sellable unit of a deal. Its row id, not the
// underlying product id, keys the ledger stock counter.
type TimeDealProduct struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	TimeDealID   int64     `json:"time_deal_id" gorm:"not null;index:ix_time_deal_products_deal"`
	ProductID    int64     `json:"product_id" gorm:"not null"`
	DealPrice    int64     `json:"deal_price" gorm:"not null"`
	DealQuantity int64     `json:"deal_quantity" gorm:"not null"`
	SoldQuantity int64     `json:"sold_quantity" gorm:"not null;default:0"`
	MaxPerUser   int64     `json:"max_per_user" gorm:"not null;default:1"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TimeDealProduct) TableName() string { return "time_deal_products" }

type PurchaseStatus string

const (
	PurchaseConfirmed PurchaseStatus = "CONFIRMED"
	PurchaseCancelled PurchaseStatus = "CANCELLED"
)

type TimeDealPurchase struct {
	ID                int64          `json:"id" gorm:"primaryKey"`
	TimeDealID        int64          `json:"time_deal_id" gorm:"not null"`
	TimeDealProductID int64          `json:"time_deal_product_id" gorm:"not null;index:ix_time_deal_purchases_product"`
	UserID            string         `json:"user_id" gorm:"type:text;not null;index:ix_time_deal_purchases_user"`
	Quantity          int64          `json:"quantity" gorm:"not null"`
	Status            PurchaseStatus `json:"status" gorm:"type:text;not null"`
	PurchasedAt       time.Time      `json:"purchased_at" gorm:"not null"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
	OrderID           string         `json:"order_id,omitempty" gorm:"type:text"`
}

func (TimeDealPurchase) TableName() string { return "time_deal_purchases" }
