package domain

import "time"

// MovementType classifies a single inventory mutation.
type MovementType string

const (
	MovementInitial MovementType = "INITIAL"
	MovementReserve MovementType = "RESERVE"
	MovementDeduct  MovementType = "DEDUCT"
	MovementRelease MovementType = "RELEASE"
	MovementInbound MovementType = "INBOUND"
)

// Inventory is the authoritative quantity bookkeeping for one product.
// available + reserved = total holds after every committed mutation.
type Inventory struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	ProductID int64     `json:"product_id" gorm:"not null;uniqueIndex:ux_inventories_product"`
	Available int64     `json:"available" gorm:"not null;default:0"`
	Reserved  int64     `json:"reserved" gorm:"not null;default:0"`
	Total     int64     `json:"total" gorm:"not null;default:0"`
	Version   int64     `json:"version" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Inventory) TableName() string { return "inventories" }

// StockMovement is the immutable audit row written for every inventory
// mutation. Rows are insert-only.
type StockMovement struct {
	ID                int64        `json:"id" gorm:"primaryKey"`
	ProductID         int64        `json:"product_id" gorm:"not null;index:ix_stock_movements_product"`
	MovementType      MovementType `json:"movement_type" gorm:"type:text;not null"`
	Quantity          int64        `json:"quantity" gorm:"not null"`
	PreviousAvailable int64        `json:"previous_available" gorm:"not null"`
	PreviousReserved  int64        `json:"previous_reserved" gorm:"not null"`
	AfterAvailable    int64        `json:"after_available" gorm:"not null"`
	AfterReserved     int64        `json:"after_reserved" gorm:"not null"`
	ReferenceType     string       `json:"reference_type,omitempty" gorm:"type:text"`
	ReferenceID       string       `json:"reference_id,omitempty" gorm:"type:text"`
	Actor             string       `json:"actor,omitempty" gorm:"type:text"`
	Reason            string       `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StockMovement) TableName() string { return "stock_movements" }
