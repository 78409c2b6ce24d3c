package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, inv *Inventory) error

	// FindByProductID loads one product's row, optionally taking the row's
	// exclusive lock for the lifetime of the surrounding transaction.
	FindByProductID(ctx context.Context, db *gorm.DB, productID int64, forUpdate bool) (*Inventory, error)

	// FindByProductIDs loads rows in ascending product-id order. Lock order
	// must be globally consistent so two multi-row callers cannot deadlock.
	FindByProductIDs(ctx context.Context, db *gorm.DB, productIDs []int64, forUpdate bool) ([]Inventory, error)

	UpdateQuantities(ctx context.Context, db *gorm.DB, inv *Inventory) error

	InsertMovement(ctx context.Context, db *gorm.DB, movement *StockMovement) error
	ListMovements(ctx context.Context, db *gorm.DB, productID int64, limit int) ([]StockMovement, error)
}
