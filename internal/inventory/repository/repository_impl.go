package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/inventory/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, inv *domain.Inventory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO inventories (id, product_id, available, reserved, total, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.ProductID,
		inv.Available,
		inv.Reserved,
		inv.Total,
		inv.Version,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *repo) FindByProductID(ctx context.Context, db *gorm.DB, productID int64, forUpdate bool) (*domain.Inventory, error) {
	var inv domain.Inventory
	query := `SELECT id, product_id, available, reserved, total, version, created_at, updated_at
	 FROM inventories WHERE product_id = ? LIMIT 1`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}
	err := db.WithContext(ctx).Raw(query, productID).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) FindByProductIDs(ctx context.Context, db *gorm.DB, productIDs []int64, forUpdate bool) ([]domain.Inventory, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(productIDs))
	copy(ids, productIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	query := `SELECT id, product_id, available, reserved, total, version, created_at, updated_at
	 FROM inventories WHERE product_id IN ? ORDER BY product_id ASC`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var items []domain.Inventory
	err := db.WithContext(ctx).Raw(query, ids).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateQuantities(ctx context.Context, db *gorm.DB, inv *domain.Inventory) error {
	return db.WithContext(ctx).Exec(
		`UPDATE inventories
		 SET available = ?, reserved = ?, total = ?, version = version + 1, updated_at = ?
		 WHERE id = ?`,
		inv.Available,
		inv.Reserved,
		inv.Total,
		inv.UpdatedAt,
		inv.ID,
	).Error
}

func (r *repo) InsertMovement(ctx context.Context, db *gorm.DB, m *domain.StockMovement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_movements (id, product_id, movement_type, quantity,
		 previous_available, previous_reserved, after_available, after_reserved,
		 reference_type, reference_id, actor, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.ProductID,
		m.MovementType,
		m.Quantity,
		m.PreviousAvailable,
		m.PreviousReserved,
		m.AfterAvailable,
		m.AfterReserved,
		m.ReferenceType,
		m.ReferenceID,
		m.Actor,
		m.Reason,
		m.CreatedAt,
	).Error
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, productID int64, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.StockMovement
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, movement_type, quantity,
		 previous_available, previous_reserved, after_available, after_reserved,
		 reference_type, reference_id, actor, reason, created_at
		 FROM stock_movements WHERE product_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		productID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
