package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/flashsale/internal/inventory/domain"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// mysql and sqlite run from the model definitions.
		return conn.AutoMigrate(
			&inventorydomain.Inventory{},
			&inventorydomain.StockMovement{},
			&queuedomain.QueueConfig{},
			&queuedomain.QueueEntry{},
			&coupondomain.Coupon{},
			&coupondomain.UserCoupon{},
			&timedealdomain.TimeDeal{},
			&timedealdomain.TimeDealProduct{},
			&timedealdomain.TimeDealPurchase{},
		)
	}),
)
