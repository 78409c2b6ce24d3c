package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/clock"
	"github.com/smallbiznis/flashsale/internal/config"
	"github.com/smallbiznis/flashsale/internal/coupon"
	"github.com/smallbiznis/flashsale/internal/inventory"
	"github.com/smallbiznis/flashsale/internal/issuance"
	"github.com/smallbiznis/flashsale/internal/lock"
	"github.com/smallbiznis/flashsale/internal/migration"
	"github.com/smallbiznis/flashsale/internal/observability"
	"github.com/smallbiznis/flashsale/internal/queue"
	"github.com/smallbiznis/flashsale/internal/ratelimit"
	"github.com/smallbiznis/flashsale/internal/scheduler"
	"github.com/smallbiznis/flashsale/internal/server"
	"github.com/smallbiznis/flashsale/internal/timedeal"
	"github.com/smallbiznis/flashsale/pkg/db"
	"github.com/smallbiznis/flashsale/pkg/redisconn"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisconn.Module,
		clock.Module,
		lock.Module,
		issuance.Module,
		ratelimit.Module,
		migration.Module,

		// Functional domains
		inventory.Module,
		queue.Module,
		coupon.Module,
		timedeal.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
