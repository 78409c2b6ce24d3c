package inventory

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/inventory/repository"
	"github.com/smallbiznis/flashsale/internal/inventory/service"
)

var Module = fx.Module("inventory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
