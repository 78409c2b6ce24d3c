package timedeal

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/timedeal/repository"
	"github.com/smallbiznis/flashsale/internal/timedeal/service"
)

var Module = fx.Module("timedeal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
