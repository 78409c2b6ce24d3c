package coupon

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/coupon/repository"
	"github.com/smallbiznis/flashsale/internal/coupon/service"
)

var Module = fx.Module("coupon.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
