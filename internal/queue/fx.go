package queue

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/queue/repository"
	"github.com/smallbiznis/flashsale/internal/queue/service"
)

var Module = fx.Module("queue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRedisLine),
	fx.Provide(service.New),
)
