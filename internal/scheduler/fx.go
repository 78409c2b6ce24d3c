package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/flashsale/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		TickInterval: cfg.Scheduler.TickInterval,
		LockTTL:      cfg.Scheduler.LockTTL,
	}.withDefaults()
}

func NewScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := sched.RecoverLedgers(startCtx); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
