package observability

import (
	"os"
	"strings"

	"github.com/smallbiznis/flashsale/internal/config"
	"github.com/smallbiznis/flashsale/internal/observability/logger"
	"github.com/smallbiznis/flashsale/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		provideMetricsConfig,
	),
	fx.Invoke(ensureEngineMetrics),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		Format:              strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Environment != "production",
	}
}

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	}
}

func ensureEngineMetrics(cfg metrics.Config) {
	metrics.EngineWithConfig(cfg)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
