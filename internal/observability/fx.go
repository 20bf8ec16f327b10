package observability

import (
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/observability/logger"
	"github.com/adlens/campledger/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.NewRegistry,
		metrics.NewQueue,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Environment != "production",
	}
}
