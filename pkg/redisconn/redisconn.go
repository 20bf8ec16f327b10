package redisconn

import (
	"context"
	"strings"

	"github.com/adlens/campledger/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New builds the shared redis client and registers teardown on the fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.RedisAddr),
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis ping failed", zap.Error(err))
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return client.Close()
			},
		})
	}

	return client
}

var Module = fx.Module("redis",
	fx.Provide(New),
)
