package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/sharenet/packetpool/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewRedisClient),
	fx.Provide(provideClaimLimiter),
)

// NewRedisClient returns nil when no address is configured; dependents
// treat a nil client as "limiting disabled".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, claim limiting degraded", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideClaimLimiter(client *redis.Client, cfg config.Config) *ClaimLimiter {
	return NewClaimLimiter(client, cfg.Pool.ClaimRatePerMinute)
}
