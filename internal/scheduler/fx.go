package scheduler

import (
	"context"

	"github.com/chatlyhq/chatly/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(New),
	fx.Invoke(Run),
)

// NewRedisClient returns nil when no redis address is configured; the
// scheduler then runs without the distributed lock.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func Run(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
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
