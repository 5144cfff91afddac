package cache

import (
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/giftpact/internal/config"
	"go.uber.org/fx"
)

// Module provides the shared redis client.
var Module = fx.Provide(NewRedis)

func NewRedis(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
