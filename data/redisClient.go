package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vbilyk/usd_tax_helper_bot/config"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects to redis and verifies the connection with a ping.
// Both the rate cache and the chat session store run on this client.
func NewRedisClient(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("redis ping failed", slog.String("err", err.Error()))
		panic(err)
	}

	slog.Info("redis connected")

	return client
}
