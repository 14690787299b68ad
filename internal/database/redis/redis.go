package redis

import (
	"context"
	"log"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient builds the Redis client. An unreachable server is logged only.
func NewClient(cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Error connect to Redis: %s", err)
	}
	return client
}
