package cache

import (
	"context"
	"fmt"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var RedisClient *redis.Client

// InitRedis 连接 Redis，账户锁依赖它，连不上直接退出
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("连接 Redis 失败", zap.String("addr", client.Options().Addr), zap.Error(err))
	}

	RedisClient = client
	logger.Log.Info("Redis 连接成功", zap.String("addr", client.Options().Addr))
	return client
}
