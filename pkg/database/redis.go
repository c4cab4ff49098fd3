package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"sms-relay-go/internal/config"
)

// NewRedis 创建 Redis 客户端并测试连接，会话历史与入站去重都依赖它。
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
