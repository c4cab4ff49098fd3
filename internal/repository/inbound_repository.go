package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultInboundTTL 覆盖 Twilio 的 webhook 重试窗口。
const DefaultInboundTTL = 24 * time.Hour

// InboundRepository 记录已经处理过的入站短信，避免 webhook 重试导致重复回复。
type InboundRepository interface {
	// MarkSeen 返回 true 表示该 sid 第一次出现。
	MarkSeen(ctx context.Context, messageSID string) (bool, error)
	// Forget 撤销标记，用于处理失败后允许重试。
	Forget(ctx context.Context, messageSID string) error
}

type redisInboundRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewInboundRepository 创建基于 Redis SETNX 的去重仓库。
func NewInboundRepository(redisClient *redis.Client, ttl time.Duration) InboundRepository {
	if ttl <= 0 {
		ttl = DefaultInboundTTL
	}
	return &redisInboundRepository{redisClient: redisClient, ttl: ttl}
}

func inboundKey(messageSID string) string {
	return "sms:inbound:" + messageSID
}

func (r *redisInboundRepository) MarkSeen(ctx context.Context, messageSID string) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, inboundKey(messageSID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark inbound message: %w", err)
	}
	return ok, nil
}

func (r *redisInboundRepository) Forget(ctx context.Context, messageSID string) error {
	if err := r.redisClient.Del(ctx, inboundKey(messageSID)).Err(); err != nil {
		return fmt.Errorf("failed to forget inbound message: %w", err)
	}
	return nil
}
