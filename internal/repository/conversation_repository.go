// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"sms-relay-go/internal/model"
	"sms-relay-go/pkg/log"
)

// ConversationRepository 定义了会话历史的读写接口，key 由调用方给出。
type ConversationRepository interface {
	// Load 读取历史；不存在、为空或数据损坏时都返回空历史。
	Load(ctx context.Context, sessionKey string) ([]model.ChatMessage, error)
	// Save 用完整的历史覆盖已有记录。
	Save(ctx context.Context, sessionKey string, history []model.ChatMessage) error
	// Clear 删除记录，之后 Load 返回空历史。
	Clear(ctx context.Context, sessionKey string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	maxMessages int
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
// ttl 为 0 表示永不过期；maxMessages 为 0 表示不截断。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration, maxMessages int) ConversationRepository {
	return &redisConversationRepository{
		redisClient: redisClient,
		ttl:         ttl,
		maxMessages: maxMessages,
	}
}

// ConversationKey 返回某个匿名化发送方的会话 key。
func ConversationKey(senderID string) string {
	return "sms:conversation:" + senderID
}

// Load 从 Redis 获取会话历史。
func (r *redisConversationRepository) Load(ctx context.Context, sessionKey string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	if strings.TrimSpace(jsonData) == "" {
		return []model.ChatMessage{}, nil
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		log.Warnw("stored conversation history is malformed, starting over", "key", sessionKey, "error", err)
		return []model.ChatMessage{}, nil
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	return messages, nil
}

// Save 在 Redis 中覆盖会话历史，并刷新过期时间。
func (r *redisConversationRepository) Save(ctx context.Context, sessionKey string, history []model.ChatMessage) error {
	if r.maxMessages > 0 && len(history) > r.maxMessages {
		history = history[len(history)-r.maxMessages:]
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey, jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// Clear 删除会话历史。
func (r *redisConversationRepository) Clear(ctx context.Context, sessionKey string) error {
	if err := r.redisClient.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
