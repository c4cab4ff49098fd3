package service

import (
	"context"
	"errors"

	"sms-relay-go/internal/model"
	"sms-relay-go/internal/repository"
	"sms-relay-go/pkg/identity"
)

// ErrDeliveryLogDisabled 表示未配置 MySQL，无法查询投递日志。
var ErrDeliveryLogDisabled = errors.New("delivery log is not configured")

// ConversationView 是管理接口返回的会话快照，不包含原始号码。
type ConversationView struct {
	SenderID string              `json:"senderId"`
	Messages []model.ChatMessage `json:"messages"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	GetConversation(ctx context.Context, sender string) (*ConversationView, error)
	ClearConversation(ctx context.Context, sender string) error
	ListDeliveries(ctx context.Context, sender string, limit int) ([]model.DeliveryRecord, error)
}

type adminService struct {
	conversations repository.ConversationRepository
	deliveries    repository.DeliveryRepository
	messages      MessageService
}

// NewAdminService 创建一个新的 AdminService 实例。deliveries 可以为 nil。
func NewAdminService(conversations repository.ConversationRepository, deliveries repository.DeliveryRepository, messages MessageService) AdminService {
	return &adminService{
		conversations: conversations,
		deliveries:    deliveries,
		messages:      messages,
	}
}

func (s *adminService) GetConversation(ctx context.Context, sender string) (*ConversationView, error) {
	senderID := identity.Anonymize(sender)
	history, err := s.conversations.Load(ctx, repository.ConversationKey(senderID))
	if err != nil {
		return nil, err
	}
	return &ConversationView{SenderID: senderID, Messages: history}, nil
}

// ClearConversation 与 webhook 共用同一把发送方锁。
func (s *adminService) ClearConversation(ctx context.Context, sender string) error {
	return s.messages.ClearConversation(ctx, sender)
}

func (s *adminService) ListDeliveries(ctx context.Context, sender string, limit int) ([]model.DeliveryRecord, error) {
	if s.deliveries == nil {
		return nil, ErrDeliveryLogDisabled
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.deliveries.ListBySender(ctx, identity.Anonymize(sender), limit)
}
