package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"sms-relay-go/internal/model"
	"sms-relay-go/internal/repository"
	"sms-relay-go/pkg/identity"
	"sms-relay-go/pkg/llm"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/segment"
	"sms-relay-go/pkg/tasks"
)

const (
	// ResetCommand 清空会话历史，大小写不敏感，忽略首尾空白。
	ResetCommand = "reset"
	// ResetConfirmation 是重置后回复给用户的固定内容。
	ResetConfirmation = "Your conversation is now reset."
	// DefaultMaxSegmentLength 是投递成功率最高的短信长度。
	DefaultMaxSegmentLength = 320
)

// Outcome 表示一条入站消息在 webhook 请求内的处理结果。
type Outcome int

const (
	OutcomeQueued Outcome = iota + 1
	OutcomeReset
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQueued:
		return "queued"
	case OutcomeReset:
		return "reset"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ErrMissingAddress 表示入站事件缺少 From 或 To。
var ErrMissingAddress = errors.New("inbound message is missing From or To")

// MessageService 定义了短信对话的业务逻辑接口。
type MessageService interface {
	// HandleInbound 在 webhook 请求内执行：去重后把回复或 reset 任务交给后台，不等待任务执行。
	HandleInbound(ctx context.Context, msg model.InboundMessage) (Outcome, error)
	// Process 在后台执行：清空历史并确认，或者更新历史、调用模型、分段并投递回复。
	Process(ctx context.Context, task tasks.ReplyTask) error
	// ClearConversation 清空某个发送方的历史，不发送任何短信。
	ClearConversation(ctx context.Context, sender string) error
}

// MessageServiceConfig 控制回复行为。
type MessageServiceConfig struct {
	MaxSegmentLength int
	// FailureMessage 在模型调用失败时发给用户，为空则不回复。
	FailureMessage string
}

type messageService struct {
	conversations repository.ConversationRepository
	inbound       repository.InboundRepository
	llmClient     llm.Client
	delivery      DeliveryService
	dispatcher    tasks.Dispatcher
	locks         *senderLock
	cfg           MessageServiceConfig
	now           func() time.Time
}

// NewMessageService 创建一个新的 MessageService 实例。inbound 可以为 nil，表示不去重。
func NewMessageService(
	conversations repository.ConversationRepository,
	inbound repository.InboundRepository,
	llmClient llm.Client,
	delivery DeliveryService,
	dispatcher tasks.Dispatcher,
	cfg MessageServiceConfig,
) MessageService {
	if cfg.MaxSegmentLength <= 0 {
		cfg.MaxSegmentLength = DefaultMaxSegmentLength
	}
	return &messageService{
		conversations: conversations,
		inbound:       inbound,
		llmClient:     llmClient,
		delivery:      delivery,
		dispatcher:    dispatcher,
		locks:         newSenderLock(),
		cfg:           cfg,
		now:           time.Now,
	}
}

// IsResetCommand 判断消息体是否为 reset 指令。
func IsResetCommand(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), ResetCommand)
}

func (s *messageService) HandleInbound(ctx context.Context, msg model.InboundMessage) (Outcome, error) {
	if msg.From == "" || msg.To == "" {
		return 0, ErrMissingAddress
	}
	body := strings.TrimSpace(msg.Body)
	senderID := identity.Anonymize(msg.From)

	if msg.MessageSID != "" && s.inbound != nil {
		first, err := s.inbound.MarkSeen(ctx, msg.MessageSID)
		if err != nil {
			// 去重失败时宁可重复处理，也不丢消息
			log.Warnw("inbound dedupe unavailable", "sender", senderID, "messageSid", msg.MessageSID, "error", err)
		} else if !first {
			log.Infow("duplicate inbound message ignored", "sender", senderID, "messageSid", msg.MessageSID)
			return OutcomeDuplicate, nil
		}
	}

	task := tasks.ReplyTask{
		MessageSID: msg.MessageSID,
		From:       msg.From,
		To:         msg.To,
		Body:       body,
		SenderID:   senderID,
		Reset:      IsResetCommand(body),
		ReceivedAt: s.now(),
	}
	// reset 也走任务队列，排在该发送方之前的消息之后执行，webhook 不需要等锁
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.forget(ctx, msg.MessageSID)
		return 0, fmt.Errorf("failed to dispatch reply task: %w", err)
	}
	if task.Reset {
		log.Infow("reset task dispatched", "sender", senderID, "messageSid", msg.MessageSID)
		return OutcomeReset, nil
	}
	log.Infow("reply task dispatched", "sender", senderID, "messageSid", msg.MessageSID, "bodyLen", len(body))
	return OutcomeQueued, nil
}

// forget 撤销去重标记，让 Twilio 的重试能够再次被处理。
func (s *messageService) forget(ctx context.Context, messageSID string) {
	if messageSID == "" || s.inbound == nil {
		return
	}
	if err := s.inbound.Forget(context.WithoutCancel(ctx), messageSID); err != nil {
		log.Warnw("failed to forget inbound message", "messageSid", messageSID, "error", err)
	}
}

func (s *messageService) reset(ctx context.Context, task tasks.ReplyTask, senderID string) error {
	if err := s.conversations.Clear(ctx, repository.ConversationKey(senderID)); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	log.Infow("conversation reset", "sender", senderID, "messageSid", task.MessageSID)

	err := s.delivery.Deliver(ctx, Delivery{
		To:         task.From,
		From:       task.To,
		Segments:   []string{ResetConfirmation},
		SenderID:   senderID,
		InboundSID: task.MessageSID,
	})
	if err != nil {
		// 历史已经清空，确认短信发送失败不算任务失败
		log.Warnw("failed to send reset confirmation", "sender", senderID, "error", err)
	}
	return nil
}

func (s *messageService) Process(ctx context.Context, task tasks.ReplyTask) error {
	senderID := identity.Anonymize(task.From)
	unlock := s.locks.Lock(senderID)
	defer unlock()

	if task.Reset {
		return s.reset(ctx, task, senderID)
	}

	key := repository.ConversationKey(senderID)
	history, err := s.conversations.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}
	history = append(history, model.UserMessage(task.Body))

	start := s.now()
	reply, err := s.llmClient.Complete(ctx, history, senderID)
	if err != nil {
		log.Errorw("completion failed", "sender", senderID, "messageSid", task.MessageSID, "latency", time.Since(start).String(), "error", err)
		s.sendFailureNotice(ctx, task, senderID)
		return fmt.Errorf("completion failed: %w", err)
	}
	history = append(history, model.AssistantMessage(reply))

	var errs error
	if err := s.conversations.Save(ctx, key, history); err != nil {
		// 回复已经生成，保存失败也照常发送
		log.Errorw("failed to save conversation history", "sender", senderID, "error", err)
		errs = multierr.Append(errs, fmt.Errorf("failed to save conversation history: %w", err))
	}

	segments := segment.Split(reply, s.cfg.MaxSegmentLength)
	log.Infow("completion received", "sender", senderID, "messageSid", task.MessageSID,
		"latency", time.Since(start).String(), "replyLen", len(reply), "segments", len(segments), "historyLen", len(history))

	if err := s.delivery.Deliver(ctx, Delivery{
		To:         task.From,
		From:       task.To,
		Segments:   segments,
		SenderID:   senderID,
		InboundSID: task.MessageSID,
	}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reply delivery incomplete: %w", err))
	}
	return errs
}

func (s *messageService) sendFailureNotice(ctx context.Context, task tasks.ReplyTask, senderID string) {
	if s.cfg.FailureMessage == "" {
		return
	}
	err := s.delivery.Deliver(ctx, Delivery{
		To:         task.From,
		From:       task.To,
		Segments:   []string{s.cfg.FailureMessage},
		SenderID:   senderID,
		InboundSID: task.MessageSID,
	})
	if err != nil {
		log.Warnw("failed to send failure notice", "sender", senderID, "error", err)
	}
}

func (s *messageService) ClearConversation(ctx context.Context, sender string) error {
	senderID := identity.Anonymize(sender)
	unlock := s.locks.Lock(senderID)
	defer unlock()
	return s.conversations.Clear(ctx, repository.ConversationKey(senderID))
}
