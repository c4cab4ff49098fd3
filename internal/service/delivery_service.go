// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"sms-relay-go/internal/model"
	"sms-relay-go/internal/repository"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/sms"
)

// DefaultSegmentDelay 是两条分段之间的间隔。运营商不保证多条短信的到达顺序，
// 间隔一秒能让大多数情况下按顺序到达，但这不是保证。
const DefaultSegmentDelay = time.Second

// Delivery 描述一次回复的投递。
type Delivery struct {
	To         string
	From       string
	Segments   []string
	SenderID   string
	InboundSID string
}

// DeliveryService 按顺序逐条发送分段。
type DeliveryService interface {
	// Deliver 在某条发送失败后继续发送后续分段，返回所有失败的合并错误。
	Deliver(ctx context.Context, d Delivery) error
}

// DeliverySendError 表示第 Index 个分段发送失败。
type DeliverySendError struct {
	Index int
	Err   error
}

func (e *DeliverySendError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *DeliverySendError) Unwrap() error { return e.Err }

type deliveryService struct {
	sender  sms.Sender
	records repository.DeliveryRepository
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDeliveryService 创建投递服务。records 可以为 nil，表示不记录投递日志。
func NewDeliveryService(sender sms.Sender, records repository.DeliveryRepository, delay time.Duration) DeliveryService {
	if delay < 0 {
		delay = 0
	}
	return &deliveryService{
		sender:  sender,
		records: records,
		delay:   delay,
		sleep:   sleepContext,
	}
}

func (s *deliveryService) Deliver(ctx context.Context, d Delivery) error {
	var errs error
	sent := 0
	for i, body := range d.Segments {
		// 空分段没有可发送的内容，Twilio 也会拒绝
		if strings.TrimSpace(body) == "" {
			log.Warnw("skipping empty reply segment", "sender", d.SenderID, "index", i)
			continue
		}
		if sent > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return multierr.Append(errs, err)
			}
		}
		sent++

		sid, err := s.sender.Send(ctx, d.To, d.From, body)
		s.record(ctx, d, i, sid, err)
		if err != nil {
			log.Warnw("failed to send reply segment", "sender", d.SenderID, "index", i, "total", len(d.Segments), "error", err)
			errs = multierr.Append(errs, &DeliverySendError{Index: i, Err: err})
			continue
		}
		log.Debugw("reply segment sent", "sender", d.SenderID, "index", i, "total", len(d.Segments), "sid", sid, "length", len(body))
	}
	return errs
}

func (s *deliveryService) record(ctx context.Context, d Delivery, index int, sid string, sendErr error) {
	if s.records == nil {
		return
	}
	rec := &model.DeliveryRecord{
		SenderID:     d.SenderID,
		InboundSID:   d.InboundSID,
		SegmentIndex: index,
		SegmentTotal: len(d.Segments),
		ProviderSID:  sid,
		Status:       model.DeliveryStatusSent,
	}
	if sendErr != nil {
		rec.Status = model.DeliveryStatusFailed
		rec.Error = sendErr.Error()
	}
	if err := s.records.Create(ctx, rec); err != nil {
		log.Warnw("failed to record delivery", "sender", d.SenderID, "index", index, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
