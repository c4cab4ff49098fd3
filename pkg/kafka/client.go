// Package kafka 通过 Kafka 传递后台回复任务。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"sms-relay-go/internal/config"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/tasks"
)

// messageWriter 是 Producer 依赖的 kafka.Writer 子集。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把 ReplyTask 写入 Kafka，实现 tasks.Dispatcher。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。
// 使用 Hash 均衡器，同一发送方的任务总是落在同一分区，从而保持先后顺序。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Dispatch 发送一个回复任务到 Kafka。
func (p *Producer) Dispatch(ctx context.Context, task tasks.ReplyTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal reply task: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.SenderID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to write reply task: %w", err)
	}
	return nil
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是消费者依赖的 kafka.Reader 子集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StartConsumer 启动一个 Kafka 消费者来处理回复任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor tasks.Processor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor)
}

// 读取失败后的重试间隔，逐次翻倍直到上限。
var (
	fetchRetryBackoff    = time.Second
	maxFetchRetryBackoff = 30 * time.Second
)

func consume(ctx context.Context, r messageReader, processor tasks.Processor) {
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	backoff := fetchRetryBackoff
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("Kafka 消费者已停止")
				return
			}
			// 消费者退出后 webhook 仍会返回 200，回复会全部丢失，所以这里只重试不退出
			log.Errorf("从 Kafka 读取消息失败，%s 后重试: %v", backoff, err)
			if !wait(ctx, backoff) {
				log.Info("Kafka 消费者已停止")
				return
			}
			backoff = min(backoff*2, maxFetchRetryBackoff)
			continue
		}
		backoff = fetchRetryBackoff

		var task tasks.ReplyTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: offset %d, err: %v", m.Offset, err)
		} else if err := processor.Process(context.WithoutCancel(ctx), task); err != nil {
			// 回复不是幂等的（可能已发出部分分段），失败后不重新投递
			log.Errorw("reply task failed", "sender", task.SenderID, "messageSid", task.MessageSID, "error", err)
		}

		if err := r.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// wait 在 ctx 取消时返回 false。
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
