// Package tasks defines the background reply task and an in-process pool that runs it.
package tasks

import (
	"context"
	"time"
)

// ReplyTask carries one inbound message whose reply is produced in the background.
// Reset tasks clear the history instead of asking for a completion. They run in
// the same per-sender order as every other task.
type ReplyTask struct {
	MessageSID string    `json:"message_sid,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Body       string    `json:"body"`
	SenderID   string    `json:"sender_id"`
	Reset      bool      `json:"reset,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Processor runs a ReplyTask to completion.
type Processor interface {
	Process(ctx context.Context, task ReplyTask) error
}

// Dispatcher hands a ReplyTask off to background execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, task ReplyTask) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, task ReplyTask) error

func (f ProcessorFunc) Process(ctx context.Context, task ReplyTask) error {
	return f(ctx, task)
}
