package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sms-relay-go/internal/model"
	"sms-relay-go/pkg/tasks"
)

type fakeConversations struct {
	mu      sync.Mutex
	data    map[string][]model.ChatMessage
	loadErr error
	saveErr error
	clears  []string
	saves   int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{data: map[string][]model.ChatMessage{}}
}

func (f *fakeConversations) Load(_ context.Context, key string) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]model.ChatMessage{}, f.data[key]...), nil
}

func (f *fakeConversations) Save(_ context.Context, key string, history []model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.data[key] = append([]model.ChatMessage{}, history...)
	return nil
}

func (f *fakeConversations) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears = append(f.clears, key)
	delete(f.data, key)
	return nil
}

func (f *fakeConversations) get(key string) []model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key]
}

type fakeInbound struct {
	mu        sync.Mutex
	seen      map[string]bool
	err       error
	forgotten []string
}

func newFakeInbound() *fakeInbound {
	return &fakeInbound{seen: map[string]bool{}}
}

func (f *fakeInbound) MarkSeen(_ context.Context, sid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen[sid] {
		return false, nil
	}
	f.seen[sid] = true
	return true, nil
}

func (f *fakeInbound) Forget(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, sid)
	f.forgotten = append(f.forgotten, sid)
	return nil
}

type llmCall struct {
	history []model.ChatMessage
	userID  string
}

type fakeLLM struct {
	mu    sync.Mutex
	calls []llmCall
	reply func(history []model.ChatMessage) (string, error)
	delay time.Duration
}

func (f *fakeLLM) Complete(_ context.Context, history []model.ChatMessage, userID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{history: append([]model.ChatMessage{}, history...), userID: userID})
	f.mu.Unlock()
	time.Sleep(f.delay)
	if f.reply == nil {
		return "ok", nil
	}
	return f.reply(history)
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sentMessage struct {
	To, From, Body string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]error
	n      int
}

func (f *fakeSender) Send(_ context.Context, to, from, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[body]; ok {
		return "", err
	}
	f.n++
	f.sent = append(f.sent, sentMessage{To: to, From: from, Body: body})
	return fmt.Sprintf("SM%03d", f.n), nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage{}, f.sent...)
}

// inlineDispatcher 记录任务，可选地同步执行。
type inlineDispatcher struct {
	mu        sync.Mutex
	tasks     []tasks.ReplyTask
	err       error
	processor tasks.Processor
	lastErr   error
}

func (d *inlineDispatcher) Dispatch(ctx context.Context, task tasks.ReplyTask) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	if d.processor != nil {
		d.lastErr = d.processor.Process(context.Background(), task)
	}
	return nil
}

type fakeDeliveryRecords struct {
	mu      sync.Mutex
	records []model.DeliveryRecord
	err     error
}

func (f *fakeDeliveryRecords) Create(_ context.Context, r *model.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeDeliveryRecords) ListBySender(_ context.Context, senderID string, limit int) ([]model.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DeliveryRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].SenderID == senderID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
