package tasks

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"sms-relay-go/pkg/log"
)

var (
	ErrPoolFull   = errors.New("reply pool queue is full")
	ErrPoolClosed = errors.New("reply pool is closed")
)

// Pool runs tasks on a fixed set of workers. Tasks with the same SenderID
// always go to the same worker, so one sender's replies run one at a time
// in the order they were dispatched.
type Pool struct {
	queues    []chan ReplyTask
	processor Processor
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool and starts its workers. queueSize is per worker.
func NewPool(workers, queueSize int, processor Processor) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queues:    make([]chan ReplyTask, workers),
		processor: processor,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for i := range p.queues {
		p.queues[i] = make(chan ReplyTask, queueSize)
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

// Dispatch queues a task without blocking. The caller's ctx is not passed to
// the worker, a reply keeps running after the webhook request is done.
func (p *Pool) Dispatch(_ context.Context, task ReplyTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queues[p.shard(task.SenderID)] <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for task := range p.queues[id] {
		p.run(task)
	}
}

func (p *Pool) run(task ReplyTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("reply task panicked", "sender", task.SenderID, "panic", fmt.Sprint(r))
		}
	}()
	if err := p.processor.Process(p.baseCtx, task); err != nil {
		log.Errorw("reply task failed", "sender", task.SenderID, "messageSid", task.MessageSID, "error", err)
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// When ctx expires first, in-flight tasks see their context canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
