package service

import "sync"

// senderLock 是按发送方划分的互斥锁，保证同一发送方的读-改-写不会交错。
// 只在单进程内生效；多实例部署依赖 Kafka 按 key 分区保证顺序。
type senderLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSenderLock() *senderLock {
	return &senderLock{locks: make(map[string]*lockEntry)}
}

// Lock 获取 key 对应的锁，返回的函数用于释放。
func (l *senderLock) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *senderLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
