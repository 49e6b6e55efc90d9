package redisclient

import (
	"context"
	"sync"
	"time"
)

type localSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	ttl  time.Duration
}

// NewLocalSlotLocker returns a Locker for a single process. It fails fast
// with ErrLockNotAcquired like the Redis locker instead of waiting.
func NewLocalSlotLocker(ttl time.Duration) Locker {
	return &localSlotLocker{
		held: make(map[string]struct{}),
		ttl:  ttl,
	}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[slot]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[slot] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, slot)
		l.mu.Unlock()
	}()

	if l.ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	return fn(ctx)
}
