package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

const defaultKeyPrefix = "clinic:slot-lock:"

// Locker serializes bookings of one doctor slot across service replicas.
// Implementations fail fast with ErrLockNotAcquired instead of waiting.
type Locker interface {
	WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error
}

// SlotKey names the lock for one doctor at one instant. Seconds are ignored
// and the instant is written in UTC, so replicas in different zones agree.
func SlotKey(doctorID string, at time.Time) string {
	return doctorID + ":" + at.UTC().Truncate(time.Minute).Format("200601021504")
}

type LockOptions struct {
	// TTL bounds how long a crashed holder can block a slot.
	TTL time.Duration
	// Prefix namespaces the keys; it defaults to "clinic:slot-lock:".
	Prefix string
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSlotLocker returns a Locker holding one SET NX key per slot.
func NewRedisSlotLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultKeyPrefix
	}
	return &redisSlotLocker{
		client: client,
		ttl:    opts.TTL,
		prefix: opts.Prefix,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	key := l.prefix + slot
	owner := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock %s: %w", slot, err)
	}
	if !acquired {
		return ErrLockNotAcquired
	}
	// Release even when the caller's context is already done.
	defer func() { _ = l.release(context.WithoutCancel(ctx), key, owner) }()

	// The holder must finish before the key can expire under it.
	held, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(held)
}

// releaseScript deletes the key only while it still carries our owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
