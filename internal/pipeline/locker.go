package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrStageInFlight is returned when another stage execution already holds the
// interview's lock. Callers retry once the running stage finishes.
var ErrStageInFlight = errors.New("pipeline: another stage is in flight for this interview")

// Locker serializes stage executions per interview id.
type Locker interface {
	Acquire(ctx context.Context, id string) (release func(), err error)
}

// MemoryLocker is the single-process locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(_ context.Context, id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return nil, ErrStageInFlight
	}
	l.held[id] = true
	return func() {
		l.mu.Lock()
		delete(l.held, id)
		l.mu.Unlock()
	}, nil
}

// RedisLocker serializes stages across processes with SET NX and a TTL
// slightly above the longest stage timeout, so a crashed worker cannot wedge
// an interview forever.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "interview:lock:"
	}
	if ttl <= 0 {
		ttl = 35 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, id string) (func(), error) {
	key := l.prefix + id
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("pipeline: redis lock: %w", err)
	}
	if !ok {
		return nil, ErrStageInFlight
	}

	release := func() {
		// Only delete the lock if it is still ours; an expired lock may
		// have been re-acquired by another worker.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		held, err := l.client.Get(ctx, key).Result()
		if err == nil && held == token {
			l.client.Del(ctx, key)
		}
	}
	return release, nil
}
