package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventhub/internal/status"

	"github.com/redis/go-redis/v9"
)

const processingMarker = "PROCESSING"

// RedisIdempotency claims keys with SETNX so concurrent retries of the same
// attempt across instances see a single owner.
type RedisIdempotency struct {
	redis *redis.Client
}

func NewRedisIdempotency(client *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{redis: client}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	ok, err := r.redis.SetNX(ctx, key, processingMarker, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: claim %s: %v", status.ErrStorageFailure, key, err)
	}
	if ok {
		return nil, true, nil
	}

	val, err := r.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller retries later
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %v", status.ErrStorageFailure, key, err)
	}
	if val == processingMarker {
		return nil, false, nil
	}
	return []byte(val), false, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := r.redis.Set(ctx, key, string(result), ttl).Err(); err != nil {
		return fmt.Errorf("%w: complete %s: %v", status.ErrStorageFailure, key, err)
	}
	return nil
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: release %s: %v", status.ErrStorageFailure, key, err)
	}
	return nil
}

// MemoryIdempotency is the single-process counterpart used without Redis.
type MemoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	now     func() time.Time
}

type idempotencyEntry struct {
	result    []byte
	done      bool
	expiresAt time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

func (m *MemoryIdempotency) Claim(_ context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		if !e.done {
			return nil, false, nil
		}
		out := make([]byte, len(e.result))
		copy(out, e.result)
		return out, false, nil
	}

	m.entries[key] = idempotencyEntry{expiresAt: now.Add(ttl)}
	return nil, true, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, result []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(result))
	copy(stored, result)
	m.entries[key] = idempotencyEntry{result: stored, done: true, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
