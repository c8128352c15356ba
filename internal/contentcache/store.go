package contentcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-drill/internal/content"
)

// SessionStore keeps resolved levels across process restarts within a
// learner session.
type SessionStore[T any] interface {
	Get(ctx context.Context, level content.Level) ([]T, bool, error)
	Set(ctx context.Context, level content.Level, items []T) error
	Clear(ctx context.Context) error
}

// MemorySessionStore is an in-memory SessionStore.
type MemorySessionStore[T any] struct {
	mu     sync.RWMutex
	levels map[content.Level][]T
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore[T any]() *MemorySessionStore[T] {
	return &MemorySessionStore[T]{levels: make(map[content.Level][]T)}
}

func (m *MemorySessionStore[T]) Get(_ context.Context, level content.Level) ([]T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, ok := m.levels[level]
	return items, ok, nil
}

func (m *MemorySessionStore[T]) Set(_ context.Context, level content.Level, items []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[level] = items
	return nil
}

func (m *MemorySessionStore[T]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.levels)
	return nil
}

// Snapshot returns a copy of the stored levels.
func (m *MemorySessionStore[T]) Snapshot() map[content.Level][]T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.levels)
}

// RedisSessionStore keeps levels as JSON under drill:{domain}:{level} with a TTL.
type RedisSessionStore[T any] struct {
	client *redis.Client
	domain content.Domain
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed store. A zero ttl keeps keys
// until cleared.
func NewRedisSessionStore[T any](client *redis.Client, domain content.Domain, ttl time.Duration) *RedisSessionStore[T] {
	return &RedisSessionStore[T]{client: client, domain: domain, ttl: ttl}
}

// Key returns the Redis key of a level.
func (r *RedisSessionStore[T]) Key(level content.Level) string {
	return fmt.Sprintf("drill:%s:%s", r.domain, level)
}

func (r *RedisSessionStore[T]) Get(ctx context.Context, level content.Level) ([]T, bool, error) {
	data, err := r.client.Get(ctx, r.Key(level)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", r.Key(level), err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", r.Key(level), err)
	}
	return items, true, nil
}

func (r *RedisSessionStore[T]) Set(ctx context.Context, level content.Level, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.Key(level), err)
	}
	if err := r.client.Set(ctx, r.Key(level), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.Key(level), err)
	}
	return nil
}

func (r *RedisSessionStore[T]) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(content.Levels()))
	for _, level := range content.Levels() {
		keys = append(keys, r.Key(level))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear %s levels: %w", r.domain, err)
	}
	return nil
}
