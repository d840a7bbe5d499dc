// Package idempotency tracks which event ids a consumer has already
// applied, so redelivered records can be skipped. The set is checked
// before processing and marked after, which keeps the consumer correct
// under at-least-once delivery as long as the backing survives.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL should be at least the retention of the source topic.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "processed:"

// Set records processed event ids.
type Set interface {
	// Seen reports whether the event id was already marked.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records the event id as processed.
	Mark(ctx context.Context, eventID string) error
}

// RedisSet is the durable backing: one TTL'd key per event id, shared
// by every member of the consumer group and surviving restarts.
type RedisSet struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSet(client *redis.Client, ttl time.Duration) *RedisSet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSet{client: client, ttl: ttl}
}

func (s *RedisSet) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSet) Mark(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, keyPrefix+eventID, 1, s.ttl).Err()
}

// MemorySet is a process-local set. Best effort only: it does not
// survive restarts, so stranded reservations must be reconciled
// downstream.
type MemorySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{seen: make(map[string]struct{})}
}

func (s *MemorySet) Seen(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *MemorySet) Mark(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID] = struct{}{}
	return nil
}
