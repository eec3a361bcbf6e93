// Package latch provides one-shot markers keyed by request. The tracking flow
// uses them to skip the database on repeat location pings.
package latch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "lifeline/pkg/domain"
)

const (
	keyPrefix  = "lifeline:tracking:"
	defaultTTL = 24 * time.Hour
)

// Redis is a latch shared by every instance. Acquire is a SET NX with TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*Redis)

// WithTTL bounds how long a latch outlives its first ping.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, requestID id.RequestID) (bool, error) {
	return r.client.SetNX(ctx, keyPrefix+requestID.String(), "1", r.ttl).Result()
}

func (r *Redis) Clear(ctx context.Context, requestID id.RequestID) error {
	return r.client.Del(ctx, keyPrefix+requestID.String()).Err()
}

// Memory is a process-local latch for single-instance runs and tests.
type Memory struct {
	mu   sync.Mutex
	held map[id.RequestID]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[id.RequestID]struct{})}
}

func (m *Memory) Acquire(_ context.Context, requestID id.RequestID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[requestID]; ok {
		return false, nil
	}
	m.held[requestID] = struct{}{}
	return true, nil
}

func (m *Memory) Clear(_ context.Context, requestID id.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, requestID)
	return nil
}
