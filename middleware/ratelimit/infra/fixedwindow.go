package infra

import (
	"context"
	"sync"
	"time"

	"extract-gateway/middleware/ratelimit/domain"
)

// FixedWindowStore é um rate limiter de janela fixa (floor(now/60s)) em memória.
//
// Estado O(1) por chave: índice da janela + contador. Serve para deploy de uma
// instância só; com várias instâncias use RedisWindowStore.
type FixedWindowStore struct {
	shards []*windowShard
	now    func() time.Time
}

type windowShard struct {
	mu      sync.Mutex
	buckets map[domain.Key]*windowBucket
}

type windowBucket struct {
	index int64
	count int
}

type FixedWindowOption func(*FixedWindowStore)

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) FixedWindowOption {
	return func(s *FixedWindowStore) { s.now = now }
}

func NewFixedWindowStore(opts ...FixedWindowOption) *FixedWindowStore {
	s := &FixedWindowStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*windowShard, defaultShards)
	for i := range s.shards {
		s.shards[i] = &windowShard{buckets: make(map[domain.Key]*windowBucket)}
	}
	return s
}

// TryAcquire implementa domain.Limiter.
func (s *FixedWindowStore) TryAcquire(_ context.Context, key domain.Key, limitPerMinute int) (domain.Decision, error) {
	now := s.now()
	idx := domain.WindowIndex(now)
	resetAt := time.Unix(0, (idx+1)*int64(domain.Window))

	sh := s.shards[shardFor(key, len(s.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if !ok || b.index != idx {
		b = &windowBucket{index: idx}
		sh.buckets[key] = b
	}

	if b.count >= limitPerMinute {
		return domain.Decision{
			Allowed:    false,
			Limit:      limitPerMinute,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	b.count++
	return domain.Decision{
		Allowed:   true,
		Limit:     limitPerMinute,
		Remaining: limitPerMinute - b.count,
		ResetAt:   resetAt,
	}, nil
}

// Cleanup remove buckets com duas ou mais janelas de idade.
func (s *FixedWindowStore) Cleanup() {
	cur := domain.WindowIndex(s.now())
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, b := range sh.buckets {
			if cur-b.index >= 2 {
				delete(sh.buckets, k)
			}
		}
		sh.mu.Unlock()
	}
}

// Len retorna quantos buckets estão em memória.
func (s *FixedWindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}
