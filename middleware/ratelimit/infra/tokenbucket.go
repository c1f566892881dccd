package infra

import (
	"context"
	"sync"
	"time"

	"extract-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore é uma alternativa à janela fixa baseada em token-bucket
// (x/time/rate): burst = limite por minuto, reposição de limit/60s.
// Não tem o pico de 2x na virada de janela, ao custo de um estado um pouco maior.
type TokenBucketStore struct {
	shards  []*bucketShard
	idleTTL time.Duration
	now     func() time.Time
}

type bucketShard struct {
	mu      sync.Mutex
	entries map[domain.Key]*bucketEntry
}

type bucketEntry struct {
	lim       *rate.Limiter
	perMinute int
	lastSeen  time.Time
}

type TokenBucketOption func(*TokenBucketStore)

// WithIdleTTL define após quanto tempo sem uso a chave é descartada no Cleanup.
func WithIdleTTL(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithTokenBucketClock(now func() time.Time) TokenBucketOption {
	return func(s *TokenBucketStore) { s.now = now }
}

func NewTokenBucketStore(opts ...TokenBucketOption) *TokenBucketStore {
	s := &TokenBucketStore{
		idleTTL: 2 * domain.Window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*bucketShard, defaultShards)
	for i := range s.shards {
		s.shards[i] = &bucketShard{entries: make(map[domain.Key]*bucketEntry)}
	}
	return s
}

func perMinuteLimit(limitPerMinute int) rate.Limit {
	return rate.Every(domain.Window / time.Duration(limitPerMinute))
}

func (s *TokenBucketStore) limiter(key domain.Key, limitPerMinute int, now time.Time) *rate.Limiter {
	sh := s.shards[shardFor(key, len(s.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ent, ok := sh.entries[key]
	if !ok {
		ent = &bucketEntry{
			lim:       rate.NewLimiter(perMinuteLimit(limitPerMinute), limitPerMinute),
			perMinute: limitPerMinute,
		}
		// NewLimiter começa cheio relativo ao zero; ancora no relógio injetado
		ent.lim.SetLimitAt(now, perMinuteLimit(limitPerMinute))
		sh.entries[key] = ent
	} else if ent.perMinute != limitPerMinute {
		// mudança de tier: ajusta sem perder os tokens já consumidos
		ent.lim.SetLimitAt(now, perMinuteLimit(limitPerMinute))
		ent.lim.SetBurstAt(now, limitPerMinute)
		ent.perMinute = limitPerMinute
	}
	ent.lastSeen = now
	return ent.lim
}

// TryAcquire implementa domain.Limiter.
func (s *TokenBucketStore) TryAcquire(_ context.Context, key domain.Key, limitPerMinute int) (domain.Decision, error) {
	now := s.now()
	lim := s.limiter(key, limitPerMinute, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return domain.Decision{Allowed: false, Limit: limitPerMinute, RetryAfter: domain.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return domain.Decision{
			Allowed:    false,
			Limit:      limitPerMinute,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{Allowed: true, Limit: limitPerMinute, Remaining: remaining}, nil
}

// Cleanup remove chaves inativas há mais de idleTTL.
func (s *TokenBucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, ent := range sh.entries {
			if ent.lastSeen.Before(cutoff) {
				delete(sh.entries, k)
			}
		}
		sh.mu.Unlock()
	}
}

func (s *TokenBucketStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
