package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"extract-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// checa e incrementa numa única ida ao Redis: se o contador já está no limite
// nada é alterado. O TTL de duas janelas faz a coleta dos buckets antigos.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current}
`)

// RedisWindowStore é a janela fixa compartilhada entre instâncias do gateway.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithWindowClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisWindowStore) { s.now = now }
}

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "ratelimit:window",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) bucketKey(key domain.Key, idx int64) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, key, idx)
}

// TryAcquire implementa domain.Limiter.
func (s *RedisWindowStore) TryAcquire(ctx context.Context, key domain.Key, limitPerMinute int) (domain.Decision, error) {
	now := s.now()
	idx := domain.WindowIndex(now)
	resetAt := time.Unix(0, (idx+1)*int64(domain.Window))
	ttl := (2 * domain.Window).Milliseconds()

	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.bucketKey(key, idx)}, limitPerMinute, ttl).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis window: %w", err)
	}
	if len(res) != 2 {
		return domain.Decision{}, fmt.Errorf("redis window: unexpected reply %v", res)
	}

	count := int(res[1])
	if res[0] == 0 {
		return domain.Decision{
			Allowed:    false,
			Limit:      limitPerMinute,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}
	return domain.Decision{
		Allowed:   true,
		Limit:     limitPerMinute,
		Remaining: limitPerMinute - count,
		ResetAt:   resetAt,
	}, nil
}
