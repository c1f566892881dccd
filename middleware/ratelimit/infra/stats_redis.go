package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"extract-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisão do gate em hashes do Redis,
// um campo por resultado (allowed, rate_limited, quota_exceeded, ...).
//
// Layout (prefixo padrão "gate:stats"):
//
//	<prefix>:total                    cumulativo, sem TTL
//	<prefix>:<bucket>:<yyyymmdd[hhmm]> série temporal, expira em ttl
//	<prefix>:route                    campo "<METHOD> <path>:<outcome>"
//	<prefix>:key:<account>            só com trackKeys, expira em ttl
type RedisStatsStore struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	bucket    string // "minute" (padrão), "day" ou "none"
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "gate:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }

func (s *RedisStatsStore) bucketKey(at time.Time) string {
	switch s.bucket {
	case "minute":
		return s.prefix + ":minute:" + at.UTC().Format("200601021504")
	case "day":
		return s.prefix + ":day:" + at.UTC().Format("20060102")
	default:
		return ""
	}
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil || ev.Outcome == "" {
		return nil
	}
	field := string(ev.Outcome)
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.totalKey(), field, 1)

		if k := s.bucketKey(at); k != "" {
			s.incrExpiring(ctx, pipe, k, field)
		}
		if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
		}
		if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
			s.incrExpiring(ctx, pipe, s.prefix+":key:"+k, field)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stats record: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Totals lê o contador cumulativo.
func (s *RedisStatsStore) Totals(ctx context.Context) (Counters, error) {
	return s.readCounters(ctx, s.totalKey())
}

// KeyTotals lê os contadores de uma conta (só existem com trackKeys).
func (s *RedisStatsStore) KeyTotals(ctx context.Context, key domain.Key) (Counters, error) {
	return s.readCounters(ctx, s.prefix+":key:"+string(key))
}

func (s *RedisStatsStore) readCounters(ctx context.Context, key string) (Counters, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("stats read %s: %w", key, err)
	}
	out := make(Counters, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("stats read %s: field %s: %w", key, field, err)
		}
		out[domain.Outcome(field)] = n
	}
	return out, nil
}
