package infra

import (
	"context"
	"testing"
	"time"

	"extract-gateway/middleware/ratelimit/domain"
)

func TestMemoryStats_CountsByOutcome(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Outcome: domain.OutcomeAllowed, Method: "POST", Path: "/v1/extract"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Outcome: domain.OutcomeRateLimited, Method: "POST", Path: "/v1/extract"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "b", Outcome: domain.OutcomeQuotaExceeded, Method: "POST", Path: "/v1/extract"})

	total := s.Total()
	if total.Allowed() != 1 || total.Denied() != 2 {
		t.Fatalf("unexpected totals %+v", total)
	}
	if got := s.ByRoute()["POST /v1/extract"][domain.OutcomeRateLimited]; got != 1 {
		t.Fatalf("expected 1 rate_limited on route, got %d", got)
	}
	if got := s.ByKey()["b"][domain.OutcomeQuotaExceeded]; got != 1 {
		t.Fatalf("expected key b to be tracked, got %d", got)
	}
}

func TestRedisStats_IncrementsOutcomeFields(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("st:"), WithStatsTrackKeys(true))

	ev := domain.StatsEvent{Key: "acc", Outcome: domain.OutcomeForbidden, Method: "POST", Path: "/x", At: baseTime}
	if err := s.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	if got := mr.HGet("st:total", "forbidden"); got != "1" {
		t.Fatalf("expected total forbidden=1, got %q", got)
	}
	if got := mr.HGet("st:minute:202603101230", "forbidden"); got != "1" {
		t.Fatalf("expected minute bucket, got %q", got)
	}
	if got := mr.HGet("st:key:acc", "forbidden"); got != "1" {
		t.Fatalf("expected per-key counter, got %q", got)
	}
}

func TestRedisStats_DayBucketAndTotals(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket("day"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()

	for _, o := range []domain.Outcome{domain.OutcomeAllowed, domain.OutcomeAllowed, domain.OutcomeUnavailable} {
		if err := s.Record(ctx, domain.StatsEvent{Key: "acc", Outcome: o, At: baseTime}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if got := mr.HGet("gate:stats:day:20260310", "allowed"); got != "2" {
		t.Fatalf("expected day bucket allowed=2, got %q", got)
	}
	if ttl := mr.TTL("gate:stats:day:20260310"); ttl != time.Hour {
		t.Fatalf("expected day bucket ttl 1h, got %s", ttl)
	}
	if mr.Exists("gate:stats:minute:202603101230") {
		t.Fatalf("minute bucket should not be written")
	}

	total, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if total.Allowed() != 2 || total.Denied() != 1 {
		t.Fatalf("unexpected totals %+v", total)
	}
	byKey, err := s.KeyTotals(ctx, "acc")
	if err != nil {
		t.Fatalf("key totals: %v", err)
	}
	if byKey[domain.OutcomeUnavailable] != 1 {
		t.Fatalf("unexpected key totals %+v", byKey)
	}
}

func TestRedisStats_EmptyOutcomeIsIgnored(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb)

	if err := s.Record(context.Background(), domain.StatsEvent{Key: "acc"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if mr.Exists("gate:stats:total") {
		t.Fatalf("nothing should be written for an empty outcome")
	}
}
