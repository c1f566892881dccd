package infra

import (
	"context"
	"sync"

	"extract-gateway/middleware/ratelimit/domain"
)

// Counters agrega decisões por resultado.
type Counters map[domain.Outcome]int64

func (c Counters) Allowed() int64 { return c[domain.OutcomeAllowed] }

func (c Counters) Denied() int64 {
	var n int64
	for o, v := range c {
		if o != domain.OutcomeAllowed {
			n += v
		}
	}
	return n
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:   make(Counters),
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bump(m map[string]Counters, k string, o domain.Outcome) {
	c, ok := m[k]
	if !ok {
		c = make(Counters)
		m[k] = c
	}
	c[o]++
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++
	bump(s.byRoute, ev.Method+" "+ev.Path, ev.Outcome)
	if s.trackKeys && ev.Key != "" {
		bump(s.byKey, string(ev.Key), ev.Outcome)
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.total)
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounterMap(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounterMap(s.byKey)
}

func copyCounters(c Counters) Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func copyCounterMap(m map[string]Counters) map[string]Counters {
	out := make(map[string]Counters, len(m))
	for k, v := range m {
		out[k] = copyCounters(v)
	}
	return out
}
