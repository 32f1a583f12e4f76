package infra

import (
	"context"
	"sync"

	"login-ratelimit/loginlimit/domain"
)

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    domain.Counters
	byReason map[domain.Reason]int64
	byKey    map[domain.Identity]domain.Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason: make(map[domain.Reason]int64),
		byKey:    make(map[domain.Identity]domain.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Add(ev.Outcome, 1)
	if ev.Reason != "" {
		s.byReason[ev.Reason]++
	}
	if s.trackKeys && ev.Identity != "" {
		c := s.byKey[ev.Identity]
		c.Add(ev.Outcome, 1)
		s.byKey[ev.Identity] = c
	}
	return nil
}

func (s *MemoryStatsStore) Totals(context.Context) (domain.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

func (s *MemoryStatsStore) ByReason() map[domain.Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Reason]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Identity]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Identity]domain.Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
