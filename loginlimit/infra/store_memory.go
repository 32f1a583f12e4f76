package infra

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"login-ratelimit/loginlimit/domain"
)

// MemoryStore é uma implementação em memória de domain.AttemptStore.
// Útil para testes e desenvolvimento em um único processo.
//
// Não é compartilhada entre processos; em produção use RedisStore.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[domain.Identity][]domain.Attempt
	blocks   map[domain.Identity]memoryBlock
	history  map[domain.Identity][]time.Time
	seq      uint64

	now func() time.Time
}

type memoryBlock struct {
	rec       domain.BlockRecord
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock define o relógio usado para o TTL dos bloqueios.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		attempts: make(map[domain.Identity][]domain.Attempt),
		blocks:   make(map[domain.Identity]memoryBlock),
		history:  make(map[domain.Identity][]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.AttemptStore = (*MemoryStore)(nil)

func (s *MemoryStore) AddAttempt(_ context.Context, id domain.Identity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	member := strconv.FormatInt(domain.UnixMilli(at), 10) + "-" + strconv.FormatUint(s.seq, 10)
	list := append(s.attempts[id], domain.Attempt{Member: member, At: at})
	sort.SliceStable(list, func(i, j int) bool { return list[i].At.Before(list[j].At) })
	s.attempts[id] = list
	return nil
}

func (s *MemoryStore) AttemptsSince(_ context.Context, id domain.Identity, cutoff time.Time) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Attempt
	for _, a := range s.attempts[id] {
		if !a.At.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestAttempt(_ context.Context, id domain.Identity) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.attempts[id]
	if len(list) == 0 {
		return domain.Attempt{}, false, nil
	}
	return list[len(list)-1], true, nil
}

func (s *MemoryStore) PruneAttemptsBefore(_ context.Context, id domain.Identity, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.attempts[id]
	kept := list[:0]
	for _, a := range list {
		if !a.At.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, id)
		return nil
	}
	s.attempts[id] = kept
	return nil
}

func (s *MemoryStore) GetBlock(_ context.Context, id domain.Identity) (*domain.BlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blocks[id]
	if !ok {
		return nil, nil
	}
	if !b.expiresAt.IsZero() && !s.now().Before(b.expiresAt) {
		delete(s.blocks, id)
		return nil, nil
	}
	rec := b.rec
	return &rec, nil
}

func (s *MemoryStore) SetBlock(_ context.Context, id domain.Identity, block domain.BlockRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := memoryBlock{rec: block}
	if ttl > 0 {
		b.expiresAt = s.now().Add(ttl)
	}
	s.blocks[id] = b
	return nil
}

func (s *MemoryStore) DeleteBlock(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocks, id)
	return nil
}

func (s *MemoryStore) AddBlockEvent(_ context.Context, id domain.Identity, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := at.Add(-ttl)
	kept := s.history[id][:0]
	for _, t := range s.history[id] {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	s.history[id] = append(kept, at)
	return nil
}

func (s *MemoryStore) BlockEventsSince(_ context.Context, id domain.Identity, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.history[id] {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClearAll(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, id)
	delete(s.blocks, id)
	delete(s.history, id)
	return nil
}
