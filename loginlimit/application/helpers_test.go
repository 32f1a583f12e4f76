package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"login-ratelimit/loginlimit/domain"
	"login-ratelimit/loginlimit/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}

var errBoom = errors.New("boom")

// flakyStore delega para um MemoryStore e falha nas operações marcadas.
type flakyStore struct {
	*infra.MemoryStore
	failLatest bool
	failDelete bool
	failAll    bool
	failErr    error
}

func (s *flakyStore) err() error {
	if s.failErr != nil {
		return s.failErr
	}
	return errBoom
}

func (s *flakyStore) LatestAttempt(ctx context.Context, id domain.Identity) (domain.Attempt, bool, error) {
	if s.failLatest || s.failAll {
		return domain.Attempt{}, false, s.err()
	}
	return s.MemoryStore.LatestAttempt(ctx, id)
}

func (s *flakyStore) GetBlock(ctx context.Context, id domain.Identity) (*domain.BlockRecord, error) {
	if s.failAll {
		return nil, s.err()
	}
	return s.MemoryStore.GetBlock(ctx, id)
}

func (s *flakyStore) AddAttempt(ctx context.Context, id domain.Identity, at time.Time) error {
	if s.failAll {
		return s.err()
	}
	return s.MemoryStore.AddAttempt(ctx, id, at)
}

func (s *flakyStore) DeleteBlock(ctx context.Context, id domain.Identity) error {
	if s.failDelete || s.failAll {
		return s.err()
	}
	return s.MemoryStore.DeleteBlock(ctx, id)
}

func (s *flakyStore) ClearAll(ctx context.Context, id domain.Identity) error {
	if s.failAll {
		return s.err()
	}
	return s.MemoryStore.ClearAll(ctx, id)
}

// blockingStore espera o ctx expirar em GetBlock, simulando um store lento.
type blockingStore struct {
	*infra.MemoryStore
}

func (s blockingStore) GetBlock(ctx context.Context, _ domain.Identity) (*domain.BlockRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeConn struct {
	state    atomic.Int32
	mu       sync.Mutex
	reported []error
	closed   bool
}

func newConn(st domain.ConnState) *fakeConn {
	c := &fakeConn{}
	c.state.Store(int32(st))
	return c
}

func (c *fakeConn) State() domain.ConnState { return domain.ConnState(c.state.Load()) }

func (c *fakeConn) ReportFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported = append(c.reported, err)
}

func (c *fakeConn) Ping(context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Reported() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.reported...)
}
