package loginlimit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"login-ratelimit/loginlimit/application"
	"login-ratelimit/loginlimit/domain"
	"login-ratelimit/loginlimit/infra"

	"github.com/go-chi/chi/v5"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type downConn struct{}

func (downConn) State() domain.ConnState    { return domain.ConnDisconnected }
func (downConn) ReportFailure(error)        {}
func (downConn) Ping(context.Context) error { return nil }
func (downConn) Close() error               { return nil }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	clock  *testClock
	svc    *application.Service
	stats  *infra.MemoryStatsStore
	router chi.Router
}

func newFixture(t *testing.T, opts ...application.ServiceOption) *fixture {
	t.Helper()
	clock := &testClock{t: t0}
	stats := infra.NewMemoryStatsStore()
	engine := application.Engine{
		Store:  infra.NewMemoryStore(infra.WithMemoryClock(clock.Now)),
		Policy: domain.DefaultPolicy(),
	}
	base := []application.ServiceOption{
		application.WithClock(clock.Now),
		application.WithStats(stats),
		application.WithLocale("en"),
		application.WithLogger(discard),
	}
	svc := application.NewService(engine, append(base, opts...)...)

	r := chi.NewRouter()
	NewHandler(svc, stats, discard).Routes(r)
	return &fixture{clock: clock, svc: svc, stats: stats, router: r}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, apiResponse) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func (f *fixture) post(t *testing.T, path, email string) (int, apiResponse) {
	t.Helper()
	return f.do(t, http.MethodPost, path, `{"email":"`+email+`"}`)
}

func decodeData[T any](t *testing.T, res apiResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(res.Data, &v); err != nil {
		t.Fatalf("invalid data %s: %v", res.Data, err)
	}
	return v
}
