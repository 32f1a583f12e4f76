package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"login-ratelimit/loginlimit"
	"login-ratelimit/loginlimit/application"
	"login-ratelimit/loginlimit/domain"
	"login-ratelimit/loginlimit/infra"

	"github.com/go-chi/chi/v5"
)

func newLoginServer(now func() time.Time) http.Handler {
	svc := application.NewService(
		application.Engine{Store: infra.NewMemoryStore(infra.WithMemoryClock(now)), Policy: domain.DefaultPolicy()},
		application.WithClock(now),
	)
	r := chi.NewRouter()
	r.With(loginlimit.Guard(loginlimit.GuardOptions{Limiter: svc})).
		Post("/login", loginHandler(svc, credentials{"demo@example.com": "secret"}))
	return r
}

func login(h http.Handler, password string) *httptest.ResponseRecorder {
	body := `{"email":"Demo@Example.com","password":"` + password + `"}`
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestLogin_FailuresLeadToProgressiveDelayAndSuccessResets(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }
	h := newLoginServer(clock)

	if w := login(h, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := login(h, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// duas falhas no mesmo instante: a terceira tentativa espera o atraso progressivo
	w := login(h, "secret")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After=3, got %q", got)
	}

	now = now.Add(3 * time.Second)
	if w := login(h, "secret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after delay, got %d", w.Code)
	}

	// sucesso zerou o contador
	if w := login(h, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := login(h, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected second failure to pass the guard, got %d", w.Code)
	}
}

func TestCredentials_Valid(t *testing.T) {
	c := credentials{"demo@example.com": "secret"}
	if !c.valid(" DEMO@example.com", "secret") {
		t.Fatalf("expected valid credentials")
	}
	if c.valid("demo@example.com", "Secret") || c.valid("ghost@example.com", "\x00") {
		t.Fatalf("expected invalid credentials")
	}
}
