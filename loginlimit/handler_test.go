package loginlimit

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"login-ratelimit/loginlimit/application"
	"login-ratelimit/loginlimit/domain"

	"github.com/go-chi/chi/v5"
)

func TestCheck_CleanIdentityIsAllowed(t *testing.T) {
	f := newFixture(t)

	code, res := f.post(t, "/rate-limit/check", "alice@example.com")
	if code != http.StatusOK || !res.Success {
		t.Fatalf("expected 200 success, got %d %+v", code, res)
	}
	got := decodeData[CheckResponse](t, res)
	if !got.Allowed || got.Attempts != 0 || got.Error != "" {
		t.Fatalf("expected clean allow, got %+v", got)
	}
}

func TestEndpoints_RejectBadEmail(t *testing.T) {
	f := newFixture(t)

	bodies := map[string]string{
		"missing":    `{}`,
		"empty":      `{"email":"  "}`,
		"malformed":  `{"email":"not-an-email"}`,
		"non-string": `{"email":123}`,
		"not json":   `email=alice`,
	}
	for _, path := range []string{"/rate-limit/check", "/rate-limit/record-failed", "/rate-limit/reset"} {
		for name, body := range bodies {
			t.Run(path+" "+name, func(t *testing.T) {
				code, res := f.do(t, http.MethodPost, path, body)
				if code != http.StatusBadRequest || res.Success || res.Error == "" {
					t.Fatalf("expected 400 error envelope, got %d %+v", code, res)
				}
			})
		}
	}
}

func TestRecordFailed_ThenCheckAppliesProgressiveDelay(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		code, res := f.post(t, "/rate-limit/record-failed", "Alice@Example.com")
		if code != http.StatusOK || !res.Success {
			t.Fatalf("record-failed: got %d %+v", code, res)
		}
	}

	code, res := f.post(t, "/rate-limit/check", " alice@example.com ")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	got := decodeData[CheckResponse](t, res)
	if got.Allowed || got.Error != string(domain.ReasonProgressiveDelay) {
		t.Fatalf("expected progressive delay, got %+v", got)
	}
	if got.TimeRemaining != 3 || got.Attempts != 2 {
		t.Fatalf("expected timeRemaining=3 attempts=2, got %+v", got)
	}
	if !strings.Contains(got.Message, "3 seconds") {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func blockAlice(t *testing.T, f *fixture) {
	t.Helper()
	for i := 0; i < 5; i++ {
		if code, _ := f.post(t, "/rate-limit/record-failed", "alice@example.com"); code != http.StatusOK {
			t.Fatalf("record-failed: got %d", code)
		}
		f.clock.Advance(4 * time.Second)
	}
}

func TestCheck_HardLimitBlocksAndStatusReportsIt(t *testing.T) {
	f := newFixture(t)
	blockAlice(t, f)

	_, res := f.post(t, "/rate-limit/check", "alice@example.com")
	got := decodeData[CheckResponse](t, res)
	if got.Allowed || got.Error != string(domain.ReasonTooManyAttempts) {
		t.Fatalf("expected block, got %+v", got)
	}
	if got.TimeRemaining != 900 || got.Attempts != 5 || !strings.Contains(got.Message, "15 minutes") {
		t.Fatalf("unexpected block decision %+v", got)
	}

	blockedAt := f.clock.Now()
	f.clock.Advance(time.Minute)

	code, res := f.do(t, http.MethodGet, "/rate-limit/status/alice%40example.com", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	st := decodeData[StatusResponse](t, res)
	if !st.Blocked || st.Attempts != 5 || st.TimeRemaining != 840 {
		t.Fatalf("unexpected status %+v", st)
	}
	if want := blockedAt.Add(15 * time.Minute).UnixMilli(); st.NextResetTime != want {
		t.Fatalf("expected nextResetTime %d, got %d", want, st.NextResetTime)
	}
}

func TestReset_ClearsBlock(t *testing.T) {
	f := newFixture(t)
	blockAlice(t, f)
	_, _ = f.post(t, "/rate-limit/check", "alice@example.com")

	if code, res := f.post(t, "/rate-limit/reset", "ALICE@example.com"); code != http.StatusOK || !res.Success {
		t.Fatalf("reset: got %d %+v", code, res)
	}

	_, res := f.post(t, "/rate-limit/check", "alice@example.com")
	if got := decodeData[CheckResponse](t, res); !got.Allowed || got.Attempts != 0 {
		t.Fatalf("expected clean allow after reset, got %+v", got)
	}

	// reset de identidade limpa também responde 200
	if code, _ := f.post(t, "/rate-limit/reset", "nobody@example.com"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestStatus_CleanIdentity(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(t, http.MethodGet, "/rate-limit/status/bob@example.com", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	want := StatusResponse{NextResetTime: t0.UnixMilli()}
	if st := decodeData[StatusResponse](t, res); st != want {
		t.Fatalf("expected %+v, got %+v", want, st)
	}
}

func TestStatus_RejectsBadEmail(t *testing.T) {
	f := newFixture(t)

	if code, res := f.do(t, http.MethodGet, "/rate-limit/status/nope", ""); code != http.StatusBadRequest || res.Success {
		t.Fatalf("expected 400, got %d %+v", code, res)
	}
}

func TestCheck_FailOpenWhenStoreDisconnected(t *testing.T) {
	f := newFixture(t, application.WithConnection(downConn{}))

	for i := 0; i < 10; i++ {
		if code, _ := f.post(t, "/rate-limit/record-failed", "alice@example.com"); code != http.StatusOK {
			t.Fatalf("record-failed: got %d", code)
		}
	}

	code, res := f.post(t, "/rate-limit/check", "alice@example.com")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got := decodeData[CheckResponse](t, res); !got.Allowed || got.Attempts != 0 {
		t.Fatalf("expected fail-open allow, got %+v", got)
	}
}

func TestStats_ReportsTotals(t *testing.T) {
	f := newFixture(t)
	_, _ = f.post(t, "/rate-limit/check", "alice@example.com")
	_, _ = f.post(t, "/rate-limit/record-failed", "alice@example.com")
	_, _ = f.post(t, "/rate-limit/record-failed", "alice@example.com")
	_, _ = f.post(t, "/rate-limit/check", "alice@example.com")

	code, res := f.do(t, http.MethodGet, "/rate-limit/stats", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if c := decodeData[domain.Counters](t, res); c.Allowed != 1 || c.Delayed != 1 {
		t.Fatalf("unexpected totals %+v", c)
	}
}

func TestStats_DisabledIsNotFound(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(f.svc, nil, discard).Routes(r)
	f.router = r

	if code, res := f.do(t, http.MethodGet, "/rate-limit/stats", ""); code != http.StatusNotFound || res.Success {
		t.Fatalf("expected 404, got %d %+v", code, res)
	}
}
