package loginlimit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"login-ratelimit/loginlimit/domain"
)

// IdentityFunc extrai o email do request (vazio = sem identidade).
type IdentityFunc func(r *http.Request) string

// Checker é o subconjunto da fachada usado pelo Guard.
type Checker interface {
	CheckRateLimit(ctx context.Context, email string) (domain.Decision, error)
}

type GuardOptions struct {
	Limiter             Checker
	IdentityFn          IdentityFunc
	IdentityHeader      string
	RejectStatus        int
	AddRateLimitHeaders bool
	Logger              *slog.Logger
}

const maxIdentityBody = 1 << 16

// DefaultIdentityFunc procura o email no header, depois no form e por fim no body JSON.
// O body é restaurado para o próximo handler.
func DefaultIdentityFunc(header string) IdentityFunc {
	return func(r *http.Request) string {
		if header != "" {
			if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
				return v
			}
		}
		if r.Body == nil || r.Body == http.NoBody {
			return ""
		}

		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "application/x-www-form-urlencoded", "multipart/form-data":
			return strings.TrimSpace(r.FormValue("email"))
		case "application/json", "":
			return emailFromJSONBody(r)
		}
		return ""
	}
}

func emailFromJSONBody(r *http.Request) string {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.Email)
}

type decisionKey struct{}

// DecisionFromContext devolve a decisão tomada pelo Guard, se houver.
func DecisionFromContext(ctx context.Context) (domain.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(domain.Decision)
	return d, ok
}

// Guard protege um handler de login: consulta o limitador antes de deixar passar.
// Requests sem identidade seguem adiante; a validação fica com o handler.
func Guard(opts GuardOptions) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.IdentityFn == nil {
		opts.IdentityFn = DefaultIdentityFunc(opts.IdentityHeader)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := opts.IdentityFn(r)
			if email == "" {
				next.ServeHTTP(w, r)
				return
			}

			dec, err := opts.Limiter.CheckRateLimit(r.Context(), email)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Attempts", formatInt(dec.Attempts))
			}
			if !dec.Allowed {
				opts.Logger.Info("login rejected",
					slog.String("reason", string(dec.Reason)),
					slog.Int("time_remaining", dec.TimeRemaining),
				)
				msg := dec.Message
				if msg == "" {
					msg = string(dec.Reason)
				}
				w.Header().Set("Retry-After", formatInt(dec.TimeRemaining))
				writeJSON(w, opts.RejectStatus, envelope{
					Success: false,
					Error:   msg,
					Data:    NewCheckResponse(dec),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, dec)))
		})
	}
}
