package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"login-ratelimit/loginlimit"
	"login-ratelimit/loginlimit/application"
	"login-ratelimit/loginlimit/domain"
	"login-ratelimit/loginlimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Exemplo: fluxo de login completo com o limitador embutido (store em memória).
//
//	curl -s localhost:8081/login -d '{"email":"demo@example.com","password":"errada"}'
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	svc := application.NewService(
		application.Engine{Store: infra.NewMemoryStore(), Policy: domain.DefaultPolicy()},
		application.WithLogger(logger),
	)
	defer func() { _ = svc.Close() }()

	users := credentials{"demo@example.com": "correct horse battery staple"}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loginlimit.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.With(loginlimit.Guard(loginlimit.GuardOptions{
		Limiter:             svc,
		AddRateLimitHeaders: true,
		Logger:              logger,
	})).Post("/login", loginHandler(svc, users))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example login server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

type credentials map[string]string

func (c credentials) valid(email, password string) bool {
	want, ok := c[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		// compara mesmo assim para não vazar existência do usuário pelo tempo
		want = "\x00"
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1 && ok
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// attemptRecorder: falha conta, sucesso limpa.
type attemptRecorder interface {
	RecordFailedAttempt(ctx context.Context, email string) error
	ResetRateLimit(ctx context.Context, email string) error
}

func loginHandler(limiter attemptRecorder, users credentials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			http.Error(w, "email and password are required", http.StatusBadRequest)
			return
		}

		if !users.valid(req.Email, req.Password) {
			if err := limiter.RecordFailedAttempt(r.Context(), req.Email); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		_ = limiter.ResetRateLimit(r.Context(), req.Email)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "authenticated"})
	}
}
