package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"login-ratelimit/loginlimit"
	"login-ratelimit/loginlimit/application"
	"login-ratelimit/loginlimit/domain"
	"login-ratelimit/loginlimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, stats := buildService(ctx, cfg, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           newRouter(cfg, svc, stats, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("login rate limiter listening",
		slog.String("addr", cfg.listenAddr),
		slog.String("store", cfg.storeBackend),
		slog.Int("max_attempts", cfg.policy.MaxAttemptsPerWindow),
		slog.Duration("window", cfg.policy.Window),
		slog.Duration("progressive_delay", cfg.policy.ProgressiveDelay),
		slog.Duration("temp_block", cfg.policy.TempBlock),
		slog.Int("lock_after_blocks", cfg.policy.LockAfterBlocks),
		slog.Bool("stats", cfg.statsEnabled),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildService monta store, monitor e stats conforme STORE_BACKEND.
// Redis fora na subida não impede o start: o Service fica em fail-open
// e o monitor volta a tentar sob demanda.
func buildService(ctx context.Context, cfg config, logger *slog.Logger) (*application.Service, domain.StatsReader) {
	engine := application.Engine{Policy: cfg.policy, Logger: logger}
	opts := []application.ServiceOption{
		application.WithLogger(logger),
		application.WithLocale(cfg.locale),
		application.WithOpTimeout(cfg.redisOpTimeout),
	}

	var reader domain.StatsReader
	switch cfg.storeBackend {
	case "memory":
		engine.Store = infra.NewMemoryStore()
		if cfg.statsEnabled {
			st := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
			opts = append(opts, application.WithStats(st))
			reader = st
		}
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.redisAddr,
			Password:     cfg.redisPassword,
			DB:           cfg.redisDB,
			DialTimeout:  cfg.redisDialTimeout,
			ReadTimeout:  cfg.redisOpTimeout,
			WriteTimeout: cfg.redisOpTimeout,
			MaxRetries:   1,
		})
		mon := infra.NewMonitor(rdb,
			infra.WithMonitorLogger(logger),
			infra.WithReconnectBackoff(cfg.redisReconnectMaxRetries, 100*time.Millisecond, cfg.redisReconnectMaxInterval),
			infra.WithPingTimeout(cfg.redisDialTimeout),
			infra.WithProbeInterval(cfg.redisProbeInterval),
		)
		if err := mon.Connect(ctx); err != nil {
			logger.Warn("redis unavailable at startup, failing open", slog.String("addr", cfg.redisAddr), slog.Any("error", err))
		}

		engine.Store = infra.NewRedisStore(rdb,
			infra.WithKeyPrefix(cfg.redisKeyPrefix),
			infra.WithAttemptTTL(cfg.policy.Window),
		)
		opts = append(opts, application.WithConnection(mon))

		if cfg.statsEnabled {
			st := infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.redisKeyPrefix+":stats"),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsTrackKeys(cfg.statsTrackKeys),
			)
			opts = append(opts, application.WithStats(st))
			reader = st
		}
	}

	return application.NewService(engine, opts...), reader
}

func newRouter(cfg config, svc *application.Service, stats domain.StatsReader, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loginlimit.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	if cfg.maxInflight > 0 {
		r.Use(middleware.Throttle(cfg.maxInflight))
	}

	r.Get("/health", healthHandler(svc))
	loginlimit.NewHandler(svc, stats, logger).Routes(r)
	return r
}

// /health responde 200 mesmo com store fora (o serviço segue em fail-open).
func healthHandler(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"store":  svc.ConnState().String(),
		})
	}
}
