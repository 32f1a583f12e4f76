package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"login-ratelimit/loginlimit/domain"

	"github.com/joho/godotenv"
)

type config struct {
	listenAddr  string
	logLevel    slog.Level
	maxInflight int

	storeBackend string // "redis" (padrão) ou "memory"

	redisAddr                 string
	redisPassword             string
	redisDB                   int
	redisDialTimeout          time.Duration
	redisOpTimeout            time.Duration
	redisKeyPrefix            string
	redisReconnectMaxRetries  uint64
	redisReconnectMaxInterval time.Duration
	redisProbeInterval        time.Duration

	policy domain.Policy
	locale string

	statsEnabled   bool
	statsTTL       time.Duration
	statsTrackKeys bool
}

// loadConfig lê o .env (se existir) e depois o ambiente.
func loadConfig() (config, error) {
	_ = godotenv.Load()
	return readConfig()
}

func readConfig() (config, error) {
	def := domain.DefaultPolicy()

	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.maxInflight = getenvIntDefault("HTTP_MAX_INFLIGHT", 100)

	lvl, err := parseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return config{}, err
	}
	cfg.logLevel = lvl

	cfg.storeBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "redis"))
	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisDialTimeout = getenvDurationDefault("REDIS_DIAL_TIMEOUT", 2*time.Second)
	cfg.redisOpTimeout = getenvDurationDefault("REDIS_OP_TIMEOUT", 2*time.Second)
	cfg.redisKeyPrefix = getenvDefault("REDIS_KEY_PREFIX", "loginlimit")
	cfg.redisReconnectMaxRetries = uint64(max(getenvIntDefault("REDIS_RECONNECT_MAX_RETRIES", 10), 0))
	cfg.redisReconnectMaxInterval = getenvDurationDefault("REDIS_RECONNECT_MAX_INTERVAL", 3*time.Second)
	cfg.redisProbeInterval = getenvDurationDefault("REDIS_PROBE_INTERVAL", 30*time.Second)

	cfg.policy = domain.Policy{
		MaxAttemptsPerWindow: getenvIntDefault("RATE_MAX_ATTEMPTS", def.MaxAttemptsPerWindow),
		Window:               getenvDurationDefault("RATE_WINDOW", def.Window),
		ProgressiveDelay:     getenvDurationDefault("RATE_PROGRESSIVE_DELAY", def.ProgressiveDelay),
		TempBlock:            getenvDurationDefault("RATE_TEMP_BLOCK", def.TempBlock),
		AccountLock:          getenvDurationDefault("RATE_ACCOUNT_LOCK", def.AccountLock),
		LockAfterBlocks:      getenvIntDefault("RATE_LOCK_AFTER_BLOCKS", def.LockAfterBlocks),
	}
	cfg.locale = getenvDefault("RATE_LOCALE", "pt-BR")

	cfg.statsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.statsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.statsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	switch cfg.storeBackend {
	case "redis":
		if strings.TrimSpace(cfg.redisAddr) == "" {
			return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	case "memory":
	default:
		return config{}, fmt.Errorf("STORE_BACKEND must be redis or memory, got %q", cfg.storeBackend)
	}
	if err := cfg.policy.Validate(); err != nil {
		return config{}, err
	}
	if cfg.maxInflight < 0 {
		return config{}, errors.New("HTTP_MAX_INFLIGHT must be >= 0")
	}
	return cfg, nil
}

func parseLevel(v string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
	}
	return lvl, nil
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
