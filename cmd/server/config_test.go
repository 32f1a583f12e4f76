package main

import (
	"log/slog"
	"testing"
	"time"

	"login-ratelimit/loginlimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, "redis", cfg.storeBackend)
	assert.Equal(t, "localhost:6379", cfg.redisAddr)
	assert.Equal(t, "loginlimit", cfg.redisKeyPrefix)
	assert.Equal(t, uint64(10), cfg.redisReconnectMaxRetries)
	assert.Equal(t, slog.LevelInfo, cfg.logLevel)
	assert.Equal(t, domain.DefaultPolicy(), cfg.policy)
	assert.Equal(t, "pt-BR", cfg.locale)
	assert.False(t, cfg.statsEnabled)
}

func TestReadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("RATE_MAX_ATTEMPTS", "3")
	t.Setenv("RATE_WINDOW", "10m")
	t.Setenv("RATE_PROGRESSIVE_DELAY", "0s")
	t.Setenv("RATE_LOCK_AFTER_BLOCKS", "2")
	t.Setenv("RATE_LOCALE", "en")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_STATS_ENABLED", "true")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.storeBackend)
	assert.Equal(t, 3, cfg.policy.MaxAttemptsPerWindow)
	assert.Equal(t, 10*time.Minute, cfg.policy.Window)
	assert.Equal(t, time.Duration(0), cfg.policy.ProgressiveDelay)
	assert.Equal(t, 2, cfg.policy.LockAfterBlocks)
	assert.Equal(t, 2*time.Hour, cfg.policy.AccountLock)
	assert.Equal(t, "en", cfg.locale)
	assert.Equal(t, slog.LevelDebug, cfg.logLevel)
	assert.True(t, cfg.statsEnabled)
}

func TestReadConfig_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("RATE_WINDOW", "five minutes")
	t.Setenv("REDIS_DB", "x")

	cfg, err := readConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.policy.Window)
	assert.Equal(t, 0, cfg.redisDB)
}

func TestReadConfig_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":   {"STORE_BACKEND": "etcd"},
		"zero max attempts": {"RATE_MAX_ATTEMPTS": "0"},
		"negative inflight": {"HTTP_MAX_INFLIGHT": "-1"},
		"bad log level":     {"LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig()
			assert.Error(t, err)
		})
	}
}
