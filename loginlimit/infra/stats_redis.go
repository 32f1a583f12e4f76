package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"login-ratelimit/loginlimit/domain"

	"github.com/redis/go-redis/v9"
)

type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por identidade.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "loginlimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string  { return s.prefix + ":total" }
func (s *RedisStatsStore) reasonKey() string { return s.prefix + ":reason" }

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return s.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (s *RedisStatsStore) identityKey(id domain.Identity) string {
	return s.prefix + ":key:" + string(id)
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	var expiring []string
	if s.bucket == "minute" {
		k := s.minuteKey(at)
		pipe.HIncrBy(ctx, k, field, 1)
		expiring = append(expiring, k)
	}
	if ev.Reason != "" {
		pipe.HIncrBy(ctx, s.reasonKey(), string(ev.Reason), 1)
	}
	if s.trackKeys && ev.Identity != "" {
		k := s.identityKey(ev.Identity)
		pipe.HIncrBy(ctx, k, field, 1)
		expiring = append(expiring, k)
	}
	if s.ttl > 0 {
		for _, k := range expiring {
			pipe.Expire(ctx, k, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("record stats", err)
	}
	return nil
}

// Totals lê os contadores cumulativos.
func (s *RedisStatsStore) Totals(ctx context.Context) (domain.Counters, error) {
	var c domain.Counters
	m, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return c, unavailable("read stats", err)
	}
	for field, raw := range m {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c.Add(domain.Outcome(field), n)
	}
	return c, nil
}
