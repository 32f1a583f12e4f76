package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"login-ratelimit/loginlimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore implementa domain.AttemptStore sobre Redis.
//
// Chaves por identidade:
//
//	<prefix>:attempts:<id>  sorted set, member "<ms>-<uuid>", score = ms
//	<prefix>:block:<id>     string JSON com TTL
//	<prefix>:blocks:<id>    sorted set com o histórico de bloqueios
type RedisStore struct {
	rdb redis.UniversalClient

	prefix string
	// attemptTTL expira o sorted set inteiro quando a identidade fica ociosa.
	// 0 desliga.
	attemptTTL time.Duration
}

type RedisStoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithAttemptTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.attemptTTL = d }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "loginlimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.AttemptStore = (*RedisStore)(nil)

type blockWire struct {
	Type     domain.Reason `json:"type"`
	Expiry   int64         `json:"expiry"`
	Attempts int           `json:"attempts"`
}

func (s *RedisStore) attemptsKey(id domain.Identity) string { return s.prefix + ":attempts:" + string(id) }
func (s *RedisStore) blockKey(id domain.Identity) string    { return s.prefix + ":block:" + string(id) }
func (s *RedisStore) historyKey(id domain.Identity) string  { return s.prefix + ":blocks:" + string(id) }

func (s *RedisStore) AddAttempt(ctx context.Context, id domain.Identity, at time.Time) error {
	ms := domain.UnixMilli(at)
	key := s.attemptsKey(id)

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ms), Member: memberName(ms)})
	if s.attemptTTL > 0 {
		pipe.PExpire(ctx, key, s.attemptTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("add attempt", err)
	}
	return nil
}

func (s *RedisStore) AttemptsSince(ctx context.Context, id domain.Identity, cutoff time.Time) ([]domain.Attempt, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, s.attemptsKey(id), &redis.ZRangeBy{
		Min: scoreArg(cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, unavailable("count attempts", err)
	}

	out := make([]domain.Attempt, 0, len(zs))
	for _, z := range zs {
		out = append(out, toAttempt(z))
	}
	return out, nil
}

func (s *RedisStore) LatestAttempt(ctx context.Context, id domain.Identity) (domain.Attempt, bool, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, s.attemptsKey(id), 0, 0).Result()
	if err != nil {
		return domain.Attempt{}, false, unavailable("latest attempt", err)
	}
	if len(zs) == 0 {
		return domain.Attempt{}, false, nil
	}
	return toAttempt(zs[0]), true, nil
}

func (s *RedisStore) PruneAttemptsBefore(ctx context.Context, id domain.Identity, cutoff time.Time) error {
	// "(" torna o limite exclusivo: remove score < cutoff.
	if err := s.rdb.ZRemRangeByScore(ctx, s.attemptsKey(id), "-inf", "("+scoreArg(cutoff)).Err(); err != nil {
		return unavailable("prune attempts", err)
	}
	return nil
}

func (s *RedisStore) GetBlock(ctx context.Context, id domain.Identity) (*domain.BlockRecord, error) {
	raw, err := s.rdb.Get(ctx, s.blockKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable("get block", err)
	}

	var w blockWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode block record: %w", err)
	}
	return &domain.BlockRecord{
		Type:     w.Type,
		Expiry:   domain.FromUnixMilli(w.Expiry),
		Attempts: w.Attempts,
	}, nil
}

func (s *RedisStore) SetBlock(ctx context.Context, id domain.Identity, block domain.BlockRecord, ttl time.Duration) error {
	if !block.Type.Persistable() {
		return fmt.Errorf("block type %q cannot be persisted", block.Type)
	}
	raw, err := json.Marshal(blockWire{
		Type:     block.Type,
		Expiry:   domain.UnixMilli(block.Expiry),
		Attempts: block.Attempts,
	})
	if err != nil {
		return fmt.Errorf("encode block record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.blockKey(id), raw, ttl).Err(); err != nil {
		return unavailable("set block", err)
	}
	return nil
}

func (s *RedisStore) DeleteBlock(ctx context.Context, id domain.Identity) error {
	if err := s.rdb.Del(ctx, s.blockKey(id)).Err(); err != nil {
		return unavailable("delete block", err)
	}
	return nil
}

func (s *RedisStore) AddBlockEvent(ctx context.Context, id domain.Identity, at time.Time, ttl time.Duration) error {
	ms := domain.UnixMilli(at)
	key := s.historyKey(id)

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ms), Member: memberName(ms)})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+scoreArg(at.Add(-ttl)))
	if ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("add block event", err)
	}
	return nil
}

func (s *RedisStore) BlockEventsSince(ctx context.Context, id domain.Identity, cutoff time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, s.historyKey(id), scoreArg(cutoff), "+inf").Result()
	if err != nil {
		return 0, unavailable("count block events", err)
	}
	return int(n), nil
}

func (s *RedisStore) ClearAll(ctx context.Context, id domain.Identity) error {
	if err := s.rdb.Del(ctx, s.attemptsKey(id), s.blockKey(id), s.historyKey(id)).Err(); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// memberName evita colisão entre inserts concorrentes no mesmo milissegundo.
func memberName(ms int64) string {
	return strconv.FormatInt(ms, 10) + "-" + uuid.NewString()
}

func scoreArg(t time.Time) string {
	return strconv.FormatInt(domain.UnixMilli(t), 10)
}

func toAttempt(z redis.Z) domain.Attempt {
	member, _ := z.Member.(string)
	return domain.Attempt{
		Member: member,
		At:     domain.FromUnixMilli(int64(z.Score)),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
