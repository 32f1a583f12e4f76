package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indica falha de rede/timeout no store compartilhado.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// AttemptStore é o adapter do store compartilhado: conjunto ordenado por
// tempo de tentativas por identidade + registro de bloqueio com TTL.
//
// Não aplica política nenhuma. Toda falha volta como erro; fallback é
// responsabilidade da camada application.
type AttemptStore interface {
	// AddAttempt insere uma entrada com nome único e score = at (ms).
	AddAttempt(ctx context.Context, id Identity, at time.Time) error
	// AttemptsSince devolve as entradas com score >= cutoff.
	AttemptsSince(ctx context.Context, id Identity, cutoff time.Time) ([]Attempt, error)
	// LatestAttempt devolve a entrada mais recente (ok=false se não houver).
	LatestAttempt(ctx context.Context, id Identity) (Attempt, bool, error)
	// PruneAttemptsBefore remove entradas com score < cutoff.
	PruneAttemptsBefore(ctx context.Context, id Identity, cutoff time.Time) error

	// GetBlock devolve nil quando não há bloqueio.
	GetBlock(ctx context.Context, id Identity) (*BlockRecord, error)
	SetBlock(ctx context.Context, id Identity, block BlockRecord, ttl time.Duration) error
	DeleteBlock(ctx context.Context, id Identity) error

	// AddBlockEvent / BlockEventsSince mantêm o histórico de bloqueios usado
	// na escalada para ACCOUNT_LOCKED.
	AddBlockEvent(ctx context.Context, id Identity, at time.Time, ttl time.Duration) error
	BlockEventsSince(ctx context.Context, id Identity, cutoff time.Time) (int, error)

	// ClearAll remove tentativas, bloqueio e histórico da identidade.
	ClearAll(ctx context.Context, id Identity) error
}
