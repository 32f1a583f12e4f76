package application

import (
	"context"
	"log/slog"
	"time"

	"login-ratelimit/loginlimit/domain"
)

// Engine concentra a política de decisão do rate limit de login.
//
// Não guarda estado em memória: toda decisão é recalculada a partir do
// store compartilhado, o que mantém múltiplos processos consistentes.
type Engine struct {
	Store  domain.AttemptStore
	Policy domain.Policy
	Logger *slog.Logger
}

func (e Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Evaluate decide se a identidade pode tentar login agora.
//
// Ordem: bloqueio persistido (O(1)), contagem da janela, atraso progressivo
// (só a tentativa mais recente) e por último o limite rígido.
func (e Engine) Evaluate(ctx context.Context, id domain.Identity, now time.Time) (domain.Decision, error) {
	block, err := e.activeBlock(ctx, id, now)
	if err != nil {
		return domain.Decision{}, err
	}
	if block != nil {
		return domain.Decision{
			Reason:        block.Type,
			TimeRemaining: block.Remaining(now),
			Attempts:      block.Attempts,
		}, nil
	}

	attempts, err := e.window(ctx, id, now)
	if err != nil {
		return domain.Decision{}, err
	}
	n := len(attempts)

	if n >= 2 {
		if wait, ok := e.progressiveDelay(ctx, id, now); ok {
			return domain.Decision{
				Reason:        domain.ReasonProgressiveDelay,
				TimeRemaining: domain.CeilSeconds(wait),
				Attempts:      n,
			}, nil
		}
	}

	if n >= e.Policy.MaxAttemptsPerWindow {
		return e.block(ctx, id, n, now)
	}
	return domain.Allow(n), nil
}

// RecordFailure registra uma tentativa falha e poda a janela.
// Não bloqueia: o bloqueio é decidido no próximo Evaluate.
func (e Engine) RecordFailure(ctx context.Context, id domain.Identity, now time.Time) error {
	if err := e.Store.AddAttempt(ctx, id, now); err != nil {
		return err
	}
	if err := e.Store.PruneAttemptsBefore(ctx, id, now.Add(-e.Policy.Window)); err != nil {
		e.logger().Debug("prune attempts failed", slog.String("identity", id.Masked()), slog.Any("error", err))
	}
	return nil
}

// Reset apaga tentativas e bloqueio. Idempotente.
func (e Engine) Reset(ctx context.Context, id domain.Identity) error {
	return e.Store.ClearAll(ctx, id)
}

// Status devolve o estado descritivo, sem veredito e sem escrever no store.
func (e Engine) Status(ctx context.Context, id domain.Identity, now time.Time) (domain.Status, error) {
	st := domain.Status{NextResetTime: domain.UnixMilli(now)}

	block, err := e.Store.GetBlock(ctx, id)
	if err != nil {
		return domain.Status{}, err
	}
	attempts, err := e.window(ctx, id, now)
	if err != nil {
		return domain.Status{}, err
	}
	st.Attempts = len(attempts)

	if block != nil && !block.Expired(now) {
		st.Blocked = true
		st.Reason = block.Type
		st.TimeRemaining = block.Remaining(now)
		st.NextResetTime = domain.UnixMilli(block.Expiry)
		return st, nil
	}
	if len(attempts) > 0 {
		oldest := attempts[0].At
		for _, a := range attempts[1:] {
			if a.At.Before(oldest) {
				oldest = a.At
			}
		}
		st.NextResetTime = domain.UnixMilli(oldest.Add(e.Policy.Window))
	}
	return st, nil
}

// activeBlock lê o bloqueio e apaga o registro se já expirou.
// Falha ao apagar não impede a avaliação: o bloqueio expirado é tratado como ausente.
func (e Engine) activeBlock(ctx context.Context, id domain.Identity, now time.Time) (*domain.BlockRecord, error) {
	block, err := e.Store.GetBlock(ctx, id)
	if err != nil || block == nil {
		return nil, err
	}
	if !block.Expired(now) {
		return block, nil
	}
	if err := e.Store.DeleteBlock(ctx, id); err != nil {
		e.logger().Warn("delete expired block failed", slog.String("identity", id.Masked()), slog.Any("error", err))
	}
	return nil, nil
}

// window devolve as tentativas em [now - Window, now].
func (e Engine) window(ctx context.Context, id domain.Identity, now time.Time) ([]domain.Attempt, error) {
	all, err := e.Store.AttemptsSince(ctx, id, now.Add(-e.Policy.Window))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if !a.At.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// progressiveDelay devolve quanto falta para liberar a próxima tentativa.
// Falha ao ler a última tentativa só pula a etapa.
func (e Engine) progressiveDelay(ctx context.Context, id domain.Identity, now time.Time) (time.Duration, bool) {
	required := e.Policy.ProgressiveDelay
	if required <= 0 {
		return 0, false
	}
	last, ok, err := e.Store.LatestAttempt(ctx, id)
	if err != nil {
		e.logger().Warn("progressive delay skipped", slog.String("identity", id.Masked()), slog.Any("error", err))
		return 0, false
	}
	if !ok {
		return 0, false
	}
	elapsed := now.Sub(last.At)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= required {
		return 0, false
	}
	return required - elapsed, true
}

// block persiste o bloqueio. Dois requests concorrentes podem gravar o mesmo
// bloqueio; o último vence e o efeito é o mesmo.
func (e Engine) block(ctx context.Context, id domain.Identity, n int, now time.Time) (domain.Decision, error) {
	reason, dur := domain.ReasonTooManyAttempts, e.Policy.TempBlock
	if e.escalate(ctx, id, now) {
		reason, dur = domain.ReasonAccountLocked, e.Policy.AccountLock
	}

	rec := domain.BlockRecord{Type: reason, Expiry: now.Add(dur), Attempts: n}
	if err := e.Store.SetBlock(ctx, id, rec, dur); err != nil {
		return domain.Decision{}, err
	}

	e.logger().Info("login blocked",
		slog.String("identity", id.Masked()),
		slog.String("reason", string(reason)),
		slog.Int("attempts", n),
		slog.Duration("duration", dur))

	return domain.Decision{
		Reason:        reason,
		TimeRemaining: domain.CeilSeconds(dur),
		Attempts:      n,
	}, nil
}

// escalate registra o bloqueio no histórico e diz se ele deve virar
// ACCOUNT_LOCKED. Erros aqui não impedem o bloqueio temporário.
func (e Engine) escalate(ctx context.Context, id domain.Identity, now time.Time) bool {
	p := e.Policy
	if p.LockAfterBlocks <= 0 {
		return false
	}
	if err := e.Store.AddBlockEvent(ctx, id, now, p.AccountLock); err != nil {
		e.logger().Warn("block history unavailable", slog.String("identity", id.Masked()), slog.Any("error", err))
		return false
	}
	count, err := e.Store.BlockEventsSince(ctx, id, now.Add(-p.AccountLock))
	if err != nil {
		e.logger().Warn("block history unavailable", slog.String("identity", id.Masked()), slog.Any("error", err))
		return false
	}
	return count >= p.LockAfterBlocks
}
