package domain

// Camada de domínio do rate limit de login.
//
// Regras e contratos (tipos/política) sem dependência de net/http.

import (
	"errors"
	"fmt"
	"time"
)

// Reason identifica por que uma tentativa foi negada.
type Reason string

const (
	ReasonProgressiveDelay Reason = "PROGRESSIVE_DELAY"
	ReasonTooManyAttempts  Reason = "TOO_MANY_ATTEMPTS"
	ReasonAccountLocked    Reason = "ACCOUNT_LOCKED"
)

// Persistable indica se o motivo pode virar um BlockRecord.
// PROGRESSIVE_DELAY nunca é persistido.
func (r Reason) Persistable() bool {
	return r == ReasonTooManyAttempts || r == ReasonAccountLocked
}

// Attempt é uma tentativa falha registrada na janela deslizante.
// Member é o nome único da entrada no store.
type Attempt struct {
	Member string
	At     time.Time
}

// BlockRecord é o bloqueio ativo de uma identidade (no máximo um por vez).
type BlockRecord struct {
	Type     Reason
	Expiry   time.Time
	Attempts int
}

// Expired compara a expiração com now. É a checagem autoritativa: o TTL do
// store pode ainda não ter removido a chave.
func (b BlockRecord) Expired(now time.Time) bool {
	return !b.Expiry.After(now)
}

// Remaining devolve os segundos restantes arredondados para cima.
func (b BlockRecord) Remaining(now time.Time) int {
	return CeilSeconds(b.Expiry.Sub(now))
}

// CeilSeconds arredonda uma duração para cima em segundos inteiros (mínimo 0).
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// UnixMilli e FromUnixMilli mantêm a representação em milissegundos usada
// como score no store.
func UnixMilli(t time.Time) int64 { return t.UnixMilli() }

func FromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms) }

// Policy é a configuração imutável do limitador. É passada por valor.
type Policy struct {
	MaxAttemptsPerWindow int
	Window               time.Duration
	ProgressiveDelay     time.Duration
	TempBlock            time.Duration
	AccountLock          time.Duration

	// LockAfterBlocks escala para ACCOUNT_LOCKED quando a identidade acumula
	// esse número de bloqueios temporários dentro de AccountLock.
	// 0 desliga a escalada.
	LockAfterBlocks int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttemptsPerWindow: 5,
		Window:               5 * time.Minute,
		ProgressiveDelay:     3 * time.Second,
		TempBlock:            15 * time.Minute,
		AccountLock:          2 * time.Hour,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.MaxAttemptsPerWindow <= 0:
		return errors.New("policy: max attempts per window must be > 0")
	case p.Window <= 0:
		return errors.New("policy: window must be > 0")
	case p.ProgressiveDelay < 0:
		return errors.New("policy: progressive delay must be >= 0")
	case p.TempBlock <= 0:
		return errors.New("policy: temporary block must be > 0")
	case p.LockAfterBlocks < 0:
		return errors.New("policy: lock after blocks must be >= 0")
	case p.LockAfterBlocks > 0 && p.AccountLock <= 0:
		return fmt.Errorf("policy: account lock must be > 0 when lock after blocks is %d", p.LockAfterBlocks)
	}
	return nil
}

type Decision struct {
	Allowed bool
	// Reason é vazio quando Allowed.
	Reason Reason
	// TimeRemaining em segundos (0 quando permitido).
	TimeRemaining int
	Attempts      int
	// Message é o texto localizado para o usuário final.
	Message string
}

// RetryAfter é o valor a ser usado em Retry-After quando negado.
func (d Decision) RetryAfter() time.Duration {
	return time.Duration(d.TimeRemaining) * time.Second
}

// Allow é a decisão padrão de fail-open.
func Allow(attempts int) Decision {
	return Decision{Allowed: true, Attempts: attempts}
}

type Status struct {
	Attempts      int
	Blocked       bool
	Reason        Reason
	TimeRemaining int
	// NextResetTime em epoch millis.
	NextResetTime int64
}
