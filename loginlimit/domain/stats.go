package domain

import (
	"context"
	"time"
)

// Outcome é o resultado agregado de uma checagem, para estatística.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDelayed Outcome = "delayed"
	OutcomeBlocked Outcome = "blocked"
	// OutcomeFailOpen conta checagens liberadas porque o store estava fora.
	OutcomeFailOpen Outcome = "fail_open"
)

// OutcomeOf classifica uma decisão.
func OutcomeOf(d Decision) Outcome {
	switch {
	case d.Allowed:
		return OutcomeAllowed
	case d.Reason == ReasonProgressiveDelay:
		return OutcomeDelayed
	default:
		return OutcomeBlocked
	}
}

// StatsEvent representa uma decisão do limitador.
//
// Observação: cuidado com cardinalidade ao guardar Identity por chave.
type StatsEvent struct {
	Identity Identity
	Outcome  Outcome
	Reason   Reason
	At       time.Time
}

// StatsStore é a estratégia de persistência para estatísticas.
// O chamador trata erro como best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type Counters struct {
	Allowed  int64 `json:"allowed"`
	Delayed  int64 `json:"delayed"`
	Blocked  int64 `json:"blocked"`
	FailOpen int64 `json:"failOpen"`
}

// Add incrementa o contador do outcome.
func (c *Counters) Add(o Outcome, n int64) {
	switch o {
	case OutcomeAllowed:
		c.Allowed += n
	case OutcomeDelayed:
		c.Delayed += n
	case OutcomeBlocked:
		c.Blocked += n
	case OutcomeFailOpen:
		c.FailOpen += n
	}
}

// StatsReader lê os contadores agregados.
type StatsReader interface {
	Totals(ctx context.Context) (Counters, error)
}
