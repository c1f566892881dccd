package domain

import (
	"context"
	"time"
)

// Outcome é o resultado final do gate para uma requisição.
type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeMalformed       Outcome = "malformed_credential"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeForbidden       Outcome = "forbidden"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeUnavailable     Outcome = "gating_unavailable"
)

// StatsEvent representa um evento de decisão do gate.
//
// Ele é "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string

	At time.Time
}

func (e StatsEvent) Allowed() bool { return e.Outcome == OutcomeAllowed }

// StatsStore é a estratégia de persistência para estatísticas.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
