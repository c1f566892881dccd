package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Window é a granularidade do rate limit por conta (janela fixa de 1 minuto).
const Window = time.Minute

// Limiter decide se uma requisição da chave cabe no limite por minuto.
//
// A implementação pode ser janela fixa, token-bucket, etc. e pode manter
// estado em memória ou num store compartilhado (Redis). O contrato é o mesmo:
// se o limite foi atingido, nada é consumido e RetryAfter indica quando a
// próxima vaga abre.
type Limiter interface {
	TryAcquire(ctx context.Context, key Key, limitPerMinute int) (Decision, error)
}

type Decision struct {
	Allowed bool

	Limit     int
	Remaining int
	// ResetAt é quando a janela atual termina (zero quando não se aplica).
	ResetAt time.Time

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// WindowStart retorna o início da janela fixa que contém t.
func WindowStart(t time.Time) time.Time {
	return t.Truncate(Window)
}

// WindowIndex é floor(t / Window), usado como identificador estável do bucket.
func WindowIndex(t time.Time) int64 {
	return t.UnixNano() / int64(Window)
}
