package application

import (
	"context"
	"time"

	"extract-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit por conta.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.Limiter
	// MinRetryAfter é o piso do Retry-After quando bloquear (padrão 1s).
	MinRetryAfter time.Duration
}

// Decide consulta o limiter para a chave. limitPerMinute <= 0 significa sem limite.
//
// Erro do limiter é devolvido para quem chama; a política (fail-closed) fica
// no gate.
func (s Service) Decide(ctx context.Context, key domain.Key, limitPerMinute int) (domain.Decision, error) {
	if s.Limiter == nil || limitPerMinute <= 0 {
		return domain.Decision{Allowed: true, Limit: limitPerMinute}, nil
	}
	if s.MinRetryAfter <= 0 {
		s.MinRetryAfter = 1 * time.Second
	}

	dec, err := s.Limiter.TryAcquire(ctx, key, limitPerMinute)
	if err != nil {
		return domain.Decision{}, err
	}
	if dec.Allowed {
		dec.RetryAfter = 0
		return dec, nil
	}

	// arredonda pra cima em segundos: Retry-After é inteiro
	ra := dec.RetryAfter.Truncate(time.Second)
	if ra < dec.RetryAfter {
		ra += time.Second
	}
	if ra < s.MinRetryAfter {
		ra = s.MinRetryAfter
	}
	dec.RetryAfter = ra
	return dec, nil
}
