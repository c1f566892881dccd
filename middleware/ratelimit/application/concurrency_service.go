package application

import (
	"context"
	"errors"
	"time"

	"extract-gateway/middleware/ratelimit/domain"
)

// ErrSaturated indica que nenhuma vaga abriu dentro do AcquireTimeout.
var ErrSaturated = errors.New("concurrency limit saturated")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout e retorna ErrSaturated.
//
// Se o ctx do chamador foi cancelado, retorna ctx.Err() (o cliente desistiu,
// não é saturação). Em caso de erro nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrSaturated
}
